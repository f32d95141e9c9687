package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/pkg/database"
	"github.com/weiawesome/wes-io-polls/pkg/log"
)

// GormPollRepository implements PollRepository using GORM.
type GormPollRepository struct {
	db *gorm.DB
}

// NewGormPollRepository creates a new GORM-based poll repository.
func NewGormPollRepository(db *gorm.DB) *GormPollRepository {
	return &GormPollRepository{db: db}
}

// Create inserts a poll together with its options.
func (r *GormPollRepository) Create(ctx context.Context, poll *domain.Poll) error {
	l := log.Ctx(ctx)

	model := domain.PollToModel(poll)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldPollID, poll.ID).Msg("failed to create poll in db")
		return err
	}

	l.Debug().Str(log.FieldPollID, poll.ID).Msg("poll created in db")
	return nil
}

// GetByID retrieves a poll with options and participants.
func (r *GormPollRepository) GetByID(ctx context.Context, id string) (*domain.Poll, error) {
	p, err := r.load(r.db.WithContext(ctx), id, false)
	if err != nil && !errors.Is(err, domain.ErrPollNotFound) {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldPollID, id).Msg("failed to get poll by id")
	}
	return p, err
}

// List retrieves every poll, newest first.
func (r *GormPollRepository) List(ctx context.Context) ([]*domain.Poll, error) {
	l := log.Ctx(ctx)
	db := r.db.WithContext(ctx)

	var models []domain.PollModel
	err := db.
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("option_id") }).
		Order("created_at DESC, id DESC").
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Msg("failed to list polls from db")
		return nil, err
	}
	if len(models) == 0 {
		return []*domain.Poll{}, nil
	}

	ids := make([]string, len(models))
	for i := range models {
		ids[i] = models[i].ID
	}

	var parts []domain.ParticipantModel
	if err := db.Where("poll_id IN ?", ids).Order("joined_at, user_id").Find(&parts).Error; err != nil {
		l.Error().Err(err).Msg("failed to list poll participants from db")
		return nil, err
	}
	byPoll := make(map[string][]domain.Participant, len(models))
	for i := range parts {
		byPoll[parts[i].PollID] = append(byPoll[parts[i].PollID], parts[i].ToDomain())
	}

	polls := make([]*domain.Poll, len(models))
	for i := range models {
		p := models[i].ToDomain()
		if ps, ok := byPoll[p.ID]; ok {
			p.Participants = ps
		}
		polls[i] = p
	}
	return polls, nil
}

// Update applies mutate to the locked poll and persists the editable fields.
func (r *GormPollRepository) Update(ctx context.Context, id string, mutate func(p *domain.Poll) error, at time.Time) (*domain.Poll, error) {
	var out *domain.Poll

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := r.load(tx, id, true)
		if err != nil {
			return err
		}
		if err := mutate(p); err != nil {
			return err
		}

		err = tx.Model(&domain.PollModel{}).Where("id = ?", id).Updates(map[string]interface{}{
			"question":         p.Question,
			"description":      p.Description,
			"access_type":      string(p.AccessType),
			"allowed_user_ids": database.StringList(p.AllowedUserIDs),
			"updated_at":       at,
		}).Error
		if err != nil {
			return fmt.Errorf("update poll: %w", err)
		}

		p.UpdatedAt = at
		out = p
		return nil
	})
	if err != nil {
		logUnexpected(ctx, err, id, "failed to update poll")
		return nil, err
	}
	return out, nil
}

// Close moves an open poll to closed. A poll that is already closed
// yields a CONFLICT error.
func (r *GormPollRepository) Close(ctx context.Context, id string, check PollCheck, at time.Time) (*domain.Poll, error) {
	var out *domain.Poll

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := r.load(tx, id, true)
		if err != nil {
			return err
		}
		if err := check(p); err != nil {
			return err
		}

		result := tx.Model(&domain.PollModel{}).
			Where("id = ? AND status = ?", id, string(domain.PollStatusOpen)).
			Updates(map[string]interface{}{
				"status":     string(domain.PollStatusClosed),
				"closed_at":  at,
				"updated_at": at,
			})
		if result.Error != nil {
			return fmt.Errorf("close poll: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrConflict.WithMessage("poll is already closed")
		}

		p.Status = domain.PollStatusClosed
		p.ClosedAt = &at
		p.UpdatedAt = at
		out = p
		return nil
	})
	if err != nil {
		logUnexpected(ctx, err, id, "failed to close poll")
		return nil, err
	}
	return out, nil
}

// Delete removes a poll and everything hanging off it: options, votes,
// participants and its chat thread.
func (r *GormPollRepository) Delete(ctx context.Context, id string, check PollCheck) (*domain.Poll, error) {
	var out *domain.Poll

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := r.load(tx, id, true)
		if err != nil {
			return err
		}
		if err := check(p); err != nil {
			return err
		}

		steps := []struct {
			model interface{}
			where string
			args  []interface{}
		}{
			{&domain.VoteModel{}, "poll_id = ?", []interface{}{id}},
			{&domain.ParticipantModel{}, "poll_id = ?", []interface{}{id}},
			{&domain.PollOptionModel{}, "poll_id = ?", []interface{}{id}},
			{&domain.MessageModel{}, "scope_type = ? AND scope_id = ?", []interface{}{string(domain.ScopePoll), id}},
			{&domain.PollModel{}, "id = ?", []interface{}{id}},
		}
		for _, s := range steps {
			if err := tx.Where(s.where, s.args...).Delete(s.model).Error; err != nil {
				return fmt.Errorf("delete poll cascade: %w", err)
			}
		}

		out = p
		return nil
	})
	if err != nil {
		logUnexpected(ctx, err, id, "failed to delete poll")
		return nil, err
	}

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldPollID, id).Msg("poll deleted from db")
	return out, nil
}

// ApplyVote toggles the voter's choice. No vote inserts one, the same
// option removes it, and a different option moves it. Option and total
// counters change with atomic increments in the same transaction.
func (r *GormPollRepository) ApplyVote(ctx context.Context, vote *domain.Vote, check PollCheck) (*VoteOutcome, error) {
	out := &VoteOutcome{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := r.load(tx, vote.PollID, true)
		if err != nil {
			return err
		}
		if err := check(p); err != nil {
			return err
		}

		var existing domain.VoteModel
		err = tx.Where("poll_id = ? AND user_id = ?", vote.PollID, vote.UserID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			model := &domain.VoteModel{
				ID:       vote.ID,
				PollID:   vote.PollID,
				UserID:   vote.UserID,
				Username: vote.Username,
				OptionID: vote.OptionID,
				VotedAt:  vote.VotedAt,
			}
			if err := tx.Create(model).Error; err != nil {
				return fmt.Errorf("insert vote: %w", err)
			}
			if err := bumpOption(tx, vote.PollID, vote.OptionID, 1); err != nil {
				return err
			}
			if err := bumpTotal(tx, vote.PollID, 1, vote.VotedAt); err != nil {
				return err
			}
			optionID := vote.OptionID
			out.Action = domain.VoteActionVoted
			out.UserVote = &optionID

		case err != nil:
			return fmt.Errorf("find vote: %w", err)

		case existing.OptionID == vote.OptionID:
			if err := tx.Delete(&existing).Error; err != nil {
				return fmt.Errorf("delete vote: %w", err)
			}
			if err := bumpOption(tx, vote.PollID, vote.OptionID, -1); err != nil {
				return err
			}
			if err := bumpTotal(tx, vote.PollID, -1, vote.VotedAt); err != nil {
				return err
			}
			out.Action = domain.VoteActionUnvoted

		default:
			err := tx.Model(&existing).Updates(map[string]interface{}{
				"option_id": vote.OptionID,
				"voted_at":  vote.VotedAt,
			}).Error
			if err != nil {
				return fmt.Errorf("move vote: %w", err)
			}
			if err := bumpOption(tx, vote.PollID, existing.OptionID, -1); err != nil {
				return err
			}
			if err := bumpOption(tx, vote.PollID, vote.OptionID, 1); err != nil {
				return err
			}
			if err := bumpTotal(tx, vote.PollID, 0, vote.VotedAt); err != nil {
				return err
			}
			optionID := vote.OptionID
			out.Action = domain.VoteActionChanged
			out.UserVote = &optionID
		}

		out.Poll, err = r.load(tx, vote.PollID, false)
		return err
	})
	if err != nil {
		logUnexpected(ctx, err, vote.PollID, "failed to apply vote")
		return nil, err
	}
	return out, nil
}

// UserVote returns the option the user voted for, or nil.
func (r *GormPollRepository) UserVote(ctx context.Context, pollID, userID string) (*int, error) {
	var m domain.VoteModel
	err := r.db.WithContext(ctx).Where("poll_id = ? AND user_id = ?", pollID, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldPollID, pollID).Msg("failed to get user vote")
		return nil, err
	}
	return &m.OptionID, nil
}

// UserVotes returns pollID -> optionID for every vote the user holds.
func (r *GormPollRepository) UserVotes(ctx context.Context, userID string) (map[string]int, error) {
	var models []domain.VoteModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&models).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list user votes")
		return nil, err
	}

	votes := make(map[string]int, len(models))
	for _, m := range models {
		votes[m.PollID] = m.OptionID
	}
	return votes, nil
}

// Kick bans targetID from the poll: it leaves the allow-list and the
// participant set, joins the kicked set, and loses its vote with a
// compensating decrement.
func (r *GormPollRepository) Kick(ctx context.Context, id, targetID string, check PollCheck, at time.Time) (*KickOutcome, error) {
	out := &KickOutcome{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := r.load(tx, id, true)
		if err != nil {
			return err
		}
		if err := check(p); err != nil {
			return err
		}

		allowed := slices.DeleteFunc(slices.Clone(p.AllowedUserIDs), func(v string) bool { return v == targetID })
		kicked := slices.Clone(p.KickedUserIDs)
		if !slices.Contains(kicked, targetID) {
			kicked = append(kicked, targetID)
		}

		err = tx.Model(&domain.PollModel{}).Where("id = ?", id).Updates(map[string]interface{}{
			"allowed_user_ids": database.StringList(allowed),
			"kicked_user_ids":  database.StringList(kicked),
			"updated_at":       at,
		}).Error
		if err != nil {
			return fmt.Errorf("update kicked set: %w", err)
		}

		if err := tx.Where("poll_id = ? AND user_id = ?", id, targetID).Delete(&domain.ParticipantModel{}).Error; err != nil {
			return fmt.Errorf("remove participant: %w", err)
		}

		var existing domain.VoteModel
		err = tx.Where("poll_id = ? AND user_id = ?", id, targetID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return fmt.Errorf("find vote: %w", err)
		default:
			if err := tx.Delete(&existing).Error; err != nil {
				return fmt.Errorf("delete vote: %w", err)
			}
			if err := bumpOption(tx, id, existing.OptionID, -1); err != nil {
				return err
			}
			if err := bumpTotal(tx, id, -1, at); err != nil {
				return err
			}
			out.VoteRemoved = true
		}

		out.Poll, err = r.load(tx, id, false)
		return err
	})
	if err != nil {
		logUnexpected(ctx, err, id, "failed to kick user")
		return nil, err
	}
	return out, nil
}

// AddParticipant inserts the participant if check passes. It reports
// whether the participant was newly added.
func (r *GormPollRepository) AddParticipant(ctx context.Context, id string, part domain.Participant, check PollCheck) (*domain.Poll, bool, error) {
	var (
		out   *domain.Poll
		added bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := r.load(tx, id, true)
		if err != nil {
			return err
		}
		if err := check(p); err != nil {
			return err
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.ParticipantModel{
			PollID:   id,
			UserID:   part.UserID,
			Username: part.Username,
			JoinedAt: part.JoinedAt,
		})
		if result.Error != nil {
			return fmt.Errorf("insert participant: %w", result.Error)
		}
		added = result.RowsAffected > 0

		out, err = r.load(tx, id, false)
		return err
	})
	if err != nil {
		logUnexpected(ctx, err, id, "failed to add participant")
		return nil, false, err
	}
	return out, added, nil
}

// RemoveParticipant deletes the participant row. It reports whether a
// row was removed.
func (r *GormPollRepository) RemoveParticipant(ctx context.Context, id, userID string) (*domain.Poll, bool, error) {
	db := r.db.WithContext(ctx)

	result := db.Where("poll_id = ? AND user_id = ?", id, userID).Delete(&domain.ParticipantModel{})
	if result.Error != nil {
		logUnexpected(ctx, result.Error, id, "failed to remove participant")
		return nil, false, result.Error
	}

	p, err := r.load(db, id, false)
	if err != nil {
		logUnexpected(ctx, err, id, "failed to reload poll")
		return nil, false, err
	}
	return p, result.RowsAffected > 0, nil
}

// load reads the poll row, its options and its participants. With lock set
// the poll row is selected FOR UPDATE where the dialect supports it.
func (r *GormPollRepository) load(tx *gorm.DB, id string, lock bool) (*domain.Poll, error) {
	q := tx
	if lock {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var m domain.PollModel
	if err := q.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPollNotFound
		}
		return nil, fmt.Errorf("load poll: %w", err)
	}

	if err := tx.Where("poll_id = ?", id).Order("option_id").Find(&m.Options).Error; err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}

	var parts []domain.ParticipantModel
	if err := tx.Where("poll_id = ?", id).Order("joined_at, user_id").Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}

	p := m.ToDomain()
	for i := range parts {
		p.Participants = append(p.Participants, parts[i].ToDomain())
	}
	return p, nil
}

func bumpOption(tx *gorm.DB, pollID string, optionID, delta int) error {
	result := tx.Model(&domain.PollOptionModel{}).
		Where("poll_id = ? AND option_id = ?", pollID, optionID).
		UpdateColumn("votes", gorm.Expr("votes + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("update option votes: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrInvalidOption
	}
	return nil
}

func bumpTotal(tx *gorm.DB, pollID string, delta int, at time.Time) error {
	err := tx.Model(&domain.PollModel{}).Where("id = ?", pollID).Updates(map[string]interface{}{
		"total_votes": gorm.Expr("total_votes + ?", delta),
		"updated_at":  at,
	}).Error
	if err != nil {
		return fmt.Errorf("update total votes: %w", err)
	}
	return nil
}

// logUnexpected logs err unless it is a classified domain error.
func logUnexpected(ctx context.Context, err error, id, msg string) {
	var de *domain.Error
	if errors.As(err, &de) {
		return
	}
	l := log.Ctx(ctx)
	l.Error().Err(err).Str("id", id).Msg(msg)
}
