package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-polls/internal/audit"
	"github.com/weiawesome/wes-io-polls/internal/cache"
	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/idgen"
	"github.com/weiawesome/wes-io-polls/internal/policy"
	"github.com/weiawesome/wes-io-polls/internal/ratelimit"
	"github.com/weiawesome/wes-io-polls/internal/repository"
	"github.com/weiawesome/wes-io-polls/pkg/log"
)

// PollOptions tunes the poll service.
type PollOptions struct {
	CreateRequiresAdmin bool
	CacheTTL            time.Duration
}

type pollServiceImpl struct {
	repo     repository.PollRepository
	cache    cache.PollCache
	limiter  *ratelimit.Limiter
	notifier Notifier
	ids      *idgen.Generator
	opts     PollOptions
	sf       singleflight.Group
	now      func() time.Time
}

func NewPollService(
	repo repository.PollRepository,
	pollCache cache.PollCache,
	limiter *ratelimit.Limiter,
	notifier Notifier,
	ids *idgen.Generator,
	opts PollOptions,
) PollService {
	return &pollServiceImpl{
		repo:     repo,
		cache:    pollCache,
		limiter:  limiter,
		notifier: notifier,
		ids:      ids,
		opts:     opts,
		now:      time.Now,
	}
}

func (s *pollServiceImpl) CreatePoll(ctx context.Context, actor domain.Actor, in *domain.CreatePollInput) (*domain.Poll, error) {
	if s.opts.CreateRequiresAdmin && !policy.IsAdmin(actor.Role) {
		return nil, domain.ErrNotAuthorized.WithMessage("only admins can create polls")
	}
	if err := s.limiter.Check(actor.UserID, ratelimit.ActionPollCreate); err != nil {
		return nil, err
	}

	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, domain.ErrInvalidPayload.WithMessage("question is required")
	}
	options, err := normalizeOptions(in.Options)
	if err != nil {
		return nil, err
	}
	accessType, err := policy.NormalizeAccessType(in.AccessType)
	if err != nil {
		return nil, err
	}

	id, err := s.ids.PollID()
	if err != nil {
		return nil, fmt.Errorf("generate poll id: %w", err)
	}

	now := s.now().UTC()
	poll := &domain.Poll{
		ID:              id,
		Question:        question,
		Description:     strings.TrimSpace(in.Description),
		Options:         options,
		Status:          domain.PollStatusOpen,
		AccessType:      accessType,
		AllowedUserIDs:  policy.NormalizeAllowed(accessType, in.AllowedUserIDs, actor.UserID),
		KickedUserIDs:   []string{},
		Participants:    []domain.Participant{},
		CreatorID:       actor.UserID,
		CreatorUsername: actor.Username,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, poll); err != nil {
		return nil, err
	}

	audit.LogWithTarget(ctx, audit.ActionPollCreate, actor.UserID, poll.ID, "poll created")
	s.notifier.Created(poll, domain.Event{
		Name: domain.EventPollCreated,
		Data: domain.PollCreatedEvent{Poll: poll},
	})
	return poll, nil
}

func normalizeOptions(raw []string) ([]domain.Option, error) {
	if len(raw) < domain.MinPollOptions || len(raw) > domain.MaxPollOptions {
		return nil, domain.ErrInvalidOptions
	}
	options := make([]domain.Option, len(raw))
	for i, text := range raw {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, domain.ErrInvalidOptions
		}
		options[i] = domain.Option{ID: i, Text: text}
	}
	return options, nil
}

func (s *pollServiceImpl) Vote(ctx context.Context, actor domain.Actor, pollID string, optionID int) (*domain.VoteResult, error) {
	if err := s.limiter.Check(actor.UserID, ratelimit.ActionVote); err != nil {
		return nil, err
	}

	vote := &domain.Vote{
		ID:       s.ids.VoteID(),
		PollID:   pollID,
		UserID:   actor.UserID,
		Username: actor.Username,
		OptionID: optionID,
		VotedAt:  s.now().UTC(),
	}
	out, err := s.repo.ApplyVote(ctx, vote, func(p *domain.Poll) error {
		if !policy.CanAccess(p, actor.UserID) {
			return domain.ErrAccessDenied
		}
		if !p.IsOpen() {
			return domain.ErrPollClosed
		}
		if !p.HasOption(optionID) {
			return domain.ErrInvalidOption
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, pollID)

	audit.LogWithDetail(ctx, audit.ActionPollVote, actor.UserID, string(out.Action), "vote applied")
	s.notifier.Publish(out.Poll, domain.Event{
		Name: domain.EventPollResults,
		Data: domain.PollResultsEvent{Poll: out.Poll, VotedBy: actor.Username, Action: out.Action},
	})
	return &domain.VoteResult{Poll: out.Poll, UserVote: out.UserVote, Action: out.Action}, nil
}

func (s *pollServiceImpl) ClosePoll(ctx context.Context, actor domain.Actor, pollID string) (*domain.Poll, error) {
	poll, err := s.repo.Close(ctx, pollID, func(p *domain.Poll) error {
		if !policy.CanModerate(p.CreatorID, actor) {
			return domain.ErrNotAuthorized.WithMessage("only the creator or a moderator can close this poll")
		}
		return nil
	}, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, pollID)

	audit.LogWithTarget(ctx, audit.ActionPollClose, actor.UserID, pollID, "poll closed")
	s.notifier.Publish(poll, domain.Event{
		Name: domain.EventPollClosed,
		Data: domain.PollClosedEvent{Poll: poll, ClosedBy: actor.Username},
	})
	return poll, nil
}

func (s *pollServiceImpl) EditPoll(ctx context.Context, actor domain.Actor, pollID string, updates *domain.PollUpdates) (*domain.Poll, error) {
	if updates == nil || updates.IsEmpty() {
		return nil, domain.ErrInvalidPayload.WithMessage("no valid fields to update")
	}

	var question string
	if updates.Question != nil {
		question = strings.TrimSpace(*updates.Question)
		if question == "" {
			return nil, domain.ErrInvalidPayload.WithMessage("question cannot be empty")
		}
	}
	var accessType domain.AccessType
	if updates.AccessType != nil {
		var err error
		if accessType, err = policy.NormalizeAccessType(*updates.AccessType); err != nil {
			return nil, err
		}
	}

	poll, err := s.repo.Update(ctx, pollID, func(p *domain.Poll) error {
		if !policy.CanManage(p, actor) {
			return domain.ErrNotAuthorized.WithMessage("only the creator or an admin can edit this poll")
		}
		if !p.IsOpen() {
			return domain.ErrPollClosed.WithMessage("cannot edit a closed poll")
		}

		if updates.Question != nil {
			p.Question = question
		}
		if updates.Description != nil {
			p.Description = strings.TrimSpace(*updates.Description)
		}
		if updates.AccessType != nil {
			p.AccessType = accessType
		}
		allowed := p.AllowedUserIDs
		if updates.AllowedUserIDs != nil {
			allowed = *updates.AllowedUserIDs
		}
		p.AllowedUserIDs = policy.NormalizeAllowed(p.AccessType, allowed, p.CreatorID)
		return nil
	}, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, pollID)

	audit.LogWithTarget(ctx, audit.ActionPollEdit, actor.UserID, pollID, "poll edited")
	s.notifier.Changed(poll, domain.Event{
		Name: domain.EventPollUpdated,
		Data: domain.PollUpdatedEvent{Poll: poll, UpdatedBy: actor.Username},
	})
	return poll, nil
}

func (s *pollServiceImpl) DeletePoll(ctx context.Context, actor domain.Actor, pollID string) (*domain.Poll, error) {
	poll, err := s.repo.Delete(ctx, pollID, func(p *domain.Poll) error {
		if !policy.CanManage(p, actor) {
			return domain.ErrNotAuthorized.WithMessage("only the creator or an admin can delete this poll")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, pollID)

	audit.LogWithTarget(ctx, audit.ActionPollDelete, actor.UserID, pollID, "poll deleted")
	s.notifier.Deleted(poll.ChannelKey(), domain.Event{
		Name: domain.EventPollDeleted,
		Data: domain.PollDeletedEvent{PollID: poll.ID, Question: poll.Question, DeletedBy: actor.Username},
	})
	return poll, nil
}

func (s *pollServiceImpl) KickUser(ctx context.Context, actor domain.Actor, pollID, targetID string) (*domain.Poll, error) {
	if targetID == "" {
		return nil, domain.ErrInvalidPayload.WithMessage("userId is required")
	}

	var targetName string
	out, err := s.repo.Kick(ctx, pollID, targetID, func(p *domain.Poll) error {
		if !policy.CanManage(p, actor) {
			return domain.ErrNotAuthorized.WithMessage("only the creator or an admin can kick users")
		}
		if targetID == p.CreatorID {
			return domain.ErrCannotKickCreator
		}
		for _, part := range p.Participants {
			if part.UserID == targetID {
				targetName = part.Username
			}
		}
		return nil
	}, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, pollID)

	poll := out.Poll
	audit.LogWithTarget(ctx, audit.ActionPollKick, actor.UserID, targetID, "user kicked from poll")
	s.notifier.Kicked(poll, targetID,
		domain.Event{
			Name: domain.EventPollKicked,
			Data: domain.PollKickedEvent{PollID: poll.ID, Question: poll.Question, KickedBy: actor.Username},
		},
		domain.Event{
			Name: domain.EventParticipantLeft,
			Data: domain.ParticipantsEvent{PollID: poll.ID, UserID: targetID, Username: targetName, Participants: poll.Participants},
		},
	)
	if out.VoteRemoved {
		s.notifier.Publish(poll, domain.Event{
			Name: domain.EventPollUpdated,
			Data: domain.PollUpdatedEvent{Poll: poll, UpdatedBy: actor.Username},
		})
	}
	return poll, nil
}

func (s *pollServiceImpl) JoinPoll(ctx context.Context, actor domain.Actor, pollID string) (*domain.Poll, error) {
	part := domain.Participant{UserID: actor.UserID, Username: actor.Username, JoinedAt: s.now().UTC()}
	poll, added, err := s.repo.AddParticipant(ctx, pollID, part, func(p *domain.Poll) error {
		if !policy.CanAccess(p, actor.UserID) {
			return domain.ErrAccessDenied
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Admit(poll, actor.UserID)
	if added {
		s.invalidate(ctx, pollID)
		s.notifier.Publish(poll, domain.Event{
			Name: domain.EventParticipantJoined,
			Data: domain.ParticipantsEvent{PollID: poll.ID, UserID: actor.UserID, Username: actor.Username, Participants: poll.Participants},
		})
	}
	return poll, nil
}

func (s *pollServiceImpl) LeavePoll(ctx context.Context, actor domain.Actor, pollID string) (*domain.Poll, error) {
	poll, removed, err := s.repo.RemoveParticipant(ctx, pollID, actor.UserID)
	if err != nil {
		return nil, err
	}

	if removed {
		s.invalidate(ctx, pollID)
		s.notifier.Publish(poll, domain.Event{
			Name: domain.EventParticipantLeft,
			Data: domain.ParticipantsEvent{PollID: poll.ID, UserID: actor.UserID, Username: actor.Username, Participants: poll.Participants},
		})
	}
	return poll, nil
}

func (s *pollServiceImpl) GetPoll(ctx context.Context, actor domain.Actor, pollID string) (*domain.PollView, error) {
	poll, err := s.load(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccess(poll, actor.UserID) {
		return nil, domain.ErrAccessDenied
	}

	userVote, err := s.repo.UserVote(ctx, pollID, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &domain.PollView{Poll: poll, UserVote: userVote}, nil
}

func (s *pollServiceImpl) GetState(ctx context.Context, actor domain.Actor) (*domain.PollsState, error) {
	polls, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	votes, err := s.repo.UserVotes(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	views := make([]domain.PollView, 0, len(polls))
	for _, p := range polls {
		if !policy.CanAccess(p, actor.UserID) {
			continue
		}
		view := domain.PollView{Poll: p}
		if optionID, ok := votes[p.ID]; ok {
			view.UserVote = &optionID
		}
		views = append(views, view)
	}
	return &domain.PollsState{Polls: views, Timestamp: s.now().UTC()}, nil
}

// load reads a poll snapshot through the cache. Concurrent loads of the
// same poll share one database read.
func (s *pollServiceImpl) load(ctx context.Context, pollID string) (*domain.Poll, error) {
	cacheKey := s.cache.BuildKeyByID(pollID)

	result, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		return s.fetchWithCache(ctx, pollID, cacheKey)
	})
	if err != nil {
		return nil, err
	}

	cached, ok := result.(*cache.PollCacheResult)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	poll := cached.Poll
	return &poll, nil
}

func (s *pollServiceImpl) fetchWithCache(ctx context.Context, pollID, cacheKey string) (*cache.PollCacheResult, error) {
	cached, err := s.cache.Get(ctx, cacheKey)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldPollID, pollID).Msg("cache get error")
	}

	// The counter is read before the database so a mutation committed in
	// between makes the write-back a no-op.
	version, verErr := s.cache.Version(ctx, cacheKey)

	poll, err := s.repo.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}

	result := &cache.PollCacheResult{Poll: *poll}
	l := log.Ctx(ctx)
	if verErr != nil {
		l.Warn().Err(verErr).Str(log.FieldPollID, pollID).Msg("cache version error")
		return result, nil
	}
	stored, err := s.cache.SetIfVersion(ctx, cacheKey, version, result, s.opts.CacheTTL)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldPollID, pollID).Msg("cache set error")
	} else if !stored {
		l.Debug().Str(log.FieldPollID, pollID).Msg("poll snapshot not cached")
	}
	return result, nil
}

func (s *pollServiceImpl) invalidate(ctx context.Context, pollID string) {
	if err := s.cache.Delete(ctx, s.cache.BuildKeyByID(pollID)); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldPollID, pollID).Msg("cache delete error")
	}
}
