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
	"github.com/weiawesome/wes-io-polls/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM.
// Message ids are ULIDs, so ordering by id is ordering by creation.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Append inserts msg and hard-deletes the oldest messages of its scope
// beyond keep. The owning poll or room row is locked first, so concurrent
// appends to one scope count and prune one after another.
func (r *GormMessageRepository) Append(ctx context.Context, msg *domain.Message, keep int) error {
	l := log.Ctx(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockScope(tx, msg.Scope()); err != nil {
			return err
		}
		if err := tx.Create(domain.MessageToModel(msg)).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if keep <= 0 {
			return nil
		}

		var count int64
		scoped := tx.Model(&domain.MessageModel{}).
			Where("scope_type = ? AND scope_id = ?", string(msg.ScopeType), msg.ScopeID)
		if err := scoped.Count(&count).Error; err != nil {
			return fmt.Errorf("count messages: %w", err)
		}
		surplus := int(count) - keep
		if surplus <= 0 {
			return nil
		}

		var stale []string
		err := tx.Model(&domain.MessageModel{}).
			Where("scope_type = ? AND scope_id = ?", string(msg.ScopeType), msg.ScopeID).
			Order("id ASC").
			Limit(surplus).
			Pluck("id", &stale).Error
		if err != nil {
			return fmt.Errorf("select surplus messages: %w", err)
		}
		if err := tx.Where("id IN ?", stale).Delete(&domain.MessageModel{}).Error; err != nil {
			return fmt.Errorf("prune messages: %w", err)
		}

		l.Debug().Int("pruned", len(stale)).Str(log.FieldChannel, msg.Scope().ChannelKey()).Msg("chat history pruned")
		return nil
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to append message")
		return err
	}
	return nil
}

// lockScope selects the scope's owner row FOR UPDATE where the dialect
// supports it. A missing owner locks nothing.
func lockScope(tx *gorm.DB, scope domain.Scope) error {
	var owner interface{} = &domain.PollModel{}
	if scope.Type == domain.ScopeRoom {
		owner = &domain.RoomModel{}
	}
	var ids []string
	err := tx.Model(owner).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", scope.ID).
		Pluck("id", &ids).Error
	if err != nil {
		return fmt.Errorf("lock %s %s: %w", scope.Type, scope.ID, err)
	}
	return nil
}

// History returns the newest limit messages of scope, oldest first.
func (r *GormMessageRepository) History(ctx context.Context, scope domain.Scope, limit int) ([]*domain.Message, error) {
	q := r.db.WithContext(ctx).
		Where("scope_type = ? AND scope_id = ?", string(scope.Type), scope.ID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []domain.MessageModel
	if err := q.Find(&models).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldChannel, scope.ChannelKey()).Msg("failed to load chat history")
		return nil, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[i] = models[i].ToDomain()
	}
	slices.Reverse(messages)
	return messages, nil
}

// GetByID retrieves a message by ID.
func (r *GormMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.MessageModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound.WithMessage("message not found")
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldMessageID, id).Msg("failed to get message by id")
		return nil, err
	}
	return m.ToDomain(), nil
}

// SoftDelete redacts a message in place. Redacting an already deleted
// message leaves the first deletion's metadata untouched.
func (r *GormMessageRepository) SoftDelete(ctx context.Context, id, deletedBy string, at time.Time) (*domain.Message, error) {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]interface{}{
			"deleted":    true,
			"content":    domain.DeletedMessageContent,
			"deleted_at": at,
			"deleted_by": deletedBy,
		})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldMessageID, id).Msg("failed to soft delete message")
		return nil, result.Error
	}

	msg, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected > 0 {
		l.Debug().Str(log.FieldMessageID, id).Msg("message redacted in db")
	}
	return msg, nil
}

// CountByScope returns the number of stored messages in scope.
func (r *GormMessageRepository) CountByScope(ctx context.Context, scope domain.Scope) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("scope_type = ? AND scope_id = ?", string(scope.Type), scope.ID).
		Count(&count).Error
	return int(count), err
}
