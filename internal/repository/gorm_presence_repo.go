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

// GormPresenceRepository implements PresenceRepository using GORM.
type GormPresenceRepository struct {
	db *gorm.DB
}

// NewGormPresenceRepository creates a new GORM-based presence repository.
func NewGormPresenceRepository(db *gorm.DB) *GormPresenceRepository {
	return &GormPresenceRepository{db: db}
}

// Connect upserts the subject as online.
func (r *GormPresenceRepository) Connect(ctx context.Context, userID string, at time.Time) error {
	model := &domain.PresenceModel{
		UserID:      userID,
		Status:      string(domain.PresenceOnline),
		Channels:    database.StringList{},
		ConnectedAt: &at,
		LastSeenAt:  &at,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "connected_at", "last_seen_at"}),
	}).Create(model).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to mark user online")
		return err
	}
	return nil
}

// Disconnect marks the subject offline and clears its channels.
func (r *GormPresenceRepository) Disconnect(ctx context.Context, userID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.PresenceModel{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"status":       string(domain.PresenceOffline),
			"channels":     database.StringList{},
			"last_seen_at": at,
		}).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to mark user offline")
		return err
	}
	return nil
}

// AddChannel adds key to the subject's channel set.
func (r *GormPresenceRepository) AddChannel(ctx context.Context, userID, key string) error {
	return r.editChannels(ctx, userID, func(chs []string) []string {
		if slices.Contains(chs, key) {
			return chs
		}
		return append(chs, key)
	})
}

// RemoveChannel removes key from the subject's channel set.
func (r *GormPresenceRepository) RemoveChannel(ctx context.Context, userID, key string) error {
	return r.editChannels(ctx, userID, func(chs []string) []string {
		return slices.DeleteFunc(chs, func(v string) bool { return v == key })
	})
}

func (r *GormPresenceRepository) editChannels(ctx context.Context, userID string, edit func([]string) []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m domain.PresenceModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load presence: %w", err)
		}

		channels := edit(slices.Clone([]string(m.Channels)))
		return tx.Model(&domain.PresenceModel{}).
			Where("user_id = ?", userID).
			Update("channels", database.StringList(channels)).Error
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to update presence channels")
	}
	return err
}

// Get returns the subject's presence record.
func (r *GormPresenceRepository) Get(ctx context.Context, userID string) (*domain.Presence, error) {
	var m domain.PresenceModel
	if err := r.db.WithContext(ctx).First(&m, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound.WithMessage("presence not found")
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// ListOnline returns every online presence record.
func (r *GormPresenceRepository) ListOnline(ctx context.Context) ([]*domain.Presence, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("status = ?", string(domain.PresenceOnline)))
}

// ListAll returns every presence record.
func (r *GormPresenceRepository) ListAll(ctx context.Context) ([]*domain.Presence, error) {
	return r.list(ctx, r.db.WithContext(ctx))
}

func (r *GormPresenceRepository) list(ctx context.Context, q *gorm.DB) ([]*domain.Presence, error) {
	var models []domain.PresenceModel
	if err := q.Order("user_id").Find(&models).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list presence")
		return nil, err
	}

	out := make([]*domain.Presence, len(models))
	for i := range models {
		out[i] = models[i].ToDomain()
	}
	return out, nil
}
