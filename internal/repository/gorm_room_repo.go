package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/pkg/database"
	"github.com/weiawesome/wes-io-polls/pkg/log"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a new GORM-based room repository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Create creates a new room. Names are globally unique.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, room.Name, ""); err != nil {
			return err
		}
		if err := tx.Create(domain.RoomToModel(room)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrRoomNameExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNameExists) {
			l.Error().Err(err).Str(log.FieldRoomID, room.ID).Msg("failed to create room in db")
		}
		return err
	}

	l.Debug().Str(log.FieldRoomID, room.ID).Msg("room created in db")
	return nil
}

// GetByID retrieves a room by ID.
func (r *GormRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	var model domain.RoomModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, id).Msg("failed to get room by id")
		return nil, err
	}
	return model.ToDomain(), nil
}

// List retrieves every room, newest first.
func (r *GormRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	var models []domain.RoomModel
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&models).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list rooms from db")
		return nil, err
	}

	rooms := make([]*domain.Room, len(models))
	for i := range models {
		rooms[i] = models[i].ToDomain()
	}
	return rooms, nil
}

// Update applies mutate to the locked room and persists it.
func (r *GormRoomRepository) Update(ctx context.Context, id string, mutate func(room *domain.Room) error, at time.Time) (*domain.Room, error) {
	var out *domain.Room

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, id)
		if err != nil {
			return err
		}
		before := room.Name
		if err := mutate(room); err != nil {
			return err
		}
		if room.Name != before {
			if err := ensureNameFree(tx, room.Name, id); err != nil {
				return err
			}
		}

		err = tx.Model(&domain.RoomModel{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":             room.Name,
			"description":      room.Description,
			"access_type":      string(room.AccessType),
			"allowed_user_ids": database.StringList(room.AllowedUserIDs),
			"updated_at":       at,
		}).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrRoomNameExists
			}
			return fmt.Errorf("update room: %w", err)
		}

		room.UpdatedAt = at
		out = room
		return nil
	})
	if err != nil {
		logUnexpected(ctx, err, id, "failed to update room")
		return nil, err
	}
	return out, nil
}

// Delete removes a room and its chat thread.
func (r *GormRoomRepository) Delete(ctx context.Context, id string, check func(room *domain.Room) error) (*domain.Room, error) {
	var out *domain.Room

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, id)
		if err != nil {
			return err
		}
		if err := check(room); err != nil {
			return err
		}

		err = tx.Where("scope_type = ? AND scope_id = ?", string(domain.ScopeRoom), id).
			Delete(&domain.MessageModel{}).Error
		if err != nil {
			return fmt.Errorf("delete room messages: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&domain.RoomModel{}).Error; err != nil {
			return fmt.Errorf("delete room: %w", err)
		}

		out = room
		return nil
	})
	if err != nil {
		logUnexpected(ctx, err, id, "failed to delete room")
		return nil, err
	}
	return out, nil
}

func lockRoom(tx *gorm.DB, id string) (*domain.Room, error) {
	var model domain.RoomModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("load room: %w", err)
	}
	return model.ToDomain(), nil
}

func ensureNameFree(tx *gorm.DB, name, exceptID string) error {
	q := tx.Model(&domain.RoomModel{}).Where("name = ?", name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("check room name: %w", err)
	}
	if count > 0 {
		return domain.ErrRoomNameExists
	}
	return nil
}
