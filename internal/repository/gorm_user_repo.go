package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/pkg/log"
)

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Create inserts a user. The first user ever registered is promoted to
// admin regardless of the requested role.
func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	l := log.Ctx(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&domain.UserModel{}).Where("username = ?", user.Username).Count(&taken).Error; err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken > 0 {
			return domain.ErrUsernameTaken
		}

		var total int64
		if err := tx.Model(&domain.UserModel{}).Count(&total).Error; err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if total == 0 {
			user.Role = domain.RoleAdmin
		}

		if err := tx.Create(domain.UserToModel(user)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrUsernameTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrUsernameTaken) {
			l.Error().Err(err).Str(log.FieldUsername, user.Username).Msg("failed to create user in db")
		}
		return err
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *GormUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByUsername retrieves a user by username.
func (r *GormUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *GormUserRepository) first(ctx context.Context, where string, arg string) (*domain.User, error) {
	var m domain.UserModel
	if err := r.db.WithContext(ctx).Where(where, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound.WithMessage("user not found")
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to get user")
		return nil, err
	}
	return m.ToDomain(), nil
}

// List returns every user ordered by username.
func (r *GormUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	var models []domain.UserModel
	if err := r.db.WithContext(ctx).Order("username").Find(&models).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list users")
		return nil, err
	}

	users := make([]*domain.User, len(models))
	for i := range models {
		users[i] = models[i].ToDomain()
	}
	return users, nil
}
