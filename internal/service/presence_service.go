package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/repository"
)

type presenceServiceImpl struct {
	presence repository.PresenceRepository
	users    repository.UserRepository
	now      func() time.Time
}

func NewPresenceService(presence repository.PresenceRepository, users repository.UserRepository) PresenceService {
	return &presenceServiceImpl{
		presence: presence,
		users:    users,
		now:      time.Now,
	}
}

func (s *presenceServiceImpl) Connect(ctx context.Context, userID string) error {
	return s.presence.Connect(ctx, userID, s.now().UTC())
}

func (s *presenceServiceImpl) Disconnect(ctx context.Context, userID string) error {
	return s.presence.Disconnect(ctx, userID, s.now().UTC())
}

func (s *presenceServiceImpl) JoinChannel(ctx context.Context, userID, key string) error {
	return s.presence.AddChannel(ctx, userID, key)
}

func (s *presenceServiceImpl) LeaveChannel(ctx context.Context, userID, key string) error {
	return s.presence.RemoveChannel(ctx, userID, key)
}

// OnlineUsers lists online presence rows joined with identity. A row
// without an identity record is shown as Unknown.
func (s *presenceServiceImpl) OnlineUsers(ctx context.Context) ([]domain.UserPresence, error) {
	rows, err := s.presence.ListOnline(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.userIndex(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.UserPresence, 0, len(rows))
	for _, p := range rows {
		up := domain.UserPresence{
			UserID:      p.UserID,
			Username:    domain.UnknownUsername,
			Status:      p.Status,
			Channels:    p.Channels,
			ConnectedAt: p.ConnectedAt,
			LastSeenAt:  p.LastSeenAt,
		}
		if u, ok := users[p.UserID]; ok {
			up.Username = u.Username
			up.Role = u.Role
		}
		out = append(out, up)
	}
	return out, nil
}

// AllUsers lists every identity record with its presence. Subjects that
// never connected are offline with no timestamps.
func (s *presenceServiceImpl) AllUsers(ctx context.Context) ([]domain.UserPresence, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.presence.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byUser := make(map[string]*domain.Presence, len(rows))
	for _, p := range rows {
		byUser[p.UserID] = p
	}

	out := make([]domain.UserPresence, 0, len(users))
	for _, u := range users {
		up := domain.UserPresence{
			UserID:   u.ID,
			Username: u.Username,
			Role:     u.Role,
			Status:   domain.PresenceOffline,
		}
		if p, ok := byUser[u.ID]; ok {
			up.Status = p.Status
			up.Channels = p.Channels
			up.ConnectedAt = p.ConnectedAt
			up.LastSeenAt = p.LastSeenAt
		}
		out = append(out, up)
	}
	return out, nil
}

func (s *presenceServiceImpl) userIndex(ctx context.Context) (map[string]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]*domain.User, len(users))
	for _, u := range users {
		idx[u.ID] = u
	}
	return idx, nil
}
