package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/weiawesome/wes-io-polls/internal/audit"
	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/idgen"
	"github.com/weiawesome/wes-io-polls/internal/policy"
	"github.com/weiawesome/wes-io-polls/internal/repository"
)

type roomServiceImpl struct {
	repo     repository.RoomRepository
	notifier Notifier
	ids      *idgen.Generator
	now      func() time.Time
}

func NewRoomService(repo repository.RoomRepository, notifier Notifier, ids *idgen.Generator) RoomService {
	return &roomServiceImpl{
		repo:     repo,
		notifier: notifier,
		ids:      ids,
		now:      time.Now,
	}
}

func (s *roomServiceImpl) CreateRoom(ctx context.Context, actor domain.Actor, in *domain.CreateRoomInput) (*domain.Room, error) {
	if !policy.IsAdmin(actor.Role) {
		return nil, domain.ErrNotAuthorized.WithMessage("only admins can create rooms")
	}

	name, err := validRoomName(in.Name)
	if err != nil {
		return nil, err
	}
	accessType, err := policy.NormalizeAccessType(in.AccessType)
	if err != nil {
		return nil, err
	}

	id, err := s.ids.RoomID()
	if err != nil {
		return nil, fmt.Errorf("generate room id: %w", err)
	}

	now := s.now().UTC()
	room := &domain.Room{
		ID:              id,
		Name:            name,
		Description:     strings.TrimSpace(in.Description),
		AccessType:      accessType,
		AllowedUserIDs:  policy.NormalizeAllowed(accessType, in.AllowedUserIDs, actor.UserID),
		CreatorID:       actor.UserID,
		CreatorUsername: actor.Username,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, err
	}

	audit.LogWithTarget(ctx, audit.ActionRoomCreate, actor.UserID, room.ID, "room created")
	s.notifier.Created(room, domain.Event{
		Name: domain.EventRoomCreated,
		Data: domain.RoomEvent{Room: room, By: actor.Username},
	})
	return room, nil
}

func validRoomName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n < domain.MinRoomNameLength || n > domain.MaxRoomNameLength {
		return "", domain.ErrInvalidPayload.WithMessage(
			fmt.Sprintf("room name must be %d-%d characters", domain.MinRoomNameLength, domain.MaxRoomNameLength))
	}
	return name, nil
}

// ListRooms returns the rooms visible to actor, newest first.
func (s *roomServiceImpl) ListRooms(ctx context.Context, actor domain.Actor) ([]*domain.Room, error) {
	rooms, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]*domain.Room, 0, len(rooms))
	for _, r := range rooms {
		if policy.CanAccess(r, actor.UserID) {
			visible = append(visible, r)
		}
	}
	return visible, nil
}

func (s *roomServiceImpl) GetRoom(ctx context.Context, actor domain.Actor, roomID string) (*domain.Room, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccess(room, actor.UserID) {
		return nil, domain.ErrAccessDenied
	}
	return room, nil
}

func (s *roomServiceImpl) UpdateRoom(ctx context.Context, actor domain.Actor, roomID string, updates *domain.RoomUpdates) (*domain.Room, error) {
	if updates == nil || updates.IsEmpty() {
		return nil, domain.ErrInvalidPayload.WithMessage("no valid fields to update")
	}

	var name string
	if updates.Name != nil {
		var err error
		if name, err = validRoomName(*updates.Name); err != nil {
			return nil, err
		}
	}
	var accessType domain.AccessType
	if updates.AccessType != nil {
		var err error
		if accessType, err = policy.NormalizeAccessType(*updates.AccessType); err != nil {
			return nil, err
		}
	}

	return s.update(ctx, actor, roomID, func(r *domain.Room) error {
		if !policy.CanManage(r, actor) {
			return domain.ErrNotAuthorized.WithMessage("only the creator or an admin can update this room")
		}
		if updates.Name != nil {
			r.Name = name
		}
		if updates.Description != nil {
			r.Description = strings.TrimSpace(*updates.Description)
		}
		if updates.AccessType != nil {
			r.AccessType = accessType
		}
		allowed := r.AllowedUserIDs
		if updates.AllowedUserIDs != nil {
			allowed = *updates.AllowedUserIDs
		}
		r.AllowedUserIDs = policy.NormalizeAllowed(r.AccessType, allowed, r.CreatorID)
		return nil
	})
}

func (s *roomServiceImpl) DeleteRoom(ctx context.Context, actor domain.Actor, roomID string) (*domain.Room, error) {
	room, err := s.repo.Delete(ctx, roomID, func(r *domain.Room) error {
		if !policy.CanManage(r, actor) {
			return domain.ErrNotAuthorized.WithMessage("only the creator or an admin can delete this room")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.LogWithTarget(ctx, audit.ActionRoomDelete, actor.UserID, roomID, "room deleted")
	s.notifier.Deleted(room.ChannelKey(), domain.Event{
		Name: domain.EventRoomDeleted,
		Data: domain.RoomDeletedEvent{RoomID: room.ID, Name: room.Name, DeletedBy: actor.Username},
	})
	return room, nil
}

// AddAllowedUser puts userID on a selected room's allow-list.
func (s *roomServiceImpl) AddAllowedUser(ctx context.Context, actor domain.Actor, roomID, userID string) (*domain.Room, error) {
	if userID == "" {
		return nil, domain.ErrInvalidPayload.WithMessage("userId is required")
	}
	return s.update(ctx, actor, roomID, func(r *domain.Room) error {
		if r.CreatorID != actor.UserID {
			return domain.ErrNotAuthorized.WithMessage("only the room creator can manage allowed users")
		}
		if r.AccessType != domain.AccessSelected {
			return domain.ErrInvalidPayload.WithMessage("room is not selected-access")
		}
		r.AllowedUserIDs = policy.NormalizeAllowed(r.AccessType, append(slices.Clone(r.AllowedUserIDs), userID), r.CreatorID)
		return nil
	})
}

// RemoveAllowedUser takes userID off a room's allow-list. The creator
// always stays.
func (s *roomServiceImpl) RemoveAllowedUser(ctx context.Context, actor domain.Actor, roomID, userID string) (*domain.Room, error) {
	if userID == "" {
		return nil, domain.ErrInvalidPayload.WithMessage("userId is required")
	}
	return s.update(ctx, actor, roomID, func(r *domain.Room) error {
		if r.CreatorID != actor.UserID {
			return domain.ErrNotAuthorized.WithMessage("only the room creator can manage allowed users")
		}
		remaining := slices.DeleteFunc(slices.Clone(r.AllowedUserIDs), func(id string) bool { return id == userID })
		r.AllowedUserIDs = policy.NormalizeAllowed(r.AccessType, remaining, r.CreatorID)
		return nil
	})
}

func (s *roomServiceImpl) update(ctx context.Context, actor domain.Actor, roomID string, mutate func(r *domain.Room) error) (*domain.Room, error) {
	room, err := s.repo.Update(ctx, roomID, mutate, s.now().UTC())
	if err != nil {
		return nil, err
	}

	audit.LogWithTarget(ctx, audit.ActionRoomUpdate, actor.UserID, roomID, "room updated")
	s.notifier.Changed(room, domain.Event{
		Name: domain.EventRoomUpdated,
		Data: domain.RoomEvent{Room: room, By: actor.Username},
	})
	return room, nil
}
