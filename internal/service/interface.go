package service

import (
	"context"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/fanout"
)

// PollService runs the poll and vote state machine.
type PollService interface {
	CreatePoll(ctx context.Context, actor domain.Actor, in *domain.CreatePollInput) (*domain.Poll, error)
	Vote(ctx context.Context, actor domain.Actor, pollID string, optionID int) (*domain.VoteResult, error)
	ClosePoll(ctx context.Context, actor domain.Actor, pollID string) (*domain.Poll, error)
	EditPoll(ctx context.Context, actor domain.Actor, pollID string, updates *domain.PollUpdates) (*domain.Poll, error)
	DeletePoll(ctx context.Context, actor domain.Actor, pollID string) (*domain.Poll, error)
	KickUser(ctx context.Context, actor domain.Actor, pollID, targetID string) (*domain.Poll, error)
	JoinPoll(ctx context.Context, actor domain.Actor, pollID string) (*domain.Poll, error)
	LeavePoll(ctx context.Context, actor domain.Actor, pollID string) (*domain.Poll, error)
	GetPoll(ctx context.Context, actor domain.Actor, pollID string) (*domain.PollView, error)
	GetState(ctx context.Context, actor domain.Actor) (*domain.PollsState, error)
}

// ChatService runs poll and room chat threads.
type ChatService interface {
	SendMessage(ctx context.Context, actor domain.Actor, scope domain.Scope, content string) (*domain.Message, error)
	History(ctx context.Context, actor domain.Actor, scope domain.Scope) ([]*domain.Message, error)
	DeleteMessage(ctx context.Context, actor domain.Actor, messageID string) (*domain.Message, error)
	// CanJoin resolves scope and checks that actor may use it.
	CanJoin(ctx context.Context, actor domain.Actor, scope domain.Scope) (fanout.Resource, error)
}

// PresenceService tracks who is connected and where.
type PresenceService interface {
	Connect(ctx context.Context, userID string) error
	Disconnect(ctx context.Context, userID string) error
	JoinChannel(ctx context.Context, userID, key string) error
	LeaveChannel(ctx context.Context, userID, key string) error
	OnlineUsers(ctx context.Context) ([]domain.UserPresence, error)
	AllUsers(ctx context.Context) ([]domain.UserPresence, error)
}

// RoomService manages standalone chat rooms.
type RoomService interface {
	CreateRoom(ctx context.Context, actor domain.Actor, in *domain.CreateRoomInput) (*domain.Room, error)
	ListRooms(ctx context.Context, actor domain.Actor) ([]*domain.Room, error)
	GetRoom(ctx context.Context, actor domain.Actor, roomID string) (*domain.Room, error)
	UpdateRoom(ctx context.Context, actor domain.Actor, roomID string, updates *domain.RoomUpdates) (*domain.Room, error)
	DeleteRoom(ctx context.Context, actor domain.Actor, roomID string) (*domain.Room, error)
	AddAllowedUser(ctx context.Context, actor domain.Actor, roomID, userID string) (*domain.Room, error)
	RemoveAllowedUser(ctx context.Context, actor domain.Actor, roomID, userID string) (*domain.Room, error)
}

// Notifier delivers domain events to live connections. *fanout.Fanout
// implements it.
type Notifier interface {
	Created(r fanout.Resource, ev domain.Event) int
	Changed(r fanout.Resource, ev domain.Event) int
	Publish(r fanout.Resource, ev domain.Event) int
	PublishKey(key string, ev domain.Event) int
	Kicked(r fanout.Resource, targetID string, notice, ev domain.Event) int
	Deleted(key string, ev domain.Event) int
	Admit(r fanout.Resource, userID string)
}
