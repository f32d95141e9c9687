package repository

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-polls/internal/domain"
)

// PollCheck inspects a poll loaded under lock and vetoes the mutation by
// returning an error.
type PollCheck func(p *domain.Poll) error

// VoteOutcome is the result of a toggle vote.
type VoteOutcome struct {
	Poll     *domain.Poll
	Action   domain.VoteAction
	UserVote *int
}

// KickOutcome is the result of kicking a subject from a poll.
type KickOutcome struct {
	Poll        *domain.Poll
	VoteRemoved bool
}

// PollRepository defines persistence for polls, options, votes and
// participants. Every mutation runs in one transaction with the poll row
// locked, so counters and sets never go through in-process
// read-modify-write.
type PollRepository interface {
	Create(ctx context.Context, poll *domain.Poll) error
	GetByID(ctx context.Context, id string) (*domain.Poll, error)
	List(ctx context.Context) ([]*domain.Poll, error)
	Update(ctx context.Context, id string, mutate func(p *domain.Poll) error, at time.Time) (*domain.Poll, error)
	Close(ctx context.Context, id string, check PollCheck, at time.Time) (*domain.Poll, error)
	Delete(ctx context.Context, id string, check PollCheck) (*domain.Poll, error)

	ApplyVote(ctx context.Context, vote *domain.Vote, check PollCheck) (*VoteOutcome, error)
	UserVote(ctx context.Context, pollID, userID string) (*int, error)
	UserVotes(ctx context.Context, userID string) (map[string]int, error)

	Kick(ctx context.Context, id, targetID string, check PollCheck, at time.Time) (*KickOutcome, error)
	AddParticipant(ctx context.Context, id string, p domain.Participant, check PollCheck) (*domain.Poll, bool, error)
	RemoveParticipant(ctx context.Context, id, userID string) (*domain.Poll, bool, error)
}

// MessageRepository defines persistence for chat threads.
type MessageRepository interface {
	Append(ctx context.Context, msg *domain.Message, keep int) error
	History(ctx context.Context, scope domain.Scope, limit int) ([]*domain.Message, error)
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	SoftDelete(ctx context.Context, id, deletedBy string, at time.Time) (*domain.Message, error)
	CountByScope(ctx context.Context, scope domain.Scope) (int, error)
}

// RoomRepository defines persistence for rooms.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	List(ctx context.Context) ([]*domain.Room, error)
	Update(ctx context.Context, id string, mutate func(r *domain.Room) error, at time.Time) (*domain.Room, error)
	Delete(ctx context.Context, id string, check func(r *domain.Room) error) (*domain.Room, error)
}

// PresenceRepository defines persistence for presence records.
type PresenceRepository interface {
	Connect(ctx context.Context, userID string, at time.Time) error
	Disconnect(ctx context.Context, userID string, at time.Time) error
	AddChannel(ctx context.Context, userID, key string) error
	RemoveChannel(ctx context.Context, userID, key string) error
	Get(ctx context.Context, userID string) (*domain.Presence, error)
	ListOnline(ctx context.Context) ([]*domain.Presence, error)
	ListAll(ctx context.Context) ([]*domain.Presence, error)
}

// UserRepository defines persistence for identity records.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
}
