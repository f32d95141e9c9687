package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/weiawesome/wes-io-polls/internal/audit"
	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/fanout"
	"github.com/weiawesome/wes-io-polls/internal/idgen"
	"github.com/weiawesome/wes-io-polls/internal/policy"
	"github.com/weiawesome/wes-io-polls/internal/ratelimit"
	"github.com/weiawesome/wes-io-polls/internal/repository"
	"github.com/weiawesome/wes-io-polls/pkg/log"
)

// ChatOptions bounds chat threads.
type ChatOptions struct {
	MaxMessageLength int
	HistorySize      int
}

type chatServiceImpl struct {
	messages repository.MessageRepository
	polls    repository.PollRepository
	rooms    repository.RoomRepository
	limiter  *ratelimit.Limiter
	notifier Notifier
	ids      *idgen.Generator
	opts     ChatOptions
	now      func() time.Time
}

func NewChatService(
	messages repository.MessageRepository,
	polls repository.PollRepository,
	rooms repository.RoomRepository,
	limiter *ratelimit.Limiter,
	notifier Notifier,
	ids *idgen.Generator,
	opts ChatOptions,
) ChatService {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 500
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 50
	}
	return &chatServiceImpl{
		messages: messages,
		polls:    polls,
		rooms:    rooms,
		limiter:  limiter,
		notifier: notifier,
		ids:      ids,
		opts:     opts,
		now:      time.Now,
	}
}

func (s *chatServiceImpl) SendMessage(ctx context.Context, actor domain.Actor, scope domain.Scope, content string) (*domain.Message, error) {
	if err := s.limiter.Check(actor.UserID, ratelimit.ActionChatSend); err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrInvalidPayload.WithMessage("message content is required")
	}
	if utf8.RuneCountInString(content) > s.opts.MaxMessageLength {
		return nil, domain.ErrMessageTooLarge.WithMessage(
			fmt.Sprintf("message exceeds %d characters", s.opts.MaxMessageLength))
	}

	if _, err := s.CanJoin(ctx, actor, scope); err != nil {
		return nil, err
	}

	id, err := s.ids.MessageID()
	if err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}
	msg := &domain.Message{
		ID:             id,
		ScopeType:      scope.Type,
		ScopeID:        scope.ID,
		Content:        content,
		SenderID:       actor.UserID,
		SenderUsername: actor.Username,
		CreatedAt:      s.now().UTC(),
	}
	setScopeIDs(msg)

	if err := s.messages.Append(ctx, msg, s.opts.HistorySize); err != nil {
		return nil, err
	}

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldMessageID, msg.ID).Str(log.FieldChannel, scope.ChannelKey()).Msg("chat message stored")
	audit.LogWithTarget(ctx, audit.ActionChatSend, actor.UserID, scope.ChannelKey(), "chat message sent")

	s.notifier.PublishKey(scope.ChatKey(), domain.Event{
		Name: domain.EventChatNewMessage,
		Data: domain.NewMessageEvent{Message: msg},
	})
	return msg, nil
}

func (s *chatServiceImpl) History(ctx context.Context, actor domain.Actor, scope domain.Scope) ([]*domain.Message, error) {
	if _, err := s.CanJoin(ctx, actor, scope); err != nil {
		return nil, err
	}
	return s.messages.History(ctx, scope, s.opts.HistorySize)
}

func (s *chatServiceImpl) DeleteMessage(ctx context.Context, actor domain.Actor, messageID string) (*domain.Message, error) {
	if messageID == "" {
		return nil, domain.ErrInvalidPayload.WithMessage("messageId is required")
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !policy.CanModerate(msg.SenderID, actor) {
		return nil, domain.ErrNotAuthorized.WithMessage("only the sender or a moderator can delete this message")
	}

	msg, err = s.messages.SoftDelete(ctx, messageID, actor.UserID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	audit.LogWithTarget(ctx, audit.ActionChatDelete, actor.UserID, messageID, "chat message deleted")
	s.notifier.PublishKey(msg.Scope().ChatKey(), domain.Event{
		Name: domain.EventChatMessageDeleted,
		Data: domain.MessageDeletedEvent{
			MessageID: msg.ID,
			ScopeType: msg.ScopeType,
			ScopeID:   msg.ScopeID,
			PollID:    msg.PollID,
			RoomID:    msg.RoomID,
		},
	})
	return msg, nil
}

func (s *chatServiceImpl) CanJoin(ctx context.Context, actor domain.Actor, scope domain.Scope) (fanout.Resource, error) {
	if scope.ID == "" {
		return nil, domain.ErrInvalidPayload.WithMessage("scope id is required")
	}

	var (
		res fanout.Resource
		err error
	)
	switch scope.Type {
	case domain.ScopePoll:
		res, err = s.polls.GetByID(ctx, scope.ID)
	case domain.ScopeRoom:
		res, err = s.rooms.GetByID(ctx, scope.ID)
	default:
		return nil, domain.ErrInvalidPayload.WithMessage("unknown chat scope")
	}
	if err != nil {
		return nil, err
	}

	if !policy.CanAccess(res, actor.UserID) {
		return nil, domain.ErrAccessDenied
	}
	return res, nil
}

func setScopeIDs(m *domain.Message) {
	switch m.ScopeType {
	case domain.ScopePoll:
		m.PollID = m.ScopeID
	case domain.ScopeRoom:
		m.RoomID = m.ScopeID
	}
}
