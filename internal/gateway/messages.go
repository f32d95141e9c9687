package gateway

import (
	"encoding/json"

	"github.com/gin-gonic/gin/binding"

	"github.com/weiawesome/wes-io-polls/internal/domain"
)

// Inbound actions.
const (
	ActionPollCreate   = "poll:create"
	ActionPollVote     = "poll:vote"
	ActionPollClose    = "poll:close"
	ActionPollEdit     = "poll:edit"
	ActionPollDelete   = "poll:delete"
	ActionPollKick     = "poll:kickUser"
	ActionPollJoin     = "poll:join"
	ActionPollLeave    = "poll:leave"
	ActionPollGetState = "poll:getState"

	ActionChatSend      = "chat:send"
	ActionChatHistory   = "chat:history"
	ActionChatDelete    = "chat:delete"
	ActionChatJoinRoom  = "chat:joinRoom"
	ActionChatJoinPoll  = "chat:joinPoll"
	ActionChatLeaveRoom = "chat:leaveRoom"
	ActionChatLeavePoll = "chat:leavePoll"

	ActionPresenceOnline = "presence:getOnlineUsers"
	ActionPresenceAll    = "presence:getAllUsers"

	ActionPing = "ping"
)

// Request is one inbound frame. Requests without an ID get no ack.
type Request struct {
	ID      string          `json:"id"`
	Action  string          `json:"action" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

type PollIDPayload struct {
	PollID string `json:"pollId" binding:"required"`
}

type VotePayload struct {
	PollID   string `json:"pollId" binding:"required"`
	OptionID *int   `json:"optionId" binding:"required"`
}

type EditPayload struct {
	PollID  string             `json:"pollId" binding:"required"`
	Updates domain.PollUpdates `json:"updates"`
}

type KickPayload struct {
	PollID string `json:"pollId" binding:"required"`
	UserID string `json:"userId" binding:"required"`
}

type CreatePollPayload struct {
	Question       string   `json:"question" binding:"required"`
	Description    string   `json:"description"`
	Options        []string `json:"options"`
	AccessType     string   `json:"accessType"`
	AllowedUserIDs []string `json:"allowedUserIds"`
}

// ScopePayload names a chat thread by exactly one of pollId or roomId.
type ScopePayload struct {
	PollID string `json:"pollId"`
	RoomID string `json:"roomId"`
}

func (p ScopePayload) scope() (domain.Scope, error) {
	switch {
	case p.PollID != "" && p.RoomID == "":
		return domain.Scope{Type: domain.ScopePoll, ID: p.PollID}, nil
	case p.RoomID != "" && p.PollID == "":
		return domain.Scope{Type: domain.ScopeRoom, ID: p.RoomID}, nil
	default:
		return domain.Scope{}, domain.ErrInvalidPayload.WithMessage("exactly one of pollId or roomId is required")
	}
}

type ChatSendPayload struct {
	ScopePayload
	Content string `json:"content" binding:"required"`
}

type MessageIDPayload struct {
	MessageID string `json:"messageId" binding:"required"`
}

type RoomIDPayload struct {
	RoomID string `json:"roomId" binding:"required"`
}

// decode unmarshals raw into v and runs its binding rules.
func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.ErrInvalidPayload.WithMessage("malformed payload")
	}
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return domain.ErrInvalidPayload.WithMessage("invalid payload: " + err.Error())
	}
	return nil
}
