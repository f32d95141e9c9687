package domain

import "time"

// ScopeType names the kind of resource a chat thread belongs to.
type ScopeType string

const (
	ScopePoll ScopeType = "poll"
	ScopeRoom ScopeType = "room"
)

// DeletedMessageContent replaces the content of a soft-deleted message.
const DeletedMessageContent = "[message deleted]"

// Scope identifies one chat thread.
type Scope struct {
	Type ScopeType `json:"type"`
	ID   string    `json:"id"`
}

// ChannelKey is the broadcast channel of the scope.
func (s Scope) ChannelKey() string {
	if s.Type == ScopeRoom {
		return RoomChannel(s.ID)
	}
	return PollChannel(s.ID)
}

// ChatKey is the channel chat events of the scope are published on.
func (s Scope) ChatKey() string {
	return ChatChannel(s.ChannelKey())
}

// Message is one chat entry.
type Message struct {
	ID             string     `json:"id"`
	ScopeType      ScopeType  `json:"scopeType"`
	ScopeID        string     `json:"scopeId"`
	PollID         string     `json:"pollId,omitempty"`
	RoomID         string     `json:"roomId,omitempty"`
	Content        string     `json:"content"`
	SenderID       string     `json:"senderId"`
	SenderUsername string     `json:"senderUsername"`
	Deleted        bool       `json:"deleted"`
	CreatedAt      time.Time  `json:"createdAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
	DeletedBy      string     `json:"deletedBy,omitempty"`
}

// Scope returns the thread the message belongs to.
func (m *Message) Scope() Scope {
	return Scope{Type: m.ScopeType, ID: m.ScopeID}
}
