package domain

import "time"

// Channel key prefixes.
const (
	PollChannelPrefix = "poll:"
	RoomChannelPrefix = "room:"
	UserChannelPrefix = "user:"
	ChatChannelPrefix = "chat:"
)

// PollChannel returns the channel key of a poll.
func PollChannel(pollID string) string { return PollChannelPrefix + pollID }

// RoomChannel returns the channel key of a room.
func RoomChannel(roomID string) string { return RoomChannelPrefix + roomID }

// ChatChannel returns the chat channel paired with a poll or room
// channel key.
func ChatChannel(key string) string { return ChatChannelPrefix + key }

// UserChannel returns the private channel key of a subject.
func UserChannel(userID string) string { return UserChannelPrefix + userID }

// Outbound event names.
const (
	EventPollCreated        = "poll:created"
	EventPollResults        = "poll:results"
	EventPollClosed         = "poll:closed"
	EventPollUpdated        = "poll:updated"
	EventPollDeleted        = "poll:deleted"
	EventPollKicked         = "poll:kicked"
	EventParticipantJoined  = "poll:participantJoined"
	EventParticipantLeft    = "poll:participantLeft"
	EventChatNewMessage     = "chat:new_message"
	EventChatMessageDeleted = "chat:message_deleted"
	EventUserOnline         = "user:online"
	EventUserOffline        = "user:offline"
	EventRoomCreated        = "room:created"
	EventRoomUpdated        = "room:updated"
	EventRoomDeleted        = "room:deleted"
	EventAuthForceLogout    = "auth:forceLogout"
)

// Event is one outbound notification.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}

// PollCreatedEvent is published when a poll is created.
type PollCreatedEvent struct {
	Poll *Poll `json:"poll"`
}

// PollResultsEvent is published after every vote mutation.
type PollResultsEvent struct {
	Poll    *Poll      `json:"poll"`
	VotedBy string     `json:"votedBy"`
	Action  VoteAction `json:"action"`
}

// PollClosedEvent is published when a poll closes.
type PollClosedEvent struct {
	Poll     *Poll  `json:"poll"`
	ClosedBy string `json:"closedBy"`
}

// PollUpdatedEvent is published after an edit.
type PollUpdatedEvent struct {
	Poll      *Poll  `json:"poll"`
	UpdatedBy string `json:"updatedBy"`
}

// PollDeletedEvent is published before a poll channel is closed.
type PollDeletedEvent struct {
	PollID    string `json:"pollId"`
	Question  string `json:"question"`
	DeletedBy string `json:"deletedBy"`
}

// PollKickedEvent is sent to the kicked subject only.
type PollKickedEvent struct {
	PollID   string `json:"pollId"`
	Question string `json:"question"`
	KickedBy string `json:"kickedBy"`
}

// ParticipantsEvent is published on join, leave and kick.
type ParticipantsEvent struct {
	PollID       string        `json:"pollId"`
	UserID       string        `json:"userId"`
	Username     string        `json:"username"`
	Participants []Participant `json:"participants"`
}

// NewMessageEvent is published when a chat message is appended.
type NewMessageEvent struct {
	Message *Message `json:"message"`
}

// MessageDeletedEvent is published when a chat message is redacted.
type MessageDeletedEvent struct {
	MessageID string    `json:"messageId"`
	ScopeType ScopeType `json:"scopeType"`
	ScopeID   string    `json:"scopeId"`
	PollID    string    `json:"pollId,omitempty"`
	RoomID    string    `json:"roomId,omitempty"`
}

// UserPresenceEvent is broadcast when a subject comes online or goes offline.
type UserPresenceEvent struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// RoomEvent is published on room create and update.
type RoomEvent struct {
	Room *Room  `json:"room"`
	By   string `json:"by"`
}

// RoomDeletedEvent is published before a room channel is closed.
type RoomDeletedEvent struct {
	RoomID    string `json:"roomId"`
	Name      string `json:"name"`
	DeletedBy string `json:"deletedBy"`
}

// ForceLogoutEvent tells a subject's clients their session ended.
type ForceLogoutEvent struct {
	Reason string `json:"reason"`
}
