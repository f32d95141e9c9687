package domain

import "time"

// PresenceStatus is online or offline.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// UnknownUsername is shown for presence rows without an identity record.
const UnknownUsername = "Unknown"

// Presence is a subject's connection state.
type Presence struct {
	UserID      string         `json:"userId"`
	Status      PresenceStatus `json:"status"`
	Channels    []string       `json:"channels"`
	ConnectedAt *time.Time     `json:"connectedAt"`
	LastSeenAt  *time.Time     `json:"lastSeenAt"`
}

// UserPresence merges identity and presence for listing.
type UserPresence struct {
	UserID      string         `json:"userId"`
	Username    string         `json:"username"`
	Role        string         `json:"role,omitempty"`
	Status      PresenceStatus `json:"status"`
	Channels    []string       `json:"channels,omitempty"`
	ConnectedAt *time.Time     `json:"connectedAt"`
	LastSeenAt  *time.Time     `json:"lastSeenAt"`
}
