package domain

import "time"

// Room name limits.
const (
	MinRoomNameLength = 3
	MaxRoomNameLength = 50
)

// Room is a standalone chat space with its own access rule.
type Room struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	AccessType      AccessType `json:"accessType"`
	AllowedUserIDs  []string   `json:"allowedUserIds"`
	CreatorID       string     `json:"creatorId"`
	CreatorUsername string     `json:"creatorUsername"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// AccessRule implements Accessible.
func (r *Room) AccessRule() AccessRule {
	return AccessRule{
		CreatorID:      r.CreatorID,
		AccessType:     r.AccessType,
		AllowedUserIDs: r.AllowedUserIDs,
	}
}

// ChannelKey is the broadcast channel for the room.
func (r *Room) ChannelKey() string {
	return RoomChannel(r.ID)
}

// CreateRoomInput carries the fields of a new room.
type CreateRoomInput struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	AccessType     string   `json:"accessType"`
	AllowedUserIDs []string `json:"allowedUserIds"`
}

// RoomUpdates is the editable subset of a room.
type RoomUpdates struct {
	Name           *string   `json:"name,omitempty"`
	Description    *string   `json:"description,omitempty"`
	AccessType     *string   `json:"accessType,omitempty"`
	AllowedUserIDs *[]string `json:"allowedUserIds,omitempty"`
}

// IsEmpty reports whether no field was supplied.
func (u RoomUpdates) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.AccessType == nil && u.AllowedUserIDs == nil
}
