package domain

import (
	"time"

	"github.com/weiawesome/wes-io-polls/pkg/database"
)

// PollModel is the GORM model for the polls table.
type PollModel struct {
	ID              string              `gorm:"type:varchar(32);primaryKey"`
	Question        string              `gorm:"type:varchar(500);not null"`
	Description     string              `gorm:"type:text"`
	Status          string              `gorm:"type:varchar(10);index;not null;default:'open'"`
	AccessType      string              `gorm:"type:varchar(10);not null;default:'public'"`
	AllowedUserIDs  database.StringList `gorm:"type:text"`
	KickedUserIDs   database.StringList `gorm:"type:text"`
	CreatorID       string              `gorm:"type:varchar(32);index;not null"`
	CreatorUsername string              `gorm:"type:varchar(50);not null"`
	TotalVotes      int                 `gorm:"not null;default:0"`
	CreatedAt       time.Time           `gorm:"index"`
	UpdatedAt       time.Time
	ClosedAt        *time.Time
	Options         []PollOptionModel `gorm:"foreignKey:PollID;references:ID"`
}

// TableName specifies the table name for PollModel.
func (PollModel) TableName() string {
	return "polls"
}

// PollOptionModel is one option row. Votes is only ever changed with
// atomic increments.
type PollOptionModel struct {
	PollID   string `gorm:"type:varchar(32);primaryKey;autoIncrement:false"`
	OptionID int    `gorm:"primaryKey;autoIncrement:false"`
	Text     string `gorm:"type:varchar(200);not null"`
	Votes    int    `gorm:"not null;default:0"`
}

// TableName specifies the table name for PollOptionModel.
func (PollOptionModel) TableName() string {
	return "poll_options"
}

// VoteModel is the GORM model for the votes table.
type VoteModel struct {
	ID       string    `gorm:"type:varchar(36);primaryKey"`
	PollID   string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_votes_poll_user"`
	UserID   string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_votes_poll_user"`
	Username string    `gorm:"type:varchar(50);not null"`
	OptionID int       `gorm:"not null"`
	VotedAt  time.Time `gorm:"not null"`
}

// TableName specifies the table name for VoteModel.
func (VoteModel) TableName() string {
	return "votes"
}

// ParticipantModel is the GORM model for the poll_participants table.
type ParticipantModel struct {
	PollID   string    `gorm:"type:varchar(32);primaryKey;autoIncrement:false"`
	UserID   string    `gorm:"type:varchar(32);primaryKey;autoIncrement:false"`
	Username string    `gorm:"type:varchar(50);not null"`
	JoinedAt time.Time `gorm:"index;not null"`
}

// TableName specifies the table name for ParticipantModel.
func (ParticipantModel) TableName() string {
	return "poll_participants"
}

// MessageModel is the GORM model for the messages table.
type MessageModel struct {
	ID             string    `gorm:"type:varchar(40);primaryKey"`
	ScopeType      string    `gorm:"type:varchar(10);not null;index:idx_messages_scope,priority:1"`
	ScopeID        string    `gorm:"type:varchar(32);not null;index:idx_messages_scope,priority:2"`
	Content        string    `gorm:"type:text;not null"`
	SenderID       string    `gorm:"type:varchar(32);index;not null"`
	SenderUsername string    `gorm:"type:varchar(50);not null"`
	Deleted        bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"not null"`
	DeletedAt      *time.Time
	DeletedBy      string `gorm:"type:varchar(32)"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// RoomModel is the GORM model for the rooms table.
type RoomModel struct {
	ID              string              `gorm:"type:varchar(32);primaryKey"`
	Name            string              `gorm:"type:varchar(50);uniqueIndex;not null"`
	Description     string              `gorm:"type:text"`
	AccessType      string              `gorm:"type:varchar(10);not null;default:'public'"`
	AllowedUserIDs  database.StringList `gorm:"type:text"`
	CreatorID       string              `gorm:"type:varchar(32);index;not null"`
	CreatorUsername string              `gorm:"type:varchar(50);not null"`
	CreatedAt       time.Time           `gorm:"index"`
	UpdatedAt       time.Time
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// PresenceModel is the GORM model for the presence table.
type PresenceModel struct {
	UserID      string              `gorm:"type:varchar(32);primaryKey"`
	Status      string              `gorm:"type:varchar(10);index;not null"`
	Channels    database.StringList `gorm:"type:text"`
	ConnectedAt *time.Time
	LastSeenAt  *time.Time
}

// TableName specifies the table name for PresenceModel.
func (PresenceModel) TableName() string {
	return "presence"
}

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID           string    `gorm:"type:varchar(32);primaryKey"`
	Username     string    `gorm:"type:varchar(20);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:varchar(100);not null"`
	Role         string    `gorm:"type:varchar(20);not null;default:'user'"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// Models lists every table for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&UserModel{},
		&PollModel{},
		&PollOptionModel{},
		&VoteModel{},
		&ParticipantModel{},
		&MessageModel{},
		&RoomModel{},
		&PresenceModel{},
	}
}

// ToDomain converts PollModel to a domain Poll. Participants are loaded
// separately.
func (m *PollModel) ToDomain() *Poll {
	options := make([]Option, len(m.Options))
	for i, o := range m.Options {
		options[i] = Option{ID: o.OptionID, Text: o.Text, Votes: o.Votes}
	}
	return &Poll{
		ID:              m.ID,
		Question:        m.Question,
		Description:     m.Description,
		Options:         options,
		Status:          PollStatus(m.Status),
		AccessType:      AccessType(m.AccessType),
		AllowedUserIDs:  nonNil(m.AllowedUserIDs),
		KickedUserIDs:   nonNil(m.KickedUserIDs),
		Participants:    []Participant{},
		CreatorID:       m.CreatorID,
		CreatorUsername: m.CreatorUsername,
		TotalVotes:      m.TotalVotes,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		ClosedAt:        m.ClosedAt,
	}
}

// PollToModel converts a domain Poll to PollModel, options included.
func PollToModel(p *Poll) *PollModel {
	options := make([]PollOptionModel, len(p.Options))
	for i, o := range p.Options {
		options[i] = PollOptionModel{PollID: p.ID, OptionID: o.ID, Text: o.Text, Votes: o.Votes}
	}
	return &PollModel{
		ID:              p.ID,
		Question:        p.Question,
		Description:     p.Description,
		Status:          string(p.Status),
		AccessType:      string(p.AccessType),
		AllowedUserIDs:  database.StringList(nonNil(p.AllowedUserIDs)),
		KickedUserIDs:   database.StringList(nonNil(p.KickedUserIDs)),
		CreatorID:       p.CreatorID,
		CreatorUsername: p.CreatorUsername,
		TotalVotes:      p.TotalVotes,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		ClosedAt:        p.ClosedAt,
		Options:         options,
	}
}

// ToDomain converts VoteModel to a domain Vote.
func (m *VoteModel) ToDomain() *Vote {
	return &Vote{
		ID:       m.ID,
		PollID:   m.PollID,
		UserID:   m.UserID,
		Username: m.Username,
		OptionID: m.OptionID,
		VotedAt:  m.VotedAt,
	}
}

// ToDomain converts ParticipantModel to a domain Participant.
func (m *ParticipantModel) ToDomain() Participant {
	return Participant{UserID: m.UserID, Username: m.Username, JoinedAt: m.JoinedAt}
}

// ToDomain converts MessageModel to a domain Message.
func (m *MessageModel) ToDomain() *Message {
	msg := &Message{
		ID:             m.ID,
		ScopeType:      ScopeType(m.ScopeType),
		ScopeID:        m.ScopeID,
		Content:        m.Content,
		SenderID:       m.SenderID,
		SenderUsername: m.SenderUsername,
		Deleted:        m.Deleted,
		CreatedAt:      m.CreatedAt,
		DeletedAt:      m.DeletedAt,
		DeletedBy:      m.DeletedBy,
	}
	switch msg.ScopeType {
	case ScopePoll:
		msg.PollID = m.ScopeID
	case ScopeRoom:
		msg.RoomID = m.ScopeID
	}
	return msg
}

// MessageToModel converts a domain Message to MessageModel.
func MessageToModel(m *Message) *MessageModel {
	return &MessageModel{
		ID:             m.ID,
		ScopeType:      string(m.ScopeType),
		ScopeID:        m.ScopeID,
		Content:        m.Content,
		SenderID:       m.SenderID,
		SenderUsername: m.SenderUsername,
		Deleted:        m.Deleted,
		CreatedAt:      m.CreatedAt,
		DeletedAt:      m.DeletedAt,
		DeletedBy:      m.DeletedBy,
	}
}

// ToDomain converts RoomModel to a domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:              m.ID,
		Name:            m.Name,
		Description:     m.Description,
		AccessType:      AccessType(m.AccessType),
		AllowedUserIDs:  nonNil(m.AllowedUserIDs),
		CreatorID:       m.CreatorID,
		CreatorUsername: m.CreatorUsername,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// RoomToModel converts a domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	return &RoomModel{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		AccessType:      string(r.AccessType),
		AllowedUserIDs:  database.StringList(nonNil(r.AllowedUserIDs)),
		CreatorID:       r.CreatorID,
		CreatorUsername: r.CreatorUsername,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// ToDomain converts PresenceModel to a domain Presence.
func (m *PresenceModel) ToDomain() *Presence {
	return &Presence{
		UserID:      m.UserID,
		Status:      PresenceStatus(m.Status),
		Channels:    nonNil(m.Channels),
		ConnectedAt: m.ConnectedAt,
		LastSeenAt:  m.LastSeenAt,
	}
}

// ToDomain converts UserModel to a domain User.
func (m *UserModel) ToDomain() *User {
	return &User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		CreatedAt:    m.CreatedAt,
	}
}

// UserToModel converts a domain User to UserModel.
func UserToModel(u *User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
