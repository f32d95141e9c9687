package domain

import "time"

// PollStatus is either open or closed. Closed is terminal.
type PollStatus string

const (
	PollStatusOpen   PollStatus = "open"
	PollStatusClosed PollStatus = "closed"
)

// VoteAction describes what a vote request did.
type VoteAction string

const (
	VoteActionVoted   VoteAction = "voted"
	VoteActionUnvoted VoteAction = "unvoted"
	VoteActionChanged VoteAction = "changed"
)

// Poll limits.
const (
	MinPollOptions = 2
	MaxPollOptions = 6
)

// Option is a poll choice. IDs are the option's index.
type Option struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Participant is a subject currently viewing a poll.
type Participant struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Poll is a question with options that subjects vote on.
type Poll struct {
	ID              string        `json:"id"`
	Question        string        `json:"question"`
	Description     string        `json:"description"`
	Options         []Option      `json:"options"`
	Status          PollStatus    `json:"status"`
	AccessType      AccessType    `json:"accessType"`
	AllowedUserIDs  []string      `json:"allowedUserIds"`
	KickedUserIDs   []string      `json:"kickedUserIds"`
	Participants    []Participant `json:"participants"`
	CreatorID       string        `json:"creatorId"`
	CreatorUsername string        `json:"creatorUsername"`
	TotalVotes      int           `json:"totalVotes"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	ClosedAt        *time.Time    `json:"closedAt,omitempty"`
}

// AccessRule implements Accessible.
func (p *Poll) AccessRule() AccessRule {
	return AccessRule{
		CreatorID:      p.CreatorID,
		AccessType:     p.AccessType,
		AllowedUserIDs: p.AllowedUserIDs,
		KickedUserIDs:  p.KickedUserIDs,
	}
}

// IsOpen reports whether the poll still accepts votes and edits.
func (p *Poll) IsOpen() bool {
	return p.Status == PollStatusOpen
}

// HasOption reports whether optionID names one of the poll's options.
func (p *Poll) HasOption(optionID int) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// ChannelKey is the broadcast channel for the poll.
func (p *Poll) ChannelKey() string {
	return PollChannel(p.ID)
}

// Vote records one subject's choice on a poll.
type Vote struct {
	ID       string    `json:"id"`
	PollID   string    `json:"pollId"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	OptionID int       `json:"optionId"`
	VotedAt  time.Time `json:"votedAt"`
}

// PollView is a poll as seen by one subject.
type PollView struct {
	*Poll
	UserVote *int `json:"userVote"`
}

// VoteResult is returned by a vote request.
type VoteResult struct {
	*Poll
	UserVote *int       `json:"userVote"`
	Action   VoteAction `json:"action"`
}

// PollsState is the snapshot of polls visible to a subject.
type PollsState struct {
	Polls     []PollView `json:"polls"`
	Timestamp time.Time  `json:"timestamp"`
}

// CreatePollInput carries the fields of a new poll.
type CreatePollInput struct {
	Question       string   `json:"question"`
	Description    string   `json:"description"`
	Options        []string `json:"options"`
	AccessType     string   `json:"accessType"`
	AllowedUserIDs []string `json:"allowedUserIds"`
}

// PollUpdates is the editable subset of a poll. Nil fields are untouched.
type PollUpdates struct {
	Question       *string   `json:"question,omitempty"`
	Description    *string   `json:"description,omitempty"`
	AccessType     *string   `json:"accessType,omitempty"`
	AllowedUserIDs *[]string `json:"allowedUserIds,omitempty"`
}

// IsEmpty reports whether no field was supplied.
func (u PollUpdates) IsEmpty() bool {
	return u.Question == nil && u.Description == nil && u.AccessType == nil && u.AllowedUserIDs == nil
}
