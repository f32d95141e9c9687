package domain

// AccessType controls who may see a poll or room.
type AccessType string

const (
	AccessPublic   AccessType = "public"
	AccessPrivate  AccessType = "private"
	AccessSelected AccessType = "selected"
)

// Roles carried in identity tokens.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// AccessRule is the access-relevant projection of a poll or room.
type AccessRule struct {
	CreatorID      string
	AccessType     AccessType
	AllowedUserIDs []string
	KickedUserIDs  []string
}

// Accessible is implemented by resources guarded by an AccessRule.
type Accessible interface {
	AccessRule() AccessRule
}

// Actor is the authenticated subject performing an operation.
type Actor struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// AccessRule lets a bare rule be checked like the resource it came from.
func (r AccessRule) AccessRule() AccessRule { return r }
