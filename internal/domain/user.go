package domain

import "time"

// Username and password constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MinPasswordLength = 6
)

// User is an identity record.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Actor returns the user as an acting subject.
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// Credentials is a register or login request.
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Session is returned on successful login or registration.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}
