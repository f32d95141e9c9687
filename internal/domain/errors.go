package domain

import (
	"errors"
	"net/http"
)

// Error is a classified failure returned to clients as {code, message}.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Message }

// ErrorCode implements response.Coder.
func (e *Error) ErrorCode() string { return e.Code }

// HTTPStatus implements response.Coder.
func (e *Error) HTTPStatus() int { return e.Status }

// Is matches any *Error with the same code, so a re-worded error still
// compares equal to its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Status: e.Status}
}

var (
	// Authentication
	ErrAuthFailed         = &Error{Code: "AUTH_FAILED", Message: "invalid or expired token", Status: http.StatusUnauthorized}
	ErrTokenRequired      = &Error{Code: "TOKEN_REQUIRED", Message: "authentication token required", Status: http.StatusUnauthorized}
	ErrTokenExpired       = &Error{Code: "TOKEN_EXPIRED", Message: "token has expired", Status: http.StatusUnauthorized}
	ErrInvalidCredentials = &Error{Code: "INVALID_CREDENTIALS", Message: "invalid credentials", Status: http.StatusUnauthorized}

	// Permissions
	ErrAccessDenied  = &Error{Code: "ACCESS_DENIED", Message: "you do not have access to this resource", Status: http.StatusForbidden}
	ErrNotAuthorized = &Error{Code: "NOT_AUTHORIZED", Message: "not authorized to perform this action", Status: http.StatusForbidden}

	// Validation
	ErrInvalidPayload    = &Error{Code: "INVALID_PAYLOAD", Message: "invalid payload", Status: http.StatusBadRequest}
	ErrInvalidOptions    = &Error{Code: "INVALID_OPTIONS", Message: "poll must have between 2 and 6 non-empty options", Status: http.StatusBadRequest}
	ErrInvalidAccessType = &Error{Code: "INVALID_ACCESS_TYPE", Message: "access type must be public, private or selected", Status: http.StatusBadRequest}
	ErrInvalidOption     = &Error{Code: "INVALID_OPTION", Message: "invalid poll option", Status: http.StatusBadRequest}
	ErrMessageTooLarge   = &Error{Code: "MESSAGE_TOO_LARGE", Message: "message is too long", Status: http.StatusBadRequest}
	ErrCannotKickCreator = &Error{Code: "CANNOT_KICK_CREATOR", Message: "the poll creator cannot be kicked", Status: http.StatusBadRequest}

	// Lookup
	ErrNotFound     = &Error{Code: "NOT_FOUND", Message: "resource not found", Status: http.StatusNotFound}
	ErrPollNotFound = &Error{Code: "POLL_NOT_FOUND", Message: "poll not found", Status: http.StatusNotFound}
	ErrRoomNotFound = &Error{Code: "ROOM_NOT_FOUND", Message: "room not found", Status: http.StatusNotFound}

	// State
	ErrPollClosed     = &Error{Code: "POLL_CLOSED", Message: "poll is closed", Status: http.StatusConflict}
	ErrConflict       = &Error{Code: "CONFLICT", Message: "conflict", Status: http.StatusConflict}
	ErrRoomNameExists = &Error{Code: "ROOM_NAME_EXISTS", Message: "a room with this name already exists", Status: http.StatusConflict}
	ErrUsernameTaken  = &Error{Code: "USERNAME_TAKEN", Message: "username already taken", Status: http.StatusConflict}

	ErrRateLimited = &Error{Code: "RATE_LIMITED", Message: "too many requests, please slow down", Status: http.StatusTooManyRequests}

	ErrInternal = &Error{Code: "INTERNAL_ERROR", Message: "internal server error", Status: http.StatusInternalServerError}
)

// AsError classifies err. Unclassified errors become ErrInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return ErrInternal
}
