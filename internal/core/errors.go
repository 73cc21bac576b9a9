package core

import (
	"errors"
	"strings"
)

// Error codes sent to clients.
const (
	ErrCodeAuth           = "auth_error"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeNotInRoom      = "not_in_room"
	ErrCodeInvalidContent = "invalid_content"
	ErrCodePersistence    = "persistence_failure"
	ErrCodeBadRequest     = "bad_request"
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeRateLimited    = "rate_limited"
)

var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrNotInRoom            = errors.New("not in room")
	ErrInvalidContent       = errors.New("invalid content")
	ErrPersistence          = errors.New("persistence failure")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrClientClosed         = errors.New("client closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// toCoreError maps an operation error onto what the client is told.
// Unauthenticated and unauthorized callers get the same code and text on purpose.
func toCoreError(err error) *CoreError {
	var ce *CoreError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrNotAuthorized):
		return coreError(ErrCodeUnauthorized, "not authorized")
	case errors.Is(err, ErrNotInRoom):
		return coreError(ErrCodeNotInRoom, "not in room")
	case errors.Is(err, ErrInvalidContent):
		return coreError(ErrCodeInvalidContent, strings.TrimPrefix(err.Error(), ErrInvalidContent.Error()+": "))
	case errors.Is(err, ErrPersistence):
		return coreError(ErrCodePersistence, "message could not be saved")
	case errors.Is(err, ErrAlreadyAuthenticated):
		return coreError(ErrCodeBadRequest, "already authenticated")
	default:
		return coreError(ErrCodeBadRequest, "bad request")
	}
}
