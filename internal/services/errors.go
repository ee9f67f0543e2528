package services

import "errors"

var (
	ErrForbidden      = errors.New("not allowed")
	ErrBlocked        = errors.New("user is blocked")
	ErrNotParticipant = errors.New("not a participant of this conversation")
	ErrSelfAction     = errors.New("cannot perform this action on yourself")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
)
