package domain

import "errors"

var (
	ErrNotFound         = errors.New("record not found")
	ErrConflict         = errors.New("conflicting record already exists")
	ErrCapacityExceeded = errors.New("participant cap reached")
	ErrInvalidState     = errors.New("action not valid for current status")
)
