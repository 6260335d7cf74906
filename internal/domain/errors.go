package domain

import "errors"

var (
	ErrPartyNotFound = errors.New("party not found")
	ErrUserNotFound  = errors.New("user not found")
)
