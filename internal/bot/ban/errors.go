package ban

import "errors"

var (
	// ErrUserNotFound indicates the ID does not resolve to any platform user.
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyBanned indicates the user already has an active ban.
	ErrAlreadyBanned = errors.New("user is already banned")
	// ErrNotBanned indicates there is no active ban to lift.
	ErrNotBanned = errors.New("user is not banned")
	// ErrNotConfigured indicates the ban channel or administrator role is unset.
	ErrNotConfigured = errors.New("ban system is not configured")
)
