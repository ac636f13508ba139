package userpool

import "errors"

var (
	// ErrInvalidOptions is returned by New for unsupported pool options
	ErrInvalidOptions = errors.New("invalid user pool options")

	// ErrMissingUsername is returned when saving a user without a username
	ErrMissingUsername = errors.New("username is required")
)
