package users

import "errors"

var (
	ErrNotFound           = errors.New("users: not found")
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	ErrUsernameTaken      = errors.New("users: username already exists")
	ErrEmailTaken         = errors.New("users: email already registered")
	ErrSessionExpired     = errors.New("users: session expired or unknown")
)
