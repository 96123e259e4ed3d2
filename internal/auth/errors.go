package auth

import "errors"

var (
	// ErrUnauthorized indicates a missing credential.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrInvalidToken indicates a credential that failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
)
