package auth

import "errors"

// Sentinel errors for operator authentication.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrInvalidHash        = errors.New("auth: invalid password hash")
	ErrEmptyPassword      = errors.New("auth: password must not be empty")
	ErrNoOperators        = errors.New("auth: no operators configured")
	ErrWeakSecret         = errors.New("auth: signing secret too short")
)
