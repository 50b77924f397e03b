package errs

import "errors"

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrEmptyPasswordHash  = errors.New("empty password hash")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidIssuer      = errors.New("invalid issuer")
	ErrInvalidAudience    = errors.New("invalid audience")
	ErrTokenExpired       = errors.New("token expired or not valid yet")
	ErrInvalidSubject     = errors.New("invalid subject")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyExists      = errors.New("already exists")
	ErrUserInactive       = errors.New("user is inactive")
)
