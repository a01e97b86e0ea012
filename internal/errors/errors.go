package errors

import (
	"errors"
	"fmt"
)

// Common error values for the sign-in flows
var (
	// Callback errors
	ErrMissingCode     = errors.New("missing authorization code")
	ErrMalformedForm   = errors.New("malformed callback body")
	ErrProviderError   = errors.New("provider returned an error")
	ErrInvalidState    = errors.New("invalid state")
	ErrUnknownProvider = errors.New("unknown provider")

	// Token errors
	ErrMissingIDToken = errors.New("missing id_token in token response")
	ErrMissingEmail   = errors.New("email not found in id token")
	ErrNonceMismatch  = errors.New("nonce mismatch")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import.
func New(text string) error {
	return errors.New(text)
}
