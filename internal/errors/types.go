package errors

import (
	"fmt"
	"net/http"
)

// ClientError is a failure caused by the inbound request itself. It is the
// only kind whose message may be shown to the user.
type ClientError struct {
	Err error
}

func NewClientError(err error) *ClientError {
	return &ClientError{Err: err}
}

func (e *ClientError) Error() string { return e.Err.Error() }
func (e *ClientError) Unwrap() error { return e.Err }

// UpstreamExchangeError carries the token endpoint's answer for diagnostics.
// Status is zero when no HTTP response was received (timeout, refused
// connection, cancelled context).
type UpstreamExchangeError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamExchangeError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	}
	return fmt.Sprintf("token exchange failed with status %d", e.Status)
}

func (e *UpstreamExchangeError) Unwrap() error { return e.Err }

// Temporary reports whether another attempt could succeed.
func (e *UpstreamExchangeError) Temporary() bool {
	return e.Status == 0 || e.Status >= http.StatusInternalServerError
}

// TokenVerificationError is returned when an ID token's signature or
// standard claims do not check out.
type TokenVerificationError struct {
	Err error
}

func (e *TokenVerificationError) Error() string {
	return fmt.Sprintf("id token verification failed: %v", e.Err)
}

func (e *TokenVerificationError) Unwrap() error { return e.Err }

// KeyImportError is returned when signing key material cannot be parsed.
type KeyImportError struct {
	Err error
}

func (e *KeyImportError) Error() string {
	return fmt.Sprintf("key import failed: %v", e.Err)
}

func (e *KeyImportError) Unwrap() error { return e.Err }

// HTTPStatus maps an error from any stage of a sign-in to the status the
// client sees. It is the only place this decision is made. A missing email
// is the user's account lacking data, so it is reported as a client error.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var clientErr *ClientError
	switch {
	case As(err, &clientErr),
		Is(err, ErrMissingCode),
		Is(err, ErrMalformedForm),
		Is(err, ErrProviderError),
		Is(err, ErrInvalidState),
		Is(err, ErrMissingEmail):
		return http.StatusBadRequest
	case Is(err, ErrUnknownProvider), Is(err, ErrNotFound):
		return http.StatusNotFound
	case Is(err, ErrUnsupported):
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text returned to the client for err. Internal
// detail never leaves the process.
func PublicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		for _, known := range []error{ErrMissingCode, ErrMalformedForm, ErrProviderError, ErrInvalidState, ErrMissingEmail} {
			if Is(err, known) {
				return known.Error()
			}
		}
		return "bad request"
	case http.StatusNotFound:
		return "not found"
	case http.StatusMethodNotAllowed:
		return "method not allowed"
	default:
		return "error processing sign-in"
	}
}
