// Package authflowrepo stores the state of sign-ins that have been started
// but not yet completed. Entries are single use and short lived.
package authflowrepo

import (
	"context"
	"time"
)

// DefaultTTL bounds how long a user has to finish signing in with the
// provider.
const DefaultTTL = 10 * time.Minute

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type AuthFlowState struct {
	Provider     string    `json:"provider"`
	CodeVerifier string    `json:"code_verifier,omitempty"`
	Nonce        string    `json:"nonce"`
	ReturnURL    string    `json:"return_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repo is keyed by the OAuth state parameter. Missing or expired entries
// are reported as errors.ErrNotFound.
type Repo interface {
	Upsert(ctx context.Context, state string, authState *AuthFlowState) error
	Get(ctx context.Context, state string) (*AuthFlowState, error)
	Delete(ctx context.Context, state string) error
	// Consume returns the entry and removes it in one step, so a state can
	// complete at most one sign-in.
	Consume(ctx context.Context, state string) (*AuthFlowState, error)
}
