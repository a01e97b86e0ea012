package authflowrepo

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/greymass/account-creation-portal/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu     sync.RWMutex
	states map[string]*AuthFlowState
	ttl    time.Duration
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryRepo{
		states: make(map[string]*AuthFlowState),
		ttl:    ttl,
	}
}

// Upsert stores or updates an auth flow state. Expired entries are swept on
// every write.
func (r *InMemoryRepo) Upsert(_ context.Context, state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := NowTimeFunc()
	for key, existing := range r.states {
		if r.expired(existing, now) {
			delete(r.states, key)
		}
	}

	stored := *authState
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	r.states[state] = &stored
	return nil
}

// Get retrieves an auth flow state by state parameter
func (r *InMemoryRepo) Get(_ context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	authState, exists := r.states[state]
	if !exists || r.expired(authState, NowTimeFunc()) {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "auth flow state")
	}

	found := *authState
	return &found, nil
}

// Delete removes an auth flow state
func (r *InMemoryRepo) Delete(_ context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}

func (r *InMemoryRepo) Consume(_ context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	authState, exists := r.states[state]
	delete(r.states, state)
	if !exists || r.expired(authState, NowTimeFunc()) {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "auth flow state")
	}
	return authState, nil
}

func (r *InMemoryRepo) expired(authState *AuthFlowState, now time.Time) bool {
	return now.Sub(authState.CreatedAt) > r.ttl
}
