package idp

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

// KeySetProvider fetches and caches a provider's published signing keys,
// keyed by issuer.
type KeySetProvider interface {
	KeySet(issuer string) (oidc.KeySet, error)
}

// KeySetCache lazily creates one remote key set per issuer. Each remote set
// refetches the JWKS when it meets a kid it does not know, so provider key
// rotation needs no restart. Concurrent first use may build two sets for the
// same issuer; the last one stored wins.
type KeySetCache struct {
	mu     sync.RWMutex
	urls   map[string]string
	sets   map[string]oidc.KeySet
	client *http.Client
}

var _ KeySetProvider = (*KeySetCache)(nil)

func NewKeySetCache(client *http.Client) *KeySetCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &KeySetCache{
		urls:   make(map[string]string),
		sets:   make(map[string]oidc.KeySet),
		client: client,
	}
}

// Register records where an issuer publishes its keys. Nothing is fetched
// until the first verification.
func (c *KeySetCache) Register(issuer, jwksURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.urls[issuer] != jwksURL {
		delete(c.sets, issuer)
	}
	c.urls[issuer] = jwksURL
}

func (c *KeySetCache) KeySet(issuer string) (oidc.KeySet, error) {
	c.mu.RLock()
	set, cached := c.sets[issuer]
	jwksURL, known := c.urls[issuer]
	c.mu.RUnlock()

	if cached {
		return set, nil
	}
	if !known {
		return nil, fmt.Errorf("no key set registered for issuer %s", issuer)
	}

	// The remote set keeps this context for its fetches; request contexts
	// only bound how long a verification waits on them.
	set = oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), c.client), jwksURL)

	c.mu.Lock()
	c.sets[issuer] = set
	c.mu.Unlock()

	return set, nil
}

// StaticKeySets serves fixed public keys per issuer, for tests and offline
// deployments.
type StaticKeySets map[string]*oidc.StaticKeySet

func (s StaticKeySets) KeySet(issuer string) (oidc.KeySet, error) {
	set, ok := s[issuer]
	if !ok {
		return nil, fmt.Errorf("no key set registered for issuer %s", issuer)
	}
	return set, nil
}
