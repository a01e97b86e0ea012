package sessions

import (
	"crypto"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/greymass/account-creation-portal/internal/errors"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/crypto/hkdf"
)

const (
	// DefaultMaxAge is how long a session cookie stays valid.
	DefaultMaxAge = 30 * 24 * time.Hour

	clockTolerance = 15 * time.Second
	derivedKeySize = 64
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Codec encrypts session records into compact JWEs (dir, A256CBC-HS512).
// The content key is derived from the server secret with HKDF-SHA256, salted
// with the cookie name, so the same secret yields a different key per
// cookie.
type Codec struct {
	key    []byte
	keyID  string
	maxAge time.Duration
}

func NewCodec(secret, salt string, maxAge time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is empty")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	key, err := deriveKey(secret, salt)
	if err != nil {
		return nil, err
	}

	symmetric, err := jwk.FromRaw(key)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap session key: %w", err)
	}
	thumbprint, err := symmetric.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("failed to compute session key thumbprint: %w", err)
	}

	return &Codec{
		key:    key,
		keyID:  base64.RawURLEncoding.EncodeToString(thumbprint),
		maxAge: maxAge,
	}, nil
}

func deriveKey(secret, salt string) ([]byte, error) {
	info := fmt.Sprintf("Auth.js Generated Encryption Key (%s)", salt)
	key := make([]byte, derivedKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), []byte(salt), []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive session key: %w", err)
	}
	return key, nil
}

func (c *Codec) MaxAge() time.Duration {
	return c.maxAge
}

type payload struct {
	Record
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	ID        string `json:"jti"`
}

// Encode returns the encrypted cookie value for record.
func (c *Codec) Encode(record Record) (string, error) {
	now := NowTimeFunc()
	plaintext, err := json.Marshal(payload{
		Record:    record,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(c.maxAge).Unix(),
		ID:        uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	headers := jwe.NewHeaders()
	if err := headers.Set(jwe.KeyIDKey, c.keyID); err != nil {
		return "", fmt.Errorf("failed to set session key id: %w", err)
	}

	encrypted, err := jwe.Encrypt(plaintext,
		jwe.WithKey(jwa.DIRECT, c.key),
		jwe.WithContentEncryption(jwa.A256CBC_HS512),
		jwe.WithProtectedHeaders(headers),
	)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt session: %w", err)
	}
	return string(encrypted), nil
}

// Decode reverses Encode. Values that do not decrypt under this codec's key
// are errors.ErrSessionNotFound; decrypted but expired sessions are
// errors.ErrSessionExpired.
func (c *Codec) Decode(value string) (*Session, error) {
	plaintext, err := jwe.Decrypt([]byte(value), jwe.WithKey(jwa.DIRECT, c.key))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrSessionNotFound, "decrypt: %v", err)
	}

	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrSessionNotFound, "unmarshal: %v", err)
	}

	expiresAt := time.Unix(p.ExpiresAt, 0)
	if p.ExpiresAt == 0 || NowTimeFunc().After(expiresAt.Add(clockTolerance)) {
		return nil, apperrors.ErrSessionExpired
	}

	return &Session{
		Record:    p.Record,
		ID:        p.ID,
		IssuedAt:  time.Unix(p.IssuedAt, 0),
		ExpiresAt: expiresAt,
	}, nil
}
