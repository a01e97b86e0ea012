package idp

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/greymass/account-creation-portal/internal/config"
	apperrors "github.com/greymass/account-creation-portal/internal/errors"
	"github.com/greymass/account-creation-portal/keys"
)

// AssertionLifetime is the validity window of a client assertion.
const AssertionLifetime = time.Hour

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// AssertionGenerator mints the ES256 JWT Apple accepts as client_secret.
// A fresh assertion is signed for every exchange; nothing is cached.
type AssertionGenerator struct {
	signer   keys.Signer
	teamID   string
	clientID string
	audience string
}

var _ SecretSource = (*AssertionGenerator)(nil)

// NewAssertionGenerator imports the Apple signing key. Key material that
// cannot be imported yields a *errors.KeyImportError.
func NewAssertionGenerator(cfg config.AppleConfig) (*AssertionGenerator, error) {
	keyPair, err := keys.LoadECKeyPair(cfg.KeyID, cfg.PrivateKey)
	if err != nil {
		return nil, &apperrors.KeyImportError{Err: err}
	}
	return NewAssertionGeneratorWithSigner(keys.NewKeyPairSigner(keyPair), cfg.TeamID, cfg.ClientID)
}

func NewAssertionGeneratorWithSigner(signer keys.Signer, teamID, clientID string) (*AssertionGenerator, error) {
	if alg := signer.GetSigningMethod().Alg(); alg != keys.ES256 {
		return nil, &apperrors.KeyImportError{Err: fmt.Errorf("client assertions need %s, signer uses %s", keys.ES256, alg)}
	}
	return &AssertionGenerator{
		signer:   signer,
		teamID:   teamID,
		clientID: clientID,
		audience: AppleIssuer,
	}, nil
}

// Generate signs an assertion issued at now and expiring one hour later.
func (g *AssertionGenerator) Generate(now time.Time) (string, error) {
	iat := now.Unix()
	claims := jwt.MapClaims{
		"iss": g.teamID,
		"sub": g.clientID,
		"aud": g.audience,
		"iat": iat,
		"exp": iat + int64(AssertionLifetime/time.Second),
	}

	signed, err := g.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign client assertion: %w", err)
	}
	return signed, nil
}

func (g *AssertionGenerator) ClientSecret(context.Context) (string, error) {
	return g.Generate(NowTimeFunc())
}

func (g *AssertionGenerator) KeyID() string {
	return g.signer.KeyID()
}
