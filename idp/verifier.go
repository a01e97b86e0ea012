package idp

import (
	"context"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/greymass/account-creation-portal/internal/errors"
)

// IdentityClaims is what a verified ID token says about the user.
type IdentityClaims struct {
	Subject string
	Email   string
	Name    string
	Picture string
	Issuer  string
	Expiry  time.Time
}

// Verifier checks ID tokens against the issuing provider's key set.
type Verifier struct {
	keySets KeySetProvider
	now     func() time.Time
}

func NewVerifier(keySets KeySetProvider) *Verifier {
	return &Verifier{keySets: keySets, now: time.Now}
}

// WithClock returns a copy of the verifier that reads time from now.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	return &Verifier{keySets: v.keySets, now: now}
}

// Verify validates signature, issuer, audience and expiry. A non-empty
// nonce must match the token's nonce claim. Signature or claim failures are
// *errors.TokenVerificationError; a verified token without an email is
// errors.ErrMissingEmail.
func (v *Verifier) Verify(ctx context.Context, p *Provider, rawIDToken, nonce string) (*IdentityClaims, error) {
	keySet, err := v.keySets.KeySet(p.Issuer)
	if err != nil {
		return nil, &apperrors.TokenVerificationError{Err: err}
	}

	verifier := oidc.NewVerifier(p.Issuer, keySet, &oidc.Config{
		ClientID:             p.ClientID,
		SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
		Now:                  v.now,
	})

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, &apperrors.TokenVerificationError{Err: err}
	}

	if nonce != "" && idToken.Nonce != nonce {
		return nil, &apperrors.TokenVerificationError{Err: apperrors.ErrNonceMismatch}
	}

	var claims struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, &apperrors.TokenVerificationError{Err: err}
	}

	if claims.Email == "" {
		return nil, apperrors.Wrapf(apperrors.ErrMissingEmail, "subject %s", idToken.Subject)
	}

	return &IdentityClaims{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
		Issuer:  idToken.Issuer,
		Expiry:  idToken.Expiry,
	}, nil
}
