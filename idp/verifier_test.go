package idp_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/greymass/account-creation-portal/idp"
	apperrors "github.com/greymass/account-creation-portal/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestVerifier_Verify(t *testing.T) {
	signer := newRSASigner(t, "apple-key-1")
	provider := testProvider("https://issuer.test/token", nil)
	now := time.Now()

	verifier := idp.NewVerifier(staticKeySets(publicKey(t, signer)))

	t.Run("valid token", func(t *testing.T) {
		claims := idTokenClaims(now)
		claims["name"] = "Ada Lovelace"
		claims["nonce"] = "n-1"

		identity, err := verifier.Verify(context.Background(), provider, mintIDToken(t, signer, claims), "n-1")
		require.NoError(t, err)
		require.Equal(t, testSubject, identity.Subject)
		require.Equal(t, testEmail, identity.Email)
		require.Equal(t, "Ada Lovelace", identity.Name)
		require.Equal(t, testIssuer, identity.Issuer)
		require.WithinDuration(t, now.Add(10*time.Minute), identity.Expiry, time.Second)
	})

	failures := []struct {
		name   string
		token  func() string
		nonce  string
		verify *idp.Verifier
	}{
		{
			name:  "tampered signature",
			token: func() string { return tamperSignature(mintIDToken(t, signer, idTokenClaims(now))) },
		},
		{
			name: "signed by unknown key",
			token: func() string {
				return mintIDToken(t, newRSASigner(t, "apple-key-1"), idTokenClaims(now))
			},
		},
		{
			name: "wrong audience",
			token: func() string {
				claims := idTokenClaims(now)
				claims["aud"] = "com.someone.else"
				return mintIDToken(t, signer, claims)
			},
		},
		{
			name: "wrong issuer",
			token: func() string {
				claims := idTokenClaims(now)
				claims["iss"] = "https://evil.test"
				return mintIDToken(t, signer, claims)
			},
		},
		{
			name:   "expired",
			token:  func() string { return mintIDToken(t, signer, idTokenClaims(now)) },
			verify: verifier.WithClock(func() time.Time { return now.Add(time.Hour) }),
		},
		{
			name: "nonce mismatch",
			token: func() string {
				claims := idTokenClaims(now)
				claims["nonce"] = "n-other"
				return mintIDToken(t, signer, claims)
			},
			nonce: "n-1",
		},
		{
			name:  "not a jwt",
			token: func() string { return "garbage" },
		},
	}

	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			v := verifier
			if tc.verify != nil {
				v = tc.verify
			}
			_, err := v.Verify(context.Background(), provider, tc.token(), tc.nonce)

			var verifyErr *apperrors.TokenVerificationError
			require.True(t, errors.As(err, &verifyErr), "got %v", err)
			require.Equal(t, 500, apperrors.HTTPStatus(err))
		})
	}
}

func TestVerifier_Verify_MissingEmail(t *testing.T) {
	signer := newRSASigner(t, "apple-key-1")
	verifier := idp.NewVerifier(staticKeySets(publicKey(t, signer)))

	claims := idTokenClaims(time.Now())
	delete(claims, "email")

	_, err := verifier.Verify(context.Background(), testProvider("", nil), mintIDToken(t, signer, claims), "")
	require.ErrorIs(t, err, apperrors.ErrMissingEmail)

	var verifyErr *apperrors.TokenVerificationError
	require.False(t, errors.As(err, &verifyErr))
}

func TestVerifier_Verify_UnknownIssuer(t *testing.T) {
	signer := newRSASigner(t, "k")
	verifier := idp.NewVerifier(idp.StaticKeySets{})

	_, err := verifier.Verify(context.Background(), testProvider("", nil), mintIDToken(t, signer, jwt.MapClaims{"sub": "x"}), "")
	var verifyErr *apperrors.TokenVerificationError
	require.True(t, errors.As(err, &verifyErr))
}
