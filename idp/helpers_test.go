package idp_test

import (
	"crypto"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/greymass/account-creation-portal/idp"
	"github.com/greymass/account-creation-portal/internal/config"
	"github.com/greymass/account-creation-portal/keys"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testIssuer   = "https://issuer.test"
	testClientID = "com.example.web"
	testSubject  = "001.xyz"
	testEmail    = "user@example.com"
	testTeamID   = "TEAM123456"
	testKeyID    = "KEY1234567"
)

func newRSASigner(t *testing.T, kid string) *keys.KeyPairSigner {
	t.Helper()
	kp, err := keys.GenerateRSAKeyPair(kid, 2048)
	require.NoError(t, err)
	return keys.NewKeyPairSigner(kp)
}

func newAppleKeyPEM(t *testing.T) (*keys.KeyPair, string) {
	t.Helper()
	kp, err := keys.GenerateECKeyPair(testKeyID)
	require.NoError(t, err)
	doc, err := kp.ExportPrivateKeyPEM()
	require.NoError(t, err)
	return kp, doc
}

func appleConfig(privateKey string) config.AppleConfig {
	return config.AppleConfig{
		ClientID:   testClientID,
		TeamID:     testTeamID,
		KeyID:      testKeyID,
		PrivateKey: privateKey,
	}
}

func idTokenClaims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testClientID,
		"sub":   testSubject,
		"email": testEmail,
		"iat":   now.Unix(),
		"exp":   now.Add(10 * time.Minute).Unix(),
	}
}

func mintIDToken(t *testing.T, signer keys.Signer, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := signer.Sign(claims)
	require.NoError(t, err)
	return signed
}

func staticKeySets(publicKeys ...crypto.PublicKey) idp.StaticKeySets {
	return idp.StaticKeySets{
		testIssuer: &oidc.StaticKeySet{PublicKeys: publicKeys},
	}
}

func publicKey(t *testing.T, signer *keys.KeyPairSigner) crypto.PublicKey {
	t.Helper()
	key, err := signer.GetVerificationKey(&jwt.Token{
		Method: signer.GetSigningMethod(),
		Header: map[string]any{"kid": signer.KeyID()},
	})
	require.NoError(t, err)
	return key
}

func testProvider(tokenURL string, secret idp.SecretSource) *idp.Provider {
	return &idp.Provider{
		Name:     "test",
		ClientID: testClientID,
		Issuer:   testIssuer,
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://issuer.test/authorize",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL:  "https://portal.test/auth/callback/test",
		ResponseMode: idp.ResponseModeFormPost,
		Secret:       secret,
	}
}

// tamperSignature changes one character in the middle of the signature.
func tamperSignature(token string) string {
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	i := len(sig) / 2
	if sig[i] == 'A' {
		sig[i] = 'B'
	} else {
		sig[i] = 'A'
	}
	parts[2] = string(sig)
	return strings.Join(parts, ".")
}
