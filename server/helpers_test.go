package server_test

import (
	"crypto"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/greymass/account-creation-portal/idp"
	"github.com/greymass/account-creation-portal/internal/config"
	"github.com/greymass/account-creation-portal/keys"
	"github.com/greymass/account-creation-portal/server"
	"github.com/greymass/account-creation-portal/server/authflowrepo"
	"github.com/greymass/account-creation-portal/sessions"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	baseURL        = "https://portal.test"
	appleClientID  = "com.example.web"
	googleClientID = "google-client"
	testSubject    = "001.xyz"
	testEmail      = "user@example.com"
	testSecret     = "server-secret-for-tests-only"
)

// tokenEndpoint stands in for a provider's token endpoint. It mints a fresh
// ID token per request from claims().
type tokenEndpoint struct {
	mu       sync.Mutex
	status   int
	claims   jwt.MapClaims
	signer   keys.Signer
	lastForm url.Values
	calls    atomic.Int32
}

func (e *tokenEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.calls.Add(1)
	_ = r.ParseForm()

	e.mu.Lock()
	e.lastForm = r.PostForm
	status, claims, signer := e.status, e.claims, e.signer
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"The code has expired or has been revoked."}`))
		return
	}

	idToken, err := signer.Sign(claims)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "apple-access-token",
		"refresh_token": "apple-refresh-token",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"id_token":      idToken,
	})
}

func (e *tokenEndpoint) set(fn func(e *tokenEndpoint)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e)
}

func (e *tokenEndpoint) form() url.Values {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastForm
}

type fixture struct {
	srv      *server.Server
	codec    *sessions.Codec
	flows    *authflowrepo.InMemoryRepo
	apple    *tokenEndpoint
	google   *tokenEndpoint
	appleKey *keys.KeyPair
}

func idTokenClaims(issuer, audience string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   issuer,
		"aud":   audience,
		"sub":   testSubject,
		"email": testEmail,
		"iat":   now.Unix(),
		"exp":   now.Add(10 * time.Minute).Unix(),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	idKeys, err := keys.GenerateRSAKeyPair("id-token-key", 2048)
	require.NoError(t, err)
	idSigner := keys.NewKeyPairSigner(idKeys)

	appleKey, err := keys.GenerateECKeyPair("APPLEKEY01")
	require.NoError(t, err)
	applePEM, err := appleKey.ExportPrivateKeyPEM()
	require.NoError(t, err)

	cfg := &config.Config{
		EnvVars: config.EnvVars{Env: "TEST", BaseURL: baseURL},
		Apple: config.AppleConfig{
			ClientID: appleClientID, TeamID: "TEAM000001", KeyID: "APPLEKEY01", PrivateKey: applePEM,
		},
		Google: config.GoogleConfig{ClientID: googleClientID, ClientSecret: "google-secret"},
		Session: config.SessionConfig{
			Secret:       testSecret,
			SuccessPath:  "/buy",
			CookieSecure: true,
			MaxAge:       sessions.DefaultMaxAge,
		},
	}

	f := &fixture{
		flows:    authflowrepo.NewInMemoryRepo(time.Minute),
		apple:    &tokenEndpoint{signer: idSigner, claims: idTokenClaims(idp.AppleIssuer, appleClientID)},
		google:   &tokenEndpoint{signer: idSigner, claims: idTokenClaims(idp.GoogleIssuer, googleClientID)},
		appleKey: appleKey,
	}
	appleTokens := httptest.NewServer(f.apple)
	t.Cleanup(appleTokens.Close)
	googleTokens := httptest.NewServer(f.google)
	t.Cleanup(googleTokens.Close)

	assertions, err := idp.NewAssertionGenerator(cfg.Apple)
	require.NoError(t, err)
	apple := idp.Apple(cfg.Apple, baseURL, assertions)
	apple.Endpoint.TokenURL = appleTokens.URL
	google := idp.Google(cfg.Google, baseURL)
	google.Endpoint.TokenURL = googleTokens.URL

	f.codec, err = sessions.NewCodec(testSecret, sessions.CookieName(true), sessions.DefaultMaxAge)
	require.NoError(t, err)

	publicKeys := []crypto.PublicKey{idKeys.PublicKey}
	f.srv, err = server.New(server.Deps{
		Config:    cfg,
		Providers: idp.NewRegistry(apple, google),
		Exchanger: idp.NewExchanger(appleTokens.Client(), idp.RetryPolicy{}, zerolog.Nop()),
		Verifier: idp.NewVerifier(idp.StaticKeySets{
			idp.AppleIssuer:  &oidc.StaticKeySet{PublicKeys: publicKeys},
			idp.GoogleIssuer: &oidc.StaticKeySet{PublicKeys: publicKeys},
		}),
		Sessions:   f.codec,
		FlowStates: f.flows,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) do(r *http.Request) *httptest.ResponseRecorder {
	return httptestDo(f.srv, r)
}

func httptestDo(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func newGet(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func formPost(target string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessions.CookieName(true) && c.Value != "" {
			return c
		}
	}
	return nil
}

func requireNoSessionCookie(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Empty(t, rec.Header().Values("Set-Cookie"))
}
