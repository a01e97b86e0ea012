package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/greymass/account-creation-portal/keys"
	"github.com/stretchr/testify/require"
)

func TestAppleCallback_SignsIn(t *testing.T) {
	f := newFixture(t)

	rec := f.do(formPost(baseURL+"/auth/callback/apple?plan=premium", url.Values{"code": {"abc123"}}))

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/buy?plan=premium", rec.Header().Get("Location"))

	cookie := sessionCookie(t, rec)
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.True(t, cookie.Secure)
	require.Equal(t, "/", cookie.Path)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, 30*24*60*60, cookie.MaxAge)
	require.NotContains(t, cookie.Value, "apple-access-token")

	session, err := f.codec.Decode(cookie.Value)
	require.NoError(t, err)
	require.Equal(t, testEmail, session.Email)
	require.Equal(t, testEmail, session.Name)
	require.Equal(t, testSubject, session.Subject)
	require.Nil(t, session.Picture)
	require.Equal(t, "apple-access-token", session.AccessToken)
	require.Equal(t, "apple-refresh-token", session.RefreshToken)

	form := f.apple.form()
	require.Equal(t, "abc123", form.Get("code"))
	require.Equal(t, "authorization_code", form.Get("grant_type"))
	require.Equal(t, appleClientID, form.Get("client_id"))
	require.Equal(t, baseURL+"/auth/callback/apple", form.Get("redirect_uri"))

	assertion, err := jwt.Parse(form.Get("client_secret"), func(*jwt.Token) (any, error) {
		return f.appleKey.PublicKey, nil
	}, jwt.WithValidMethods([]string{keys.ES256}))
	require.NoError(t, err)
	require.Equal(t, "APPLEKEY01", assertion.Header["kid"])
}

func TestAppleCallback_NoQueryString(t *testing.T) {
	f := newFixture(t)

	rec := f.do(formPost(baseURL+"/auth/callback/apple", url.Values{"code": {"abc123"}}))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/buy", rec.Header().Get("Location"))
}

func TestAppleCallback_AllowedFromAppleOrigin(t *testing.T) {
	f := newFixture(t)

	r := formPost(baseURL+"/auth/callback/apple", url.Values{"code": {"abc123"}})
	r.Header.Set("Origin", "https://appleid.apple.com")
	rec := f.do(r)

	require.Equal(t, http.StatusFound, rec.Code)
	require.NotNil(t, sessionCookie(t, rec))
}

func TestAppleCallback_Multipart(t *testing.T) {
	f := newFixture(t)

	body := "--b\r\nContent-Disposition: form-data; name=\"code\"\r\n\r\nabc123\r\n--b--\r\n"
	r := httptest.NewRequest(http.MethodPost, baseURL+"/auth/callback/apple", strings.NewReader(body))
	r.Header.Set("Content-Type", "multipart/form-data; boundary=b")

	rec := f.do(r)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "abc123", f.apple.form().Get("code"))
}

func TestAppleCallback_ClientErrors(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{name: "missing code", form: url.Values{"state": {"s"}}},
		{name: "empty body", form: url.Values{}},
		{name: "user cancelled", form: url.Values{"error": {"user_cancelled_authorize"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(formPost(baseURL+"/auth/callback/apple", tc.form))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			requireNoSessionCookie(t, rec)
			require.Zero(t, f.apple.calls.Load())
		})
	}
}

func TestAppleCallback_ExchangeRejected(t *testing.T) {
	f := newFixture(t)
	f.apple.set(func(e *tokenEndpoint) { e.status = http.StatusBadRequest })

	rec := f.do(formPost(baseURL+"/auth/callback/apple", url.Values{"code": {"abc123"}}))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	requireNoSessionCookie(t, rec)
	require.NotContains(t, rec.Body.String(), "invalid_grant")
	require.EqualValues(t, 1, f.apple.calls.Load())
}

func TestAppleCallback_VerificationFailures(t *testing.T) {
	t.Run("signed by unknown key", func(t *testing.T) {
		f := newFixture(t)
		rogue, err := keys.GenerateRSAKeyPair("id-token-key", 2048)
		require.NoError(t, err)
		f.apple.set(func(e *tokenEndpoint) { e.signer = keys.NewKeyPairSigner(rogue) })

		rec := f.do(formPost(baseURL+"/auth/callback/apple", url.Values{"code": {"abc123"}}))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		requireNoSessionCookie(t, rec)
	})

	t.Run("wrong audience", func(t *testing.T) {
		f := newFixture(t)
		f.apple.set(func(e *tokenEndpoint) { e.claims["aud"] = "com.someone.else" })

		rec := f.do(formPost(baseURL+"/auth/callback/apple", url.Values{"code": {"abc123"}}))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		requireNoSessionCookie(t, rec)
	})

	t.Run("missing email", func(t *testing.T) {
		f := newFixture(t)
		f.apple.set(func(e *tokenEndpoint) { delete(e.claims, "email") })

		rec := f.do(formPost(baseURL+"/auth/callback/apple", url.Values{"code": {"abc123"}}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		requireNoSessionCookie(t, rec)
	})
}

func TestAppleCallback_ClientGone(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := formPost(baseURL+"/auth/callback/apple", url.Values{"code": {"abc123"}}).WithContext(ctx)

	rec := f.do(r)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	requireNoSessionCookie(t, rec)
}

func TestAppleCallback_BindsNonceFromSignIn(t *testing.T) {
	start := func(t *testing.T, f *fixture) (state, nonce string) {
		t.Helper()
		rec := f.do(newGet(baseURL + "/auth/signin/apple"))
		require.Equal(t, http.StatusFound, rec.Code)

		location, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "form_post", location.Query().Get("response_mode"))
		return location.Query().Get("state"), location.Query().Get("nonce")
	}

	t.Run("matching nonce", func(t *testing.T) {
		f := newFixture(t)
		state, nonce := start(t, f)
		f.apple.set(func(e *tokenEndpoint) { e.claims["nonce"] = nonce })

		rec := f.do(formPost(baseURL+"/auth/callback/apple", url.Values{"code": {"abc123"}, "state": {state}}))
		require.Equal(t, http.StatusFound, rec.Code)
		require.NotNil(t, sessionCookie(t, rec))
	})

	t.Run("nonce mismatch", func(t *testing.T) {
		f := newFixture(t)
		state, _ := start(t, f)
		f.apple.set(func(e *tokenEndpoint) { e.claims["nonce"] = "replayed" })

		rec := f.do(formPost(baseURL+"/auth/callback/apple", url.Values{"code": {"abc123"}, "state": {state}}))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		requireNoSessionCookie(t, rec)
	})

	t.Run("state from another provider", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(newGet(baseURL + "/auth/signin/google"))
		location, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)

		rec = f.do(formPost(baseURL+"/auth/callback/apple", url.Values{"code": {"abc123"}, "state": {location.Query().Get("state")}}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Zero(t, f.apple.calls.Load())
	})
}

func TestAppleCallback_FreshAssertionPerExchange(t *testing.T) {
	f := newFixture(t)

	rec := f.do(formPost(baseURL+"/auth/callback/apple", url.Values{"code": {"a"}}))
	require.Equal(t, http.StatusFound, rec.Code)
	first := f.apple.form().Get("client_secret")

	rec = f.do(formPost(baseURL+"/auth/callback/apple", url.Values{"code": {"b"}}))
	require.Equal(t, http.StatusFound, rec.Code)
	second := f.apple.form().Get("client_secret")

	require.Len(t, strings.Split(first, "."), 3)
	require.NotEqual(t, first, second)
}
