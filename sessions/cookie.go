package sessions

import (
	"net/http"
	"time"
)

const (
	cookieBaseName = "authjs.session-token"
	securePrefix   = "__Secure-"
)

// CookieName is the session cookie's name. Browsers only accept the
// __Secure- prefix on cookies set over TLS.
func CookieName(secure bool) string {
	if secure {
		return securePrefix + cookieBaseName
	}
	return cookieBaseName
}

// NewCookie wraps an encoded session value with the session cookie
// attributes. The cookie is always Secure; browsers still accept it from
// http://localhost during development.
func NewCookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Expires:  NowTimeFunc().Add(maxAge),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the session cookie.
func ClearCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
