package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/greymass/account-creation-portal/sessions"
	"github.com/rs/zerolog"
)

type sessionUser struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image"`
}

type sessionResponse struct {
	User    *sessionUser `json:"user,omitempty"`
	Expires string       `json:"expires,omitempty"`
}

// SessionHandler reports the signed-in user, or {} when there is none.
// Provider tokens stay inside the cookie.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		cookie, err := r.Cookie(s.cookieName)
		if err != nil || cookie.Value == "" {
			writeJSON(w, http.StatusOK, sessionResponse{})
			return
		}

		session, err := s.sessions.Decode(cookie.Value)
		if err != nil {
			zerolog.Ctx(r.Context()).Info().Err(err).Msg("discarding unreadable session cookie")
			http.SetCookie(w, sessions.ClearCookie(s.cookieName))
			writeJSON(w, http.StatusOK, sessionResponse{})
			return
		}

		writeJSON(w, http.StatusOK, sessionResponse{
			User: &sessionUser{
				Name:  session.Name,
				Email: session.Email,
				Image: session.Picture,
			},
			Expires: session.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
}

// SignOutHandler drops the session cookie. It is a same-site form post, so
// the CSRF guard applies.
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, sessions.ClearCookie(s.cookieName))
		zerolog.Ctx(r.Context()).Info().Msg("signed out")
		http.Redirect(w, r, routeHome, http.StatusSeeOther)
	}
}

type providerResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	SignInURL   string `json:"signinUrl"`
	CallbackURL string `json:"callbackUrl"`
}

// ProvidersHandler lists the providers this deployment offers.
func (s *Server) ProvidersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := strings.TrimSuffix(s.config.BaseURL, "/")
		body := make(map[string]providerResponse)
		for _, p := range s.providers.All() {
			body[p.Name] = providerResponse{
				ID:          p.Name,
				Name:        p.Name,
				Type:        "oidc",
				SignInURL:   base + signInPath(p.Name),
				CallbackURL: p.RedirectURL,
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
