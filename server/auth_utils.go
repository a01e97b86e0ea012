package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/greymass/account-creation-portal/internal/errors"
	"github.com/rs/zerolog"
)

// generateRandomString creates a random base64url string
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(scheme, ",", 2)[0]))
	}
	return "http"
}

// requestOrigin is the origin the request was addressed to.
func requestOrigin(r *http.Request) string {
	return getScheme(r) + "://" + r.Host
}

// originOf reduces an absolute URL to scheme://host[:port].
func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%q is not an absolute url", rawURL)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// localPath accepts only same-site absolute paths, so a return URL cannot
// send the user to another site.
func localPath(candidate, fallback string) string {
	if candidate == "" || !strings.HasPrefix(candidate, "/") ||
		strings.HasPrefix(candidate, "//") || strings.HasPrefix(candidate, "/\\") {
		return fallback
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return candidate
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	if wantsJSON(r) {
		writeJSON(w, status, messageResponse{Message: message})
		return
	}
	http.Error(w, message, status)
}

// writeError is where every sign-in failure becomes an HTTP response. The
// full error, including upstream status and body, is only logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)

	logger := zerolog.Ctx(r.Context())
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}

	var upstream *apperrors.UpstreamExchangeError
	if apperrors.As(err, &upstream) {
		event = event.Int("upstream_status", upstream.Status).Str("upstream_body", upstream.Body)
	}
	event.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("sign-in request failed")

	writeMessage(w, r, status, apperrors.PublicMessage(err))
}
