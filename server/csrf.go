package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const csrfForbiddenMessage = "Cross-site POST form submissions are forbidden"

// csrfCheckedMethods are the methods a plain HTML form or a simple
// cross-site request can arrive with and that change state.
var csrfCheckedMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// formContentTypes can be sent cross-site without a CORS preflight.
var formContentTypes = map[string]bool{
	"application/x-www-form-urlencoded": true,
	"multipart/form-data":               true,
	"text/plain":                        true,
}

// CSRFGuard rejects form submissions whose Origin is not this site. The
// only exemptions are the callback paths of providers that deliver their
// authorization response as a cross-site form post.
type CSRFGuard struct {
	publicOrigin string
	allowed      map[string]bool
}

func NewCSRFGuard(publicOrigin string, allowedPaths []string) *CSRFGuard {
	g := &CSRFGuard{
		publicOrigin: publicOrigin,
		allowed:      make(map[string]bool, len(allowedPaths)),
	}
	for _, path := range allowedPaths {
		g.allowed[path] = true
	}
	return g
}

// Forbidden reports whether r is a cross-site form submission to a path
// that is not exempt. A missing Origin counts as cross-site.
func (g *CSRFGuard) Forbidden(r *http.Request) bool {
	if !csrfCheckedMethods[r.Method] {
		return false
	}
	if !isFormContentType(r.Header.Get("Content-Type")) {
		return false
	}
	origin := r.Header.Get("Origin")
	if origin != "" && (strings.EqualFold(origin, requestOrigin(r)) || strings.EqualFold(origin, g.publicOrigin)) {
		return false
	}
	return !g.allowed[r.URL.Path]
}

// Stage answers forbidden requests with a 403.
func (g *CSRFGuard) Stage(w http.ResponseWriter, r *http.Request) bool {
	if !g.Forbidden(r) {
		return false
	}
	zerolog.Ctx(r.Context()).Warn().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("origin", r.Header.Get("Origin")).
		Msg("blocked cross-site form submission")
	writeMessage(w, r, http.StatusForbidden, csrfForbiddenMessage)
	return true
}

func isFormContentType(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	return formContentTypes[mediaType]
}
