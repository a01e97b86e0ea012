package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/greymass/account-creation-portal/idp"
	apperrors "github.com/greymass/account-creation-portal/internal/errors"
	"github.com/rs/zerolog"
)

const maxCallbackBodyBytes = 64 << 10

// FormPostCallbackStage owns the POST callback of every form_post provider
// (Sign in with Apple). It runs the whole sign-in itself and always
// terminates the request. Everything else passes through to the mux.
func (s *Server) FormPostCallbackStage(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, idp.CallbackPathPrefix) {
		return false
	}
	p, ok := s.providers.Get(strings.TrimPrefix(r.URL.Path, idp.CallbackPathPrefix))
	if !ok || p.ResponseMode != idp.ResponseModeFormPost {
		return false
	}

	s.handleFormPostCallback(w, r, p)
	return true
}

func (s *Server) handleFormPostCallback(w http.ResponseWriter, r *http.Request, p *idp.Provider) {
	logger := zerolog.Ctx(r.Context()).With().Str("provider", p.Name).Logger()
	logger.Info().Msg("callback received")

	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBodyBytes)
	if err := r.ParseMultipartForm(maxCallbackBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.writeError(w, r, apperrors.NewClientError(apperrors.Wrapf(apperrors.ErrMalformedForm, "%v", err)))
		return
	}

	code := r.PostForm.Get("code")
	if code == "" {
		if providerErr := r.PostForm.Get("error"); providerErr != "" {
			s.writeError(w, r, apperrors.NewClientError(apperrors.Wrapf(apperrors.ErrProviderError, "%s", providerErr)))
			return
		}
		s.writeError(w, r, apperrors.NewClientError(apperrors.ErrMissingCode))
		return
	}
	logger.Info().Msg("authorization code extracted")

	// A sign-in started at /auth/signin binds a nonce to its state. Apple
	// also delivers callbacks for sign-ins started elsewhere (its JS SDK),
	// which carry no state we know; those are verified without a nonce.
	var nonce string
	if state := r.PostForm.Get("state"); state != "" {
		flow, err := s.flowStates.Consume(r.Context(), state)
		switch {
		case err == nil && flow.Provider == p.Name:
			nonce = flow.Nonce
		case err == nil:
			s.writeError(w, r, apperrors.NewClientError(apperrors.Wrapf(apperrors.ErrInvalidState, "state issued for %s", flow.Provider)))
			return
		case !apperrors.Is(err, apperrors.ErrNotFound):
			s.writeError(w, r, apperrors.Wrapf(err, "load flow state"))
			return
		default:
			logger.Debug().Msg("callback state not issued here; skipping nonce binding")
		}
	}

	s.completeSignIn(w, r, p, code, nonce, nil, s.successRedirect(r))
}

// successRedirect is the configured success path carrying the callback's
// own query string.
func (s *Server) successRedirect(r *http.Request) string {
	target := s.config.Session.SuccessPath
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	return target
}
