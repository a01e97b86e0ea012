package server

import (
	"net/http"

	"github.com/greymass/account-creation-portal/idp"
	apperrors "github.com/greymass/account-creation-portal/internal/errors"
	"github.com/greymass/account-creation-portal/sessions"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// CallbackHandler completes sign-ins for providers that redirect back with
// the authorization response in the query string.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.providers.Get(r.PathValue("provider"))
		if !ok {
			s.writeError(w, r, apperrors.Wrapf(apperrors.ErrUnknownProvider, "%s", r.PathValue("provider")))
			return
		}
		if p.ResponseMode == idp.ResponseModeFormPost {
			w.Header().Set("Allow", http.MethodPost)
			s.writeError(w, r, apperrors.Wrapf(apperrors.ErrUnsupported, "%s delivers callbacks by form post", p.Name))
			return
		}

		query := r.URL.Query()
		if providerErr := query.Get("error"); providerErr != "" {
			s.writeError(w, r, apperrors.NewClientError(apperrors.Wrapf(apperrors.ErrProviderError, "%s: %s", providerErr, query.Get("error_description"))))
			return
		}

		code, state := query.Get("code"), query.Get("state")
		if code == "" {
			s.writeError(w, r, apperrors.NewClientError(apperrors.ErrMissingCode))
			return
		}
		if state == "" {
			s.writeError(w, r, apperrors.NewClientError(apperrors.ErrInvalidState))
			return
		}

		flow, err := s.flowStates.Consume(r.Context(), state)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				err = apperrors.NewClientError(apperrors.Wrapf(apperrors.ErrInvalidState, "%v", err))
			}
			s.writeError(w, r, err)
			return
		}
		if flow.Provider != p.Name {
			s.writeError(w, r, apperrors.NewClientError(apperrors.Wrapf(apperrors.ErrInvalidState, "state issued for %s", flow.Provider)))
			return
		}

		var opts []oauth2.AuthCodeOption
		if flow.CodeVerifier != "" {
			opts = append(opts, oauth2.VerifierOption(flow.CodeVerifier))
		}

		s.completeSignIn(w, r, p, code, flow.Nonce, opts, localPath(flow.ReturnURL, s.config.Session.SuccessPath))
	}
}

// completeSignIn runs exchange, verification and session encoding in that
// order. The cookie is only set once every step has succeeded.
func (s *Server) completeSignIn(w http.ResponseWriter, r *http.Request, p *idp.Provider, code, nonce string, opts []oauth2.AuthCodeOption, redirectTo string) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx).With().Str("provider", p.Name).Logger()

	tokens, err := s.exchanger.Exchange(ctx, p, code, opts...)
	if err != nil {
		s.writeError(w, r, apperrors.Wrapf(err, "token exchange"))
		return
	}
	logger.Info().Msg("token exchange complete")

	claims, err := s.verifier.Verify(ctx, p, tokens.IDToken, nonce)
	if err != nil {
		s.writeError(w, r, apperrors.Wrapf(err, "id token verification"))
		return
	}
	logger.Info().Str("subject", claims.Subject).Msg("id token verified")

	value, err := s.sessions.Encode(sessions.Build(claims, tokens))
	if err != nil {
		s.writeError(w, r, apperrors.Wrapf(err, "encode session"))
		return
	}

	http.SetCookie(w, sessions.NewCookie(s.cookieName, value, s.sessions.MaxAge()))
	logger.Info().Str("redirect", redirectTo).Msg("session cookie set")
	http.Redirect(w, r, redirectTo, http.StatusFound)
}
