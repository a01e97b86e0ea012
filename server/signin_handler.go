package server

import (
	"net/http"

	apperrors "github.com/greymass/account-creation-portal/internal/errors"
	"github.com/greymass/account-creation-portal/server/authflowrepo"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	stateBytes = 32
	nonceBytes = 16
)

// SignInHandler starts a sign-in: it records a single-use state, nonce and
// (for PKCE providers) code verifier, then sends the browser to the
// provider. ?callbackUrl= chooses where to land afterwards.
func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.providers.Get(r.PathValue("provider"))
		if !ok {
			s.writeError(w, r, apperrors.Wrapf(apperrors.ErrUnknownProvider, "%s", r.PathValue("provider")))
			return
		}

		state, err := generateRandomString(stateBytes)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		nonce, err := generateRandomString(nonceBytes)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var verifier string
		if p.UsePKCE {
			verifier = oauth2.GenerateVerifier()
		}

		flow := &authflowrepo.AuthFlowState{
			Provider:     p.Name,
			CodeVerifier: verifier,
			Nonce:        nonce,
			ReturnURL:    localPath(r.URL.Query().Get("callbackUrl"), s.config.Session.SuccessPath),
		}
		if err := s.flowStates.Upsert(r.Context(), state, flow); err != nil {
			s.writeError(w, r, apperrors.Wrapf(err, "store flow state"))
			return
		}

		zerolog.Ctx(r.Context()).Info().Str("provider", p.Name).Msg("sign-in started")
		http.Redirect(w, r, p.AuthCodeURL(state, nonce, verifier), http.StatusFound)
	}
}
