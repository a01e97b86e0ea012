// Package server wires the sign-in pipeline into an http.Handler: the CSRF
// guard and the form_post callback normalizer run in front of the route
// mux, and standard middleware wraps the whole sequence.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/greymass/account-creation-portal/idp"
	"github.com/greymass/account-creation-portal/internal/config"
	"github.com/greymass/account-creation-portal/server/authflowrepo"
	"github.com/greymass/account-creation-portal/sessions"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// TokenExchanger trades an authorization code for the provider's tokens.
type TokenExchanger interface {
	Exchange(ctx context.Context, p *idp.Provider, code string, opts ...oauth2.AuthCodeOption) (*idp.TokenSet, error)
}

// IDTokenVerifier turns a raw ID token into verified claims.
type IDTokenVerifier interface {
	Verify(ctx context.Context, p *idp.Provider, rawIDToken, nonce string) (*idp.IdentityClaims, error)
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Config     *config.Config
	Providers  *idp.Registry
	Exchanger  TokenExchanger
	Verifier   IDTokenVerifier
	Sessions   *sessions.Codec
	FlowStates authflowrepo.Repo
	Logger     zerolog.Logger
}

type Server struct {
	env        string
	mux        *http.ServeMux
	routes     []string
	handler    http.Handler
	config     *config.Config
	providers  *idp.Registry
	exchanger  TokenExchanger
	verifier   IDTokenVerifier
	sessions   *sessions.Codec
	flowStates authflowrepo.Repo
	csrf       *CSRFGuard
	cookieName string
	logger     zerolog.Logger
}

func New(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("[Server New] config is required")
	case deps.Providers == nil:
		return nil, errors.New("[Server New] provider registry is required")
	case deps.Exchanger == nil, deps.Verifier == nil:
		return nil, errors.New("[Server New] token exchanger and verifier are required")
	case deps.Sessions == nil:
		return nil, errors.New("[Server New] session codec is required")
	case deps.FlowStates == nil:
		return nil, errors.New("[Server New] flow state repo is required")
	}

	s := &Server{
		env:        deps.Config.GetEnv(),
		mux:        http.NewServeMux(),
		config:     deps.Config,
		providers:  deps.Providers,
		exchanger:  deps.Exchanger,
		verifier:   deps.Verifier,
		sessions:   deps.Sessions,
		flowStates: deps.FlowStates,
		cookieName: sessions.CookieName(deps.Config.Session.CookieSecure),
		logger:     deps.Logger,
	}

	publicOrigin, err := originOf(deps.Config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("[Server New] invalid base url: %w", err)
	}
	s.csrf = NewCSRFGuard(publicOrigin, deps.Providers.FormPostCallbackPaths())

	s.initRoutes()
	s.handler = ChainMiddleware(
		Sequence(s.mux, s.csrf.Stage, s.FormPostCallbackStage),
		s.StandardMiddleware()...,
	)
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, path := range s.providers.FormPostCallbackPaths() {
		s.logRoute(http.MethodPost, path)
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	s.logger.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}
