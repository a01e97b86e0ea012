// Package idp holds the identity providers a user can sign in with and the
// pieces of the authorization-code flow that talk to them: client
// authentication, the code-for-token exchange and ID token verification.
package idp

import (
	"context"
	"strings"

	"github.com/greymass/account-creation-portal/internal/config"
	"golang.org/x/oauth2"
)

const (
	AppleName  = "apple"
	GoogleName = "google"

	AppleIssuer  = "https://appleid.apple.com"
	GoogleIssuer = "https://accounts.google.com"

	appleJWKSURL  = "https://appleid.apple.com/auth/keys"
	googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	// CallbackPathPrefix is followed by the provider name.
	CallbackPathPrefix = "/auth/callback/"
)

var appleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://appleid.apple.com/auth/authorize",
	TokenURL:  "https://appleid.apple.com/auth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

var googleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// ResponseMode is how a provider delivers its authorization response.
type ResponseMode string

const (
	// ResponseModeQuery redirects back with a GET and query parameters.
	ResponseModeQuery ResponseMode = "query"
	// ResponseModeFormPost POSTs a form-encoded body from the provider's
	// origin. These callbacks never carry a matching Origin header.
	ResponseModeFormPost ResponseMode = "form_post"
)

// SecretSource supplies the client_secret for one token exchange.
type SecretSource interface {
	ClientSecret(ctx context.Context) (string, error)
}

// StaticSecret is a client secret issued once by the provider.
type StaticSecret string

func (s StaticSecret) ClientSecret(context.Context) (string, error) {
	return string(s), nil
}

type Provider struct {
	Name         string
	ClientID     string
	Issuer       string
	JWKSURL      string
	Endpoint     oauth2.Endpoint
	RedirectURL  string
	Scopes       []string
	ResponseMode ResponseMode
	UsePKCE      bool
	Secret       SecretSource
}

// CallbackPath returns the path the provider redirects or posts back to.
func CallbackPath(name string) string {
	return CallbackPathPrefix + name
}

func (p *Provider) CallbackPath() string {
	return CallbackPath(p.Name)
}

// Apple builds the Sign in with Apple provider. Apple posts its callback
// and authenticates clients with a signed assertion instead of a secret.
func Apple(cfg config.AppleConfig, baseURL string, secret SecretSource) *Provider {
	return &Provider{
		Name:         AppleName,
		ClientID:     cfg.ClientID,
		Issuer:       AppleIssuer,
		JWKSURL:      appleJWKSURL,
		Endpoint:     appleEndpoint,
		RedirectURL:  strings.TrimSuffix(baseURL, "/") + CallbackPath(AppleName),
		Scopes:       []string{"name", "email"},
		ResponseMode: ResponseModeFormPost,
		UsePKCE:      false,
		Secret:       secret,
	}
}

func Google(cfg config.GoogleConfig, baseURL string) *Provider {
	return &Provider{
		Name:         GoogleName,
		ClientID:     cfg.ClientID,
		Issuer:       GoogleIssuer,
		JWKSURL:      googleJWKSURL,
		Endpoint:     googleEndpoint,
		RedirectURL:  strings.TrimSuffix(baseURL, "/") + CallbackPath(GoogleName),
		Scopes:       []string{"openid", "email", "profile"},
		ResponseMode: ResponseModeQuery,
		UsePKCE:      true,
		Secret:       StaticSecret(cfg.ClientSecret),
	}
}

// OAuth2Config returns the x/oauth2 view of the provider for one exchange.
func (p *Provider) OAuth2Config(clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: clientSecret,
		Endpoint:     p.Endpoint,
		RedirectURL:  p.RedirectURL,
		Scopes:       p.Scopes,
	}
}

// AuthCodeURL is where the browser is sent to start a sign-in.
func (p *Provider) AuthCodeURL(state, nonce, verifier string) string {
	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("nonce", nonce)}
	if p.ResponseMode == ResponseModeFormPost {
		opts = append(opts, oauth2.SetAuthURLParam("response_mode", string(ResponseModeFormPost)))
	}
	if p.UsePKCE && verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return p.OAuth2Config("").AuthCodeURL(state, opts...)
}

// Registry is the set of providers enabled for this deployment.
type Registry struct {
	providers map[string]*Provider
	order     []string
}

func NewRegistry(providers ...*Provider) *Registry {
	r := &Registry{providers: make(map[string]*Provider)}
	for _, p := range providers {
		if p == nil {
			continue
		}
		if _, exists := r.providers[p.Name]; !exists {
			r.order = append(r.order, p.Name)
		}
		r.providers[p.Name] = p
	}
	return r
}

func (r *Registry) Get(name string) (*Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// All returns the providers in registration order.
func (r *Registry) All() []*Provider {
	all := make([]*Provider, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, r.providers[name])
	}
	return all
}

// FormPostCallbackPaths lists the callback paths that receive
// provider-initiated cross-origin form posts.
func (r *Registry) FormPostCallbackPaths() []string {
	var paths []string
	for _, p := range r.All() {
		if p.ResponseMode == ResponseModeFormPost {
			paths = append(paths, p.CallbackPath())
		}
	}
	return paths
}
