package server

import "github.com/greymass/account-creation-portal/idp"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Sign-in flow
	RouteSignIn   = "/auth/signin/{provider}"
	RouteCallback = idp.CallbackPathPrefix + "{provider}"
	RouteSignOut  = "/auth/signout"

	// Session & discovery
	RouteSession   = "/auth/session"
	RouteProviders = "/auth/providers"

	RouteHealth = "/healthz"

	routeHome = "/"
)

// signInPath is the concrete sign-in path for one provider.
func signInPath(provider string) string {
	return "/auth/signin/" + provider
}
