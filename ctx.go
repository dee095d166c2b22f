package portal

import "github.com/goliatone/go-router"

// AuthStateKey is the router Locals key holding the request's AuthState.
const AuthStateKey = "auth_state"

// AuthState is what the provider resolved for a request. Loading is set
// when the session store could not answer, so guards must hold off.
type AuthState struct {
	User       *User
	Loading    bool
	SessionID  string
	Credential string
}

// Authenticated reports a settled state with a user.
func (s AuthState) Authenticated() bool {
	return !s.Loading && s.User != nil
}

// Anonymous is the settled unauthenticated state.
func Anonymous() AuthState {
	return AuthState{}
}

// Pending is the state used while session data cannot be read.
func Pending() AuthState {
	return AuthState{Loading: true}
}

// GetAuthState reads the request's AuthState. A request the provider never
// saw is anonymous.
func GetAuthState(ctx router.Context) AuthState {
	raw := ctx.Locals(AuthStateKey)
	if raw == nil {
		return Anonymous()
	}

	switch state := raw.(type) {
	case AuthState:
		return state
	case *AuthState:
		if state != nil {
			return *state
		}
	}

	return Anonymous()
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(ctx router.Context) (*User, bool) {
	state := GetAuthState(ctx)
	if !state.Authenticated() {
		return nil, false
	}
	return state.User, true
}

// setAuthState is unexported: only the provider's HTTP layer writes it.
func setAuthState(ctx router.Context, state AuthState) {
	ctx.Locals(AuthStateKey, state)
}
