package portal

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// IdentityProvider verifies credentials and returns the directory identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, username, password string) (Identity, error)
}

// AuthProvider holds the only operations that write session state.
type AuthProvider interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Register(ctx context.Context, req RegisterRequest) (*Account, error)
	Logout(ctx context.Context, state AuthState) error
}

// StateResolver turns a validated credential into the request's AuthState.
type StateResolver interface {
	Resolve(ctx context.Context, claims AuthClaims, credential string) AuthState
}

// LoginResult is what a successful login hands back to the caller.
type LoginResult struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
	ExpiresIn int
	User      *User
}

// DefaultLookupTimeout bounds a session lookup before the request is
// treated as pending.
const DefaultLookupTimeout = 2 * time.Second

// Provider owns the session store. Everything else reads AuthState values.
type Provider struct {
	identities    IdentityProvider
	directory     Directory
	repo          RepositoryManager
	sessions      SessionStore
	tokens        TokenService
	register      *RegisterAccountHandler
	logger        Logger
	activity      ActivitySink
	lookupTimeout time.Duration
	now           func() time.Time
}

var (
	_ AuthProvider  = (*Provider)(nil)
	_ StateResolver = (*Provider)(nil)
)

// NewProvider wires the provider. Identities are verified by a UserProvider
// over the directory and the accounts repository.
func NewProvider(directory Directory, repo RepositoryManager, sessions SessionStore, tokens TokenService) *Provider {
	return &Provider{
		identities:    NewUserProvider(directory, repo.Accounts()),
		directory:     directory,
		repo:          repo,
		sessions:      sessions,
		tokens:        tokens,
		register:      NewRegisterAccountHandler(repo),
		logger:        defLogger{},
		activity:      noopActivitySink{},
		lookupTimeout: DefaultLookupTimeout,
		now:           time.Now,
	}
}

func (p *Provider) WithLogger(logger Logger) *Provider {
	if logger == nil {
		return p
	}
	p.logger = logger
	if up, ok := p.identities.(*UserProvider); ok {
		up.WithLogger(logger)
	}
	return p
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (p *Provider) WithActivitySink(sink ActivitySink) *Provider {
	p.activity = normalizeActivitySink(sink)
	if up, ok := p.identities.(*UserProvider); ok {
		up.WithActivitySink(sink)
	}
	return p
}

func (p *Provider) WithIdentityProvider(identities IdentityProvider) *Provider {
	if identities != nil {
		p.identities = identities
	}
	return p
}

func (p *Provider) WithLookupTimeout(timeout time.Duration) *Provider {
	if timeout > 0 {
		p.lookupTimeout = timeout
	}
	return p
}

// Login verifies credentials, mints a credential and stores its session
// record. On failure the session store is left untouched.
func (p *Provider) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	identity, err := p.identities.VerifyIdentity(ctx, username, password)
	if err != nil {
		p.logger.Warn("login verify identity error", "username", username, "error", err)
		emitActivity(ctx, p.activity, p.logger, ActivityEventLoginFailure, username, map[string]any{
			"reason": failureReason(err),
		})
		return nil, err
	}

	token, claims, err := p.tokens.Generate(identity)
	if err != nil {
		p.logger.Error("login token generation error", "error", err)
		return nil, err
	}

	now := p.now()
	record := NewSessionRecord(claims, now)
	if err := p.sessions.Save(ctx, record); err != nil {
		p.logger.Error("login session save error", "error", err)
		return nil, errors.Wrap(err, ErrSessionStoreUnavailable.Category, ErrSessionStoreUnavailable.Message).
			WithTextCode(ErrSessionStoreUnavailable.TextCode).
			WithCode(ErrSessionStoreUnavailable.Code)
	}

	emitActivity(ctx, p.activity, p.logger, ActivityEventLoginSuccess, identity.Username(), map[string]any{
		"session_id": record.ID,
		"groups":     record.Groups,
	})

	expiresIn := int(record.ExpiresAt.Sub(now).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	return &LoginResult{
		Token:     token,
		SessionID: record.ID,
		ExpiresAt: record.ExpiresAt,
		ExpiresIn: expiresIn,
		User:      record.User(),
	}, nil
}

// Register creates the directory user and its account row. It does not
// log the new user in. Invalid requests fail before any backend call.
func (p *Provider) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err, RegistrationErrorOrder...)
	}

	exists, err := p.directory.Exists(ctx, req.Username)
	if err != nil {
		return nil, directoryError(err, "failed to check directory for user")
	}
	if exists {
		return nil, ErrAccountExists
	}

	for _, identifier := range []string{req.Username, req.Email} {
		if _, err := p.repo.Accounts().GetByIdentifier(ctx, identifier); err == nil {
			return nil, ErrAccountExists
		} else if !errors.IsNotFound(err) {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check existing accounts")
		}
	}

	entry, err := p.directory.CreateUser(ctx, NewDirectoryUser{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: defaultName(req.FirstName, req.Username),
		LastName:  defaultName(req.LastName, "User"),
		Group:     req.Group,
	})
	if err != nil {
		return nil, directoryError(err, "failed to create directory user")
	}

	groups := entry.Groups
	if len(groups) == 0 {
		groups = []string{req.Group}
	}

	account, err := p.register.Execute(ctx, RegisterAccountMessage{
		Username:  entry.Username,
		Email:     entry.Email,
		FirstName: entry.FirstName,
		LastName:  entry.LastName,
		LDAPDN:    entry.DN,
		Groups:    groups,
		UseHashid: true,
	})
	if err != nil {
		p.logger.Error("register account row error", "username", req.Username, "error", err)
		return nil, err
	}

	emitActivity(ctx, p.activity, p.logger, ActivityEventAccountCreated, account.Username, map[string]any{
		"group":   req.Group,
		"ldap_dn": account.LDAPDN,
	})

	return account, nil
}

// Logout deletes the session record behind state. Callers must also drop
// the client credential.
func (p *Provider) Logout(ctx context.Context, state AuthState) error {
	if state.SessionID == "" {
		return nil
	}

	if err := p.sessions.Delete(ctx, state.SessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		p.logger.Error("logout session delete error", "session_id", state.SessionID, "error", err)
		return errors.Wrap(err, ErrSessionStoreUnavailable.Category, ErrSessionStoreUnavailable.Message).
			WithTextCode(ErrSessionStoreUnavailable.TextCode).
			WithCode(ErrSessionStoreUnavailable.Code)
	}

	if state.User != nil {
		emitActivity(ctx, p.activity, p.logger, ActivityEventLogout, state.User.Username, map[string]any{
			"session_id": state.SessionID,
		})
	}

	return nil
}

// Resolve looks up the session record behind claims. A missing, expired
// or mismatched record is anonymous; a store that cannot answer in time
// leaves the state pending.
func (p *Provider) Resolve(ctx context.Context, claims AuthClaims, credential string) AuthState {
	if claims == nil || claims.TokenID() == "" {
		return Anonymous()
	}

	lookupCtx, cancel := context.WithTimeout(ctx, p.lookupTimeout)
	defer cancel()

	record, err := p.sessions.Find(lookupCtx, claims.TokenID())
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Anonymous()
		}
		p.logger.Warn("session lookup failed", "session_id", claims.TokenID(), "error", err)
		return Pending()
	}

	if record == nil || record.Expired(p.now()) || record.Username != claims.Subject() {
		return Anonymous()
	}

	return AuthState{
		User:       record.User(),
		SessionID:  record.ID,
		Credential: credential,
	}
}

func directoryError(err error, msg string) error {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}
	return errors.Wrap(err, ErrDirectoryUnavailable.Category, ErrDirectoryUnavailable.Message).
		WithTextCode(ErrDirectoryUnavailable.TextCode).
		WithCode(ErrDirectoryUnavailable.Code).
		WithMetadata(map[string]any{"operation": msg})
}

func failureReason(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr.TextCode
	}
	return "UNKNOWN"
}
