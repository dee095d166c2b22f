package portal

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// AccountTracker is the slice of the accounts repository login needs.
type AccountTracker interface {
	GetByUsername(ctx context.Context, username string) (*Account, error)
	Create(ctx context.Context, account *Account, criteria ...repository.InsertCriteria) (*Account, error)
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
	SyncMembership(ctx context.Context, account *Account, groups []string, role string) error
}

// UserProvider verifies credentials against the directory and keeps the
// account row in step with it.
type UserProvider struct {
	directory Directory
	store     AccountTracker
	logger    Logger
	activity  ActivitySink
	now       func() time.Time
}

// MaxLoginAttempts is the maximun number of failed attempts an account
// gets in a cool down period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// NewUserProvider will create a new UserProvider
func NewUserProvider(directory Directory, store AccountTracker) *UserProvider {
	return &UserProvider{
		directory: directory,
		store:     store,
		logger:    defLogger{},
		activity:  noopActivitySink{},
		now:       time.Now,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

func (u *UserProvider) WithActivitySink(sink ActivitySink) *UserProvider {
	u.activity = normalizeActivitySink(sink)
	return u
}

// VerifyIdentity authenticates against the directory and returns the
// identity carrying the directory's current group membership.
func (u *UserProvider) VerifyIdentity(ctx context.Context, username, password string) (Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	// the throttle row belongs to the username typed, an email that happens
	// to match another account must not count against it
	account, err := u.store.GetByUsername(ctx, username)
	if err != nil {
		if !errors.IsNotFound(err) {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
		}
		account = nil
	}

	if account != nil {
		if err := u.checkThrottle(account); err != nil {
			return nil, err
		}
	}

	entry, err := u.directory.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) && account != nil {
			if err2 := u.store.TrackAttemptedLogin(ctx, account); err2 != nil {
				return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
			}
		}
		return nil, err
	}

	groups := NormalizeGroups(entry.Groups)
	role := RoleForGroups(groups)

	if account == nil {
		account, err = u.provision(ctx, entry, groups, role)
		if err != nil {
			return nil, err
		}
	} else if !sameGroups(account.Groups, groups) || account.Role != role {
		if err := u.store.SyncMembership(ctx, account, groups, role); err != nil {
			u.logger.Warn("failed to sync account membership", "username", username, "error", err)
		}
	}

	// reset the login_attempts counter and login_attempt_at
	if err := u.store.TrackSuccessfulLogin(ctx, account); err != nil {
		u.logger.Error("failed to track successful login", "error", err)
	}

	email := entry.Email
	if email == "" {
		email = account.Email
	}

	return authIdentity{
		id:       account.ID.String(),
		username: entry.Username,
		email:    email,
		role:     role,
		groups:   groups,
	}, nil
}

func (u *UserProvider) checkThrottle(account *Account) error {
	if !account.IsActive {
		return ErrAccountDisabled
	}

	if account.LoginAttemptAt != nil {
		within, err := isWithinThresholdPeriodAt(u.now(), *account.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if !within {
			account.LoginAttempts = 0
		}
	}

	// too many attempts in the given window, cool off
	if account.LoginAttempts >= MaxLoginAttempts {
		return ErrTooManyLoginAttempts
	}

	return nil
}

// provision creates the row for a directory user that never logged in here.
func (u *UserProvider) provision(ctx context.Context, entry *DirectoryEntry, groups []string, role string) (*Account, error) {
	account, err := u.store.Create(ctx, &Account{
		Username:  entry.Username,
		Email:     entry.Email,
		FirstName: entry.FirstName,
		LastName:  entry.LastName,
		LDAPDN:    entry.DN,
		Groups:    groups,
		Role:      role,
		IsActive:  true,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to provision account")
	}

	emitActivity(ctx, u.activity, u.logger, ActivityEventAccountProvisioned, entry.Username, map[string]any{
		"ldap_dn": entry.DN,
		"groups":  groups,
	})

	return account, nil
}

func sameGroups(a, b []string) bool {
	a, b = NormalizeGroups(a), NormalizeGroups(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type authIdentity struct {
	id       string
	username string
	email    string
	role     string
	groups   []string
}

func (a authIdentity) ID() string {
	return a.id
}

func (a authIdentity) Username() string {
	return a.username
}

func (a authIdentity) Email() string {
	return a.email
}

func (a authIdentity) Role() string {
	return a.role
}

func (a authIdentity) Groups() []string {
	return a.groups
}

var _ Identity = authIdentity{}
