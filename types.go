package portal

import (
	"context"
	"fmt"
	"time"
)

// Logger is satisfied by glog loggers and the default stdout logger.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated directory user
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
	Groups() []string
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningKeyID() string
	GetPreviousSigningKeys() map[string]string
	GetContextKey() string
	GetTokenExpiration() time.Duration
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
	GetSecureCookies() bool
}

// DirectoryEntry is a user as the directory sees it.
type DirectoryEntry struct {
	DN        string
	Username  string
	Email     string
	FirstName string
	LastName  string
	Groups    []string
}

// NewDirectoryUser is the input used to provision a directory user.
type NewDirectoryUser struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	Group     string
}

// Directory is the authority for credentials and group membership.
//
// Authenticate returns ErrInvalidCredentials for unknown users and bad
// passwords, and ErrDirectoryUnavailable when the backend cannot be reached.
type Directory interface {
	Authenticate(ctx context.Context, username, password string) (*DirectoryEntry, error)
	Groups(ctx context.Context, username string) ([]string, error)
	Exists(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, user NewDirectoryUser) (*DirectoryEntry, error)
	Ping(ctx context.Context) error
}

// SessionReader is the read side of a session store.
type SessionReader interface {
	Find(ctx context.Context, id string) (*SessionRecord, error)
}

// SessionStore persists server side session records. Find returns
// ErrSessionNotFound for unknown or expired records; any other error means
// the store could not answer.
type SessionStore interface {
	SessionReader
	Save(ctx context.Context, record *SessionRecord) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] PORTAL "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] PORTAL "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] PORTAL "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] PORTAL "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// DefaultLogger returns the logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}
