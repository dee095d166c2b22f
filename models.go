package portal

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the profile row mirrored from the directory. Credentials and
// group membership stay in the directory; groups here are a copy refreshed
// on every successful login.
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	FirstName      string     `bun:"first_name,notnull" json:"first_name"`
	LastName       string     `bun:"last_name,notnull" json:"last_name"`
	LDAPDN         string     `bun:"ldap_dn,notnull,unique" json:"ldap_dn"`
	Groups         []string   `bun:"groups" json:"groups"`
	Role           string     `bun:"role,notnull" json:"role"`
	IsActive       bool       `bun:"is_active,notnull" json:"is_active"`
	LoginCount     int        `bun:"login_count,notnull" json:"login_count"`
	LoginAttempts  int        `bun:"login_attempts,notnull" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"-"`
	LastLogin      *time.Time `bun:"last_login" json:"last_login,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// UserActivity is a user facing entry in the activity feed.
type UserActivity struct {
	bun.BaseModel `bun:"table:user_activities,alias:uac"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string         `bun:"username,notnull" json:"username"`
	Activity      string         `bun:"activity,notnull" json:"activity"`
	Metadata      map[string]any `bun:"metadata" json:"metadata,omitempty"`
	Timestamp     time.Time      `bun:"timestamp,notnull" json:"timestamp"`
}

// AuditLog is an append only security event.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:adl"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string         `bun:"username,notnull" json:"username"`
	Action        string         `bun:"action,notnull" json:"action"`
	Channel       string         `bun:"channel" json:"channel,omitempty"`
	Metadata      map[string]any `bun:"metadata" json:"metadata,omitempty"`
	Timestamp     time.Time      `bun:"timestamp,notnull" json:"timestamp"`
}

// User is the session scoped identity: what the session store holds and
// what route guards read.
type User struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Groups   []string `json:"groups"`
	Role     string   `json:"role,omitempty"`
}

// InGroup reports whether the user belongs to group.
func (u *User) InGroup(group string) bool {
	if u == nil {
		return false
	}
	return HasGroup(u.Groups, group)
}

// IsAdmin is a template convenience.
func (u *User) IsAdmin() bool {
	return u.InGroup(GroupAdmin)
}

// SessionRecord is the server side half of a session; the client holds the
// signed credential whose token id is the record ID.
type SessionRecord struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Groups    []string  `json:"groups"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at now.
func (s *SessionRecord) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !now.Before(s.ExpiresAt)
}

// User returns the session scoped user held by the record.
func (s *SessionRecord) User() *User {
	if s == nil {
		return nil
	}
	groups := make([]string, len(s.Groups))
	copy(groups, s.Groups)
	return &User{
		Username: s.Username,
		Email:    s.Email,
		Groups:   groups,
		Role:     s.Role,
	}
}
