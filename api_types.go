package portal

import (
	"context"
	"time"
)

// TokenResponse is returned by the login endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user"`
}

// UserInfo is an account as the admin listing shows it.
type UserInfo struct {
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Groups    []string   `json:"groups"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	IsActive  bool       `json:"is_active"`
}

// AdminStats summarizes accounts for the admin dashboard.
type AdminStats struct {
	TotalUsers     int `json:"total_users"`
	GroupAUsers    int `json:"group_a_users"`
	GroupBUsers    int `json:"group_b_users"`
	ActiveSessions int `json:"active_sessions"`
}

// UserProfile is the signed in user's own account.
type UserProfile struct {
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Groups       []string   `json:"groups"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	LoginCount   int        `json:"login_count"`
	DaysActive   int        `json:"days_active"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// ActivityEntry is one line of the activity feed.
type ActivityEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	UserID      string    `json:"user_id"`
}

// HealthStatus reports per service connectivity.
type HealthStatus struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp time.Time         `json:"timestamp"`
}

const (
	ServiceConnected    = "connected"
	ServiceDisconnected = "disconnected"
	StatusHealthy       = "healthy"
	StatusUnhealthy     = "unhealthy"
)

// DashboardAPI is the backing API as the dashboard views read it. All calls
// carry the caller's credential. Implementations return empty values
// alongside any error so views can render them as is.
type DashboardAPI interface {
	AdminUsers(ctx context.Context, credential string) ([]UserInfo, error)
	AdminStats(ctx context.Context, credential string) (AdminStats, error)
	UserProfile(ctx context.Context, credential string) (UserProfile, error)
	UserActivities(ctx context.Context, credential string) ([]ActivityEntry, error)
}

func newUserInfo(account *Account, groups []string) UserInfo {
	if groups == nil {
		groups = []string{}
	}
	return UserInfo{
		Username:  account.Username,
		Email:     account.Email,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Groups:    groups,
		CreatedAt: account.CreatedAt,
		LastLogin: account.LastLogin,
		IsActive:  account.IsActive,
	}
}
