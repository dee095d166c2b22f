package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.False(t, cfg.IsDev)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "http://127.0.0.1:8080/api", cfg.APIClient.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.APIClient.Timeout)

	assert.Equal(t, "portal-1", cfg.Auth.SigningKeyID)
	assert.Equal(t, "portal_session", cfg.Auth.ContextKey)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenExpiration)
	assert.Equal(t, "header:Authorization,cookie:portal_session", cfg.Auth.TokenLookup)
	assert.Equal(t, []string{"go-portal"}, cfg.Auth.Audience)
	assert.Equal(t, "/login", cfg.Auth.RejectedRouteDef)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, SessionStoreSQL, cfg.Session.Store)
	assert.Equal(t, 10*time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, 2*time.Second, cfg.Session.LookupTimeout)
	assert.Equal(t, "portal:session:", cfg.Redis.Prefix)

	assert.Equal(t, DirectoryLocal, cfg.Directory.Backend)
	assert.Equal(t, "dc=example,dc=com", cfg.Directory.BaseDN)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("PORTAL_DEV", "true")
	t.Setenv("PORTAL_HTTP_ADDR", "0.0.0.0:9090")
	t.Setenv("PORTAL_AUTH_PREVIOUS_SIGNING_KEYS", "old-1:first,old-2:second")
	t.Setenv("PORTAL_AUTH_CONTEXT_KEY", "sid")
	t.Setenv("PORTAL_SESSION_STORE", "REDIS")
	t.Setenv("PORTAL_REDIS_ADDR", "localhost:6379")
	t.Setenv("PORTAL_DIRECTORY_BACKEND", "ldap")
	t.Setenv("PORTAL_LOG_LEVEL", "DEBUG")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev)
	assert.Equal(t, "http://127.0.0.1:9090/api", cfg.APIClient.BaseURL)
	assert.Equal(t, map[string]string{"old-1": "first", "old-2": "second"}, cfg.Auth.PreviousSigningKeys)
	assert.Equal(t, "header:Authorization,cookie:sid", cfg.Auth.TokenLookup)
	assert.Equal(t, SessionStoreRedis, cfg.Session.Store)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, DirectoryLDAP, cfg.Directory.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "pretty", cfg.Log.Format)
}

func TestSetHTTPAddr_MovesDerivedBaseURL(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	cfg.SetHTTPAddr("127.0.0.1:9191")
	assert.Equal(t, "127.0.0.1:9191", cfg.HTTP.Addr)
	assert.Equal(t, "http://127.0.0.1:9191/api", cfg.APIClient.BaseURL)

	cfg.SetHTTPAddr(":7070")
	assert.Equal(t, "http://127.0.0.1:7070/api", cfg.APIClient.BaseURL)
}

func TestSetHTTPAddr_KeepsExplicitBaseURL(t *testing.T) {
	t.Setenv("PORTAL_API_BASE_URL", "http://api.local/api/")

	cfg, err := Parse()
	require.NoError(t, err)

	cfg.SetHTTPAddr("127.0.0.1:9191")
	assert.Equal(t, "127.0.0.1:9191", cfg.HTTP.Addr)
	assert.Equal(t, "http://api.local/api", cfg.APIClient.BaseURL)
}

func TestSanitize_Guardrails(t *testing.T) {
	tests := []struct {
		name  string
		cfg   AppConfig
		check func(t *testing.T, cfg AppConfig)
	}{
		{
			name: "unknown session store falls back to sql",
			cfg:  AppConfig{Session: SessionConfig{Store: "memcached"}},
			check: func(t *testing.T, cfg AppConfig) {
				assert.Equal(t, SessionStoreSQL, cfg.Session.Store)
			},
		},
		{
			name: "sweep interval has a floor",
			cfg:  AppConfig{Session: SessionConfig{SweepInterval: time.Second}},
			check: func(t *testing.T, cfg AppConfig) {
				assert.Equal(t, time.Minute, cfg.Session.SweepInterval)
			},
		},
		{
			name: "api timeout is clamped",
			cfg:  AppConfig{APIClient: APIClientConfig{Timeout: time.Hour}},
			check: func(t *testing.T, cfg AppConfig) {
				assert.Equal(t, time.Minute, cfg.APIClient.Timeout)
			},
		},
		{
			name: "api base url loses its trailing slash",
			cfg:  AppConfig{APIClient: APIClientConfig{BaseURL: "http://api.local/api/"}},
			check: func(t *testing.T, cfg AppConfig) {
				assert.Equal(t, "http://api.local/api", cfg.APIClient.BaseURL)
			},
		},
		{
			name: "unknown log level becomes info",
			cfg:  AppConfig{Log: LogConfig{Level: "verbose"}},
			check: func(t *testing.T, cfg AppConfig) {
				assert.Equal(t, "info", cfg.Log.Level)
				assert.Equal(t, "json", cfg.Log.Format)
			},
		},
		{
			name: "unknown directory backend becomes local",
			cfg:  AppConfig{Directory: DirectoryConfig{Backend: "ad"}},
			check: func(t *testing.T, cfg AppConfig) {
				assert.Equal(t, DirectoryLocal, cfg.Directory.Backend)
				assert.Equal(t, "dc=example,dc=com", cfg.Directory.BaseDN)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Sanitize()
			tt.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	strongKey := "0123456789abcdef0123456789abcdef"

	tests := []struct {
		name    string
		cfg     AppConfig
		wantErr string
	}{
		{
			name:    "missing signing key outside dev",
			cfg:     AppConfig{},
			wantErr: "PORTAL_AUTH_SIGNING_KEY is required",
		},
		{
			name:    "short signing key",
			cfg:     AppConfig{Auth: AuthConfig{SigningKey: "short"}},
			wantErr: "at least 32 bytes",
		},
		{
			name: "redis store without address",
			cfg: AppConfig{
				Auth:    AuthConfig{SigningKey: strongKey},
				Session: SessionConfig{Store: SessionStoreRedis},
			},
			wantErr: "PORTAL_REDIS_ADDR",
		},
		{
			name: "ldap backend without url",
			cfg: AppConfig{
				Auth:      AuthConfig{SigningKey: strongKey},
				Directory: DirectoryConfig{Backend: DirectoryLDAP},
			},
			wantErr: "PORTAL_LDAP_URL",
		},
		{
			name: "valid",
			cfg:  AppConfig{Auth: AuthConfig{SigningKey: strongKey}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_DevUsesDevelopmentKey(t *testing.T) {
	cfg := AppConfig{IsDev: true}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, devSigningKey, cfg.Auth.SigningKey)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	_, err := Load(t.TempDir() + "/does-not-exist.env")
	require.NoError(t, err)
}
