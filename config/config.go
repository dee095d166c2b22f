package config

import (
	"errors"
	"fmt"
	"os"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "PORTAL_"

// AppConfig composes the configuration of every component. Values are read
// from PORTAL_ prefixed environment variables:
//   - http.go: server address and the dashboard API client
//   - auth.go: token signing and cookies
//   - database.go: sql database, session store and redis
//   - directory.go: local or LDAP directory
//   - log.go: logger
type AppConfig struct {
	// IsDev enables template reloading and debug output
	IsDev bool `env:"DEV" envDefault:"false"`

	HTTP      HTTPConfig
	APIClient APIClientConfig `envPrefix:"API_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	Database  DatabaseConfig  `envPrefix:"DB_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Directory DirectoryConfig `envPrefix:"DIRECTORY_"`
	LDAP      LDAPConfig      `envPrefix:"LDAP_"`
	Log       LogConfig       `envPrefix:"LOG_"`
}

// Sanitize applies guardrails to values loaded from env.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.APIClient.Sanitize(c.HTTP)
	c.Auth.Sanitize()
	c.Database.Sanitize()
	c.Session.Sanitize()
	c.Directory.Sanitize()
	c.LDAP.Sanitize()
	c.Log.Sanitize(c.IsDev)
}

// SetHTTPAddr moves the server to addr after loading. A dashboard API
// base URL that was derived from the old address follows it, an explicit
// PORTAL_API_BASE_URL is kept.
func (c *AppConfig) SetHTTPAddr(addr string) {
	c.HTTP.Addr = addr
	c.HTTP.Sanitize()
	c.APIClient.Sanitize(c.HTTP)
}

// Validate reports settings that cannot work together.
func (c *AppConfig) Validate() error {
	var errs []error
	if err := c.Auth.Validate(c.IsDev); err != nil {
		errs = append(errs, err)
	}
	if c.Session.Store == SessionStoreRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis session store requires PORTAL_REDIS_ADDR"))
	}
	if c.Directory.Backend == DirectoryLDAP && c.LDAP.URL == "" {
		errs = append(errs, errors.New("ldap directory requires PORTAL_LDAP_URL"))
	}
	return errors.Join(errs...)
}

// Load reads an optional .env file, then the environment.
func Load(files ...string) (AppConfig, error) {
	if err := godotenv.Load(files...); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	return Parse()
}

// Parse reads the environment only.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}
