package config

import (
	"strings"
	"time"
)

// DatabaseConfig selects the sql backend for accounts, activity and the
// sql session store.
type DatabaseConfig struct {
	// Driver is sqlite or postgres.
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DSN" envDefault:"file:portal.db?cache=shared&_pragma=foreign_keys(1)"`
	// AutoMigrate runs pending migrations when the server starts.
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`
}

func (d *DatabaseConfig) Sanitize() {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	if d.Driver == "" {
		d.Driver = "sqlite"
	}
}

const (
	SessionStoreSQL   = "sql"
	SessionStoreRedis = "redis"
)

// SessionConfig selects where session records live.
type SessionConfig struct {
	Store string `env:"STORE" envDefault:"sql"`
	// SweepInterval is how often expired sql sessions are purged.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`
	// LookupTimeout bounds a session read; past it the request is pending.
	LookupTimeout time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"2s"`
}

func (s *SessionConfig) Sanitize() {
	s.Store = strings.ToLower(strings.TrimSpace(s.Store))
	if s.Store != SessionStoreRedis {
		s.Store = SessionStoreSQL
	}
	if s.SweepInterval < time.Minute {
		s.SweepInterval = time.Minute
	}
	if s.LookupTimeout <= 0 {
		s.LookupTimeout = 2 * time.Second
	}
}

// RedisConfig holds the connection used by the redis session store.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Prefix   string `env:"PREFIX" envDefault:"portal:session:"`
}
