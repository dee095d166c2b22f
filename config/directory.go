package config

import (
	"strings"
	"time"
)

const (
	DirectoryLocal = "local"
	DirectoryLDAP  = "ldap"
)

// DirectoryConfig selects the credential authority.
type DirectoryConfig struct {
	Backend string `env:"BACKEND" envDefault:"local"`
	BaseDN  string `env:"BASE_DN" envDefault:"dc=example,dc=com"`
}

func (d *DirectoryConfig) Sanitize() {
	d.Backend = strings.ToLower(strings.TrimSpace(d.Backend))
	if d.Backend != DirectoryLDAP {
		d.Backend = DirectoryLocal
	}
	if d.BaseDN == "" {
		d.BaseDN = "dc=example,dc=com"
	}
}

// LDAPConfig is only read when the ldap backend is selected.
type LDAPConfig struct {
	URL           string        `env:"URL" envDefault:"ldap://localhost:1389"`
	AdminDN       string        `env:"ADMIN_DN" envDefault:"cn=admin,dc=example,dc=com"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`
	UsersOU       string        `env:"USERS_OU" envDefault:"ou=people"`
	GroupsOU      string        `env:"GROUPS_OU" envDefault:"ou=groups"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

func (l *LDAPConfig) Sanitize() {
	if l.Timeout <= 0 {
		l.Timeout = 5 * time.Second
	}
}
