// Package seed provisions the default demo accounts.
package seed

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"

	"github.com/goliatone/go-errors"
	portal "github.com/goliatone/go-portal"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures/accounts.yaml
var fixturesFS embed.FS

// Fixture is one seeded account.
type Fixture struct {
	Username  string   `yaml:"username"`
	Email     string   `yaml:"email"`
	FirstName string   `yaml:"first_name"`
	LastName  string   `yaml:"last_name"`
	LDAPDN    string   `yaml:"ldap_dn"`
	Groups    []string `yaml:"groups"`
	Role      string   `yaml:"role"`
	Password  string   `yaml:"password"`
}

type fixtureFile struct {
	Accounts []Fixture `yaml:"accounts"`
}

// Provisioner creates directory credentials. The local directory satisfies
// it; against LDAP the directory is seeded out of band.
type Provisioner interface {
	Exists(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, user portal.NewDirectoryUser) (*portal.DirectoryEntry, error)
}

// Result reports what a run did.
type Result struct {
	AccountsCreated  int
	AccountsSkipped  bool
	DirectoryCreated int
}

// DefaultFixtures returns the embedded fixtures.
func DefaultFixtures() ([]Fixture, error) {
	data, err := fixturesFS.ReadFile("fixtures/accounts.yaml")
	if err != nil {
		return nil, err
	}
	return LoadFixtures(bytes.NewReader(data))
}

// LoadFixtures parses a fixture document.
func LoadFixtures(r io.Reader) ([]Fixture, error) {
	var file fixtureFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid seed fixtures")
	}

	for i, f := range file.Accounts {
		if f.Username == "" || f.Email == "" || f.LDAPDN == "" {
			return nil, errors.New(fmt.Sprintf("seed fixture %d: username, email and ldap_dn are required", i), errors.CategoryValidation)
		}
		for _, g := range f.Groups {
			if !portal.IsKnownGroup(g) {
				return nil, errors.New(fmt.Sprintf("seed fixture %s: unknown group %q", f.Username, g), errors.CategoryValidation)
			}
		}
	}

	return file.Accounts, nil
}

// Seeder writes fixtures into the account store and, when a provisioner is
// set, into the directory.
type Seeder struct {
	repo      portal.RepositoryManager
	directory Provisioner
	logger    portal.Logger
}

func New(repo portal.RepositoryManager) *Seeder {
	return &Seeder{repo: repo, logger: portal.DefaultLogger()}
}

func (s *Seeder) WithDirectory(p Provisioner) *Seeder {
	s.directory = p
	return s
}

func (s *Seeder) WithLogger(logger portal.Logger) *Seeder {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Run seeds the fixtures. Accounts are only inserted into an empty table;
// directory users are created one by one when missing.
func (s *Seeder) Run(ctx context.Context, fixtures []Fixture) (Result, error) {
	var result Result

	if s.directory != nil {
		n, err := s.provisionDirectory(ctx, fixtures)
		result.DirectoryCreated = n
		if err != nil {
			return result, err
		}
	}

	count, err := s.repo.Accounts().CountAll(ctx)
	if err != nil {
		return result, errors.Wrap(err, errors.CategoryInternal, "failed to count accounts")
	}

	if count > 0 {
		s.logger.Info("accounts table already has rows, skipping", "count", count)
		result.AccountsSkipped = true
		return result, nil
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, f := range fixtures {
			account := &portal.Account{
				Username:  f.Username,
				Email:     f.Email,
				FirstName: f.FirstName,
				LastName:  f.LastName,
				LDAPDN:    f.LDAPDN,
				Groups:    f.Groups,
				Role:      f.Role,
				IsActive:  true,
			}
			if _, err := s.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to create account").
					WithMetadata(map[string]any{"username": f.Username})
			}
			s.logger.Info("seeded account", "username", f.Username, "role", account.Role, "groups", account.Groups)
			result.AccountsCreated++
		}
		return nil
	})
	if err != nil {
		result.AccountsCreated = 0
		return result, err
	}

	return result, nil
}

func (s *Seeder) provisionDirectory(ctx context.Context, fixtures []Fixture) (int, error) {
	created := 0
	for _, f := range fixtures {
		exists, err := s.directory.Exists(ctx, f.Username)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		if f.Password == "" {
			s.logger.Warn("fixture has no password, not provisioning directory user", "username", f.Username)
			continue
		}

		group := portal.GroupUser
		if len(f.Groups) > 0 {
			group = f.Groups[0]
		}

		if _, err := s.directory.CreateUser(ctx, portal.NewDirectoryUser{
			Username:  f.Username,
			Password:  f.Password,
			Email:     f.Email,
			FirstName: f.FirstName,
			LastName:  f.LastName,
			Group:     group,
		}); err != nil {
			return created, err
		}
		s.logger.Info("seeded directory user", "username", f.Username, "group", group)
		created++
	}
	return created, nil
}
