// Package local is a database backed directory with bcrypt credentials. It
// keeps the same DN and group layout as the LDAP provider so the two are
// interchangeable.
package local

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	portal "github.com/goliatone/go-portal"
	"github.com/uptrace/bun"
)

const (
	DefaultBaseDN    = "dc=example,dc=com"
	DefaultUIDNumber = 1001
)

// EntryModel is a directory user.
type EntryModel struct {
	bun.BaseModel `bun:"table:directory_entries,alias:den"`

	DN           string     `bun:"dn,pk"`
	Username     string     `bun:"username,notnull,unique"`
	Email        string     `bun:"email,notnull"`
	FirstName    string     `bun:"first_name,notnull"`
	LastName     string     `bun:"last_name,notnull"`
	PasswordHash string     `bun:"password_hash,notnull"`
	UIDNumber    int        `bun:"uid_number,notnull"`
	CreatedAt    *time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// MemberModel links a DN to a group, the groupOfNames member attribute.
type MemberModel struct {
	bun.BaseModel `bun:"table:directory_members,alias:dmb"`

	GroupCN  string `bun:"group_cn,pk"`
	MemberDN string `bun:"member_dn,pk"`
}

// Directory implements portal.Directory.
type Directory struct {
	db        *bun.DB
	baseDN    string
	passwords portal.PasswordAuthenticator
	logger    portal.Logger
}

var _ portal.Directory = (*Directory)(nil)

type Option func(*Directory)

func WithBaseDN(base string) Option {
	return func(d *Directory) {
		if base != "" {
			d.baseDN = base
		}
	}
}

func WithPasswordAuthenticator(p portal.PasswordAuthenticator) Option {
	return func(d *Directory) {
		if p != nil {
			d.passwords = p
		}
	}
}

func WithLogger(logger portal.Logger) Option {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDirectory(db *bun.DB, opts ...Option) *Directory {
	d := &Directory{
		db:        db,
		baseDN:    DefaultBaseDN,
		passwords: portal.BcryptAuthenticator(),
		logger:    portal.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// UserDN builds the DN for username.
func (d *Directory) UserDN(username string) string {
	return fmt.Sprintf("uid=%s,ou=people,%s", username, d.baseDN)
}

// Authenticate checks the password against the stored hash. Unknown users
// and wrong passwords both return portal.ErrInvalidCredentials.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (*portal.DirectoryEntry, error) {
	if username == "" || password == "" {
		return nil, portal.ErrInvalidCredentials
	}

	entry, err := d.findEntry(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// burn a comparison so unknown users cost the same
			_ = d.passwords.ComparePasswordAndHash(password, portal.RandomPasswordHash())
			return nil, portal.ErrInvalidCredentials
		}
		return nil, d.unavailable("authenticate", err)
	}

	if err := d.passwords.ComparePasswordAndHash(password, entry.PasswordHash); err != nil {
		return nil, portal.ErrInvalidCredentials
	}

	groups, err := d.groupsForDN(ctx, entry.DN)
	if err != nil {
		return nil, d.unavailable("groups", err)
	}

	return toDirectoryEntry(entry, groups), nil
}

func (d *Directory) Groups(ctx context.Context, username string) ([]string, error) {
	groups, err := d.groupsForDN(ctx, d.UserDN(username))
	if err != nil {
		return nil, d.unavailable("groups", err)
	}
	return groups, nil
}

func (d *Directory) Exists(ctx context.Context, username string) (bool, error) {
	count, err := d.db.NewSelect().
		Model((*EntryModel)(nil)).
		Where("dn = ?", d.UserDN(username)).
		Count(ctx)
	if err != nil {
		return false, d.unavailable("exists", err)
	}
	return count > 0, nil
}

// CreateUser adds the entry with the next uid number and puts it in the
// requested group.
func (d *Directory) CreateUser(ctx context.Context, user portal.NewDirectoryUser) (*portal.DirectoryEntry, error) {
	if user.Username == "" || user.Password == "" {
		return nil, portal.ErrInvalidCredentials
	}

	hash, err := d.passwords.HashPassword(user.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	entry := &EntryModel{
		DN:           d.UserDN(user.Username),
		Username:     user.Username,
		Email:        user.Email,
		FirstName:    defaultName(user.FirstName, user.Username),
		LastName:     defaultName(user.LastName, "User"),
		PasswordHash: hash,
	}

	group := strings.TrimSpace(user.Group)
	if group == "" {
		group = portal.GroupUser
	}

	err = d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*EntryModel)(nil)).
			Where("dn = ?", entry.DN).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return portal.ErrAccountExists
		}

		var maxUID sql.NullInt64
		if err := tx.NewSelect().
			Model((*EntryModel)(nil)).
			ColumnExpr("MAX(uid_number)").
			Scan(ctx, &maxUID); err != nil {
			return err
		}
		entry.UIDNumber = nextUIDNumber(maxUID)

		now := time.Now().UTC()
		entry.CreatedAt = &now

		if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
			return err
		}

		_, err = tx.NewInsert().
			Model(&MemberModel{GroupCN: group, MemberDN: entry.DN}).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, portal.ErrAccountExists) {
			return nil, portal.ErrAccountExists
		}
		return nil, d.unavailable("create", err)
	}

	d.logger.Info("directory user created", "dn", entry.DN, "group", group, "uid_number", entry.UIDNumber)

	return toDirectoryEntry(entry, []string{group}), nil
}

// AddMember puts an existing DN in group. Adding twice is a no-op.
func (d *Directory) AddMember(ctx context.Context, group, username string) error {
	_, err := d.db.NewInsert().
		Model(&MemberModel{GroupCN: group, MemberDN: d.UserDN(username)}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return d.unavailable("add member", err)
	}
	return nil
}

func (d *Directory) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Directory) findEntry(ctx context.Context, username string) (*EntryModel, error) {
	entry := &EntryModel{}
	err := d.db.NewSelect().
		Model(entry).
		Where("?TableAlias.dn = ?", d.UserDN(username)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (d *Directory) groupsForDN(ctx context.Context, dn string) ([]string, error) {
	var groups []string
	err := d.db.NewSelect().
		Model((*MemberModel)(nil)).
		Column("group_cn").
		Where("member_dn = ?", dn).
		OrderExpr("group_cn ASC").
		Scan(ctx, &groups)
	if err != nil {
		return nil, err
	}
	return portal.NormalizeGroups(groups), nil
}

func (d *Directory) unavailable(operation string, err error) error {
	d.logger.Error("directory operation failed", "operation", operation, "error", err)
	return errors.Wrap(err, portal.ErrDirectoryUnavailable.Category, portal.ErrDirectoryUnavailable.Message).
		WithTextCode(portal.ErrDirectoryUnavailable.TextCode).
		WithCode(portal.ErrDirectoryUnavailable.Code).
		WithMetadata(map[string]any{"operation": operation})
}

func nextUIDNumber(current sql.NullInt64) int {
	if !current.Valid || current.Int64 < DefaultUIDNumber {
		return DefaultUIDNumber
	}
	return int(current.Int64) + 1
}

func toDirectoryEntry(e *EntryModel, groups []string) *portal.DirectoryEntry {
	if groups == nil {
		groups = []string{}
	}
	return &portal.DirectoryEntry{
		DN:        e.DN,
		Username:  e.Username,
		Email:     e.Email,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Groups:    groups,
	}
}

func defaultName(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return strings.TrimSpace(name)
}
