// Package ldap implements the portal directory against an LDAP server using
// the people/groups layout: users live at uid=<name>,ou=people,<base> and
// groups are groupOfNames entries under ou=groups.
package ldap

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/goliatone/go-errors"
	portal "github.com/goliatone/go-portal"
)

const (
	DefaultUsersOU   = "ou=people"
	DefaultGroupsOU  = "ou=groups"
	DefaultUIDNumber = 1001
	DefaultTimeout   = 5 * time.Second
)

// Config holds the connection settings.
type Config struct {
	URL           string
	BaseDN        string
	AdminDN       string
	AdminPassword string
	UsersOU       string
	GroupsOU      string
	Timeout       time.Duration
}

// Conn is the subset of *ldap.Conn the directory uses.
type Conn interface {
	Bind(username, password string) error
	Search(req *goldap.SearchRequest) (*goldap.SearchResult, error)
	Add(req *goldap.AddRequest) error
	Modify(req *goldap.ModifyRequest) error
}

// Dialer opens a connection and returns a func that closes it.
type Dialer func(ctx context.Context, cfg Config) (Conn, func(), error)

// Directory implements portal.Directory.
type Directory struct {
	cfg    Config
	dial   Dialer
	logger portal.Logger
}

var _ portal.Directory = (*Directory)(nil)

type Option func(*Directory)

func WithDialer(d Dialer) Option {
	return func(dir *Directory) {
		if d != nil {
			dir.dial = d
		}
	}
}

func WithLogger(logger portal.Logger) Option {
	return func(dir *Directory) {
		if logger != nil {
			dir.logger = logger
		}
	}
}

func NewDirectory(cfg Config, opts ...Option) *Directory {
	if cfg.UsersOU == "" {
		cfg.UsersOU = DefaultUsersOU
	}
	if cfg.GroupsOU == "" {
		cfg.GroupsOU = DefaultGroupsOU
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	d := &Directory{
		cfg:    cfg,
		dial:   DialURL,
		logger: portal.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DialURL is the default Dialer.
func DialURL(ctx context.Context, cfg Config) (Conn, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	conn, err := goldap.DialURL(cfg.URL, goldap.DialWithDialer(&net.Dialer{Timeout: cfg.Timeout}))
	if err != nil {
		return nil, nil, err
	}
	conn.SetTimeout(cfg.Timeout)
	return conn, func() { conn.Close() }, nil
}

// UserDN builds the DN for username.
func (d *Directory) UserDN(username string) string {
	return fmt.Sprintf("uid=%s,%s,%s", goldap.EscapeDN(username), d.cfg.UsersOU, d.cfg.BaseDN)
}

// GroupDN builds the DN for a group.
func (d *Directory) GroupDN(group string) string {
	return fmt.Sprintf("cn=%s,%s,%s", goldap.EscapeDN(group), d.cfg.GroupsOU, d.cfg.BaseDN)
}

// Authenticate binds as the user. A bind failure is reported as
// portal.ErrInvalidCredentials whatever the reason the server gave.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (*portal.DirectoryEntry, error) {
	if username == "" || password == "" {
		return nil, portal.ErrInvalidCredentials
	}

	conn, closeConn, err := d.dial(ctx, d.cfg)
	if err != nil {
		return nil, d.unavailable("dial", err)
	}
	defer closeConn()

	if err := conn.Bind(d.UserDN(username), password); err != nil {
		if isInvalidCredentials(err) || goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) {
			return nil, portal.ErrInvalidCredentials
		}
		return nil, d.unavailable("bind", err)
	}

	admin, closeAdmin, err := d.adminConn(ctx)
	if err != nil {
		return nil, err
	}
	defer closeAdmin()

	entry, err := d.lookupEntry(admin, username)
	if err != nil {
		return nil, err
	}

	groups, err := d.searchGroups(admin, username)
	if err != nil {
		return nil, err
	}
	entry.Groups = groups

	return entry, nil
}

func (d *Directory) Groups(ctx context.Context, username string) ([]string, error) {
	conn, closeConn, err := d.adminConn(ctx)
	if err != nil {
		return nil, err
	}
	defer closeConn()

	return d.searchGroups(conn, username)
}

func (d *Directory) Exists(ctx context.Context, username string) (bool, error) {
	conn, closeConn, err := d.adminConn(ctx)
	if err != nil {
		return false, err
	}
	defer closeConn()

	return d.exists(conn, d.UserDN(username))
}

// CreateUser adds an inetOrgPerson entry and adds it to the group, creating
// the group when it is missing.
func (d *Directory) CreateUser(ctx context.Context, user portal.NewDirectoryUser) (*portal.DirectoryEntry, error) {
	conn, closeConn, err := d.adminConn(ctx)
	if err != nil {
		return nil, err
	}
	defer closeConn()

	dn := d.UserDN(user.Username)

	exists, err := d.exists(conn, dn)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, portal.ErrAccountExists
	}

	uidNumber := d.nextUIDNumber(conn)
	first := defaultName(user.FirstName, user.Username)
	last := defaultName(user.LastName, "User")
	uid := strconv.Itoa(uidNumber)

	req := goldap.NewAddRequest(dn, nil)
	req.Attribute("objectClass", []string{"inetOrgPerson", "posixAccount", "shadowAccount"})
	req.Attribute("cn", []string{user.Username})
	req.Attribute("sn", []string{last})
	req.Attribute("givenName", []string{first})
	req.Attribute("displayName", []string{first + " " + last})
	req.Attribute("uid", []string{user.Username})
	req.Attribute("uidNumber", []string{uid})
	req.Attribute("gidNumber", []string{uid})
	req.Attribute("homeDirectory", []string{"/home/" + user.Username})
	req.Attribute("loginShell", []string{"/bin/bash"})
	req.Attribute("mail", []string{user.Email})
	req.Attribute("userPassword", []string{user.Password})

	if err := conn.Add(req); err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultEntryAlreadyExists) {
			return nil, portal.ErrAccountExists
		}
		return nil, d.unavailable("add user", err)
	}

	group := strings.TrimSpace(user.Group)
	if group == "" {
		group = portal.GroupUser
	}

	if err := d.addToGroup(conn, group, dn); err != nil {
		return nil, err
	}

	d.logger.Info("ldap user created", "dn", dn, "group", group, "uid_number", uidNumber)

	return &portal.DirectoryEntry{
		DN:        dn,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: first,
		LastName:  last,
		Groups:    []string{group},
	}, nil
}

// Ping binds as the admin.
func (d *Directory) Ping(ctx context.Context) error {
	_, closeConn, err := d.adminConn(ctx)
	if err != nil {
		return err
	}
	closeConn()
	return nil
}

func (d *Directory) adminConn(ctx context.Context) (Conn, func(), error) {
	conn, closeConn, err := d.dial(ctx, d.cfg)
	if err != nil {
		return nil, nil, d.unavailable("dial", err)
	}

	if err := conn.Bind(d.cfg.AdminDN, d.cfg.AdminPassword); err != nil {
		closeConn()
		return nil, nil, d.unavailable("admin bind", err)
	}

	return conn, closeConn, nil
}

func (d *Directory) lookupEntry(conn Conn, username string) (*portal.DirectoryEntry, error) {
	dn := d.UserDN(username)
	res, err := conn.Search(goldap.NewSearchRequest(
		dn,
		goldap.ScopeBaseObject, goldap.NeverDerefAliases, 1, int(d.cfg.Timeout.Seconds()), false,
		"(objectClass=*)",
		[]string{"mail", "givenName", "sn"},
		nil,
	))
	if err != nil {
		return nil, d.unavailable("lookup", err)
	}

	entry := &portal.DirectoryEntry{DN: dn, Username: username}
	if len(res.Entries) > 0 {
		e := res.Entries[0]
		entry.Email = e.GetAttributeValue("mail")
		entry.FirstName = e.GetAttributeValue("givenName")
		entry.LastName = e.GetAttributeValue("sn")
	}
	return entry, nil
}

func (d *Directory) searchGroups(conn Conn, username string) ([]string, error) {
	filter := fmt.Sprintf("(&(objectClass=groupOfNames)(member=%s))", goldap.EscapeFilter(d.UserDN(username)))
	res, err := conn.Search(goldap.NewSearchRequest(
		d.cfg.GroupsOU+","+d.cfg.BaseDN,
		goldap.ScopeWholeSubtree, goldap.NeverDerefAliases, 0, int(d.cfg.Timeout.Seconds()), false,
		filter,
		[]string{"cn"},
		nil,
	))
	if err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) {
			return []string{}, nil
		}
		return nil, d.unavailable("groups", err)
	}

	groups := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		groups = append(groups, e.GetAttributeValues("cn")...)
	}
	return portal.NormalizeGroups(groups), nil
}

func (d *Directory) exists(conn Conn, dn string) (bool, error) {
	res, err := conn.Search(goldap.NewSearchRequest(
		dn,
		goldap.ScopeBaseObject, goldap.NeverDerefAliases, 1, int(d.cfg.Timeout.Seconds()), false,
		"(objectClass=*)",
		[]string{"dn"},
		nil,
	))
	if err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) {
			return false, nil
		}
		return false, d.unavailable("exists", err)
	}
	return len(res.Entries) > 0, nil
}

func (d *Directory) nextUIDNumber(conn Conn) int {
	res, err := conn.Search(goldap.NewSearchRequest(
		d.cfg.UsersOU+","+d.cfg.BaseDN,
		goldap.ScopeWholeSubtree, goldap.NeverDerefAliases, 0, int(d.cfg.Timeout.Seconds()), false,
		"(objectClass=posixAccount)",
		[]string{"uidNumber"},
		nil,
	))
	if err != nil {
		d.logger.Warn("uid number search failed", "error", err)
		return DefaultUIDNumber
	}

	highest := 0
	for _, e := range res.Entries {
		n, err := strconv.Atoi(e.GetAttributeValue("uidNumber"))
		if err == nil && n > highest {
			highest = n
		}
	}
	if highest == 0 {
		return DefaultUIDNumber
	}
	return highest + 1
}

func (d *Directory) addToGroup(conn Conn, group, memberDN string) error {
	groupDN := d.GroupDN(group)

	found, err := d.exists(conn, groupDN)
	if err != nil {
		return err
	}

	if !found {
		req := goldap.NewAddRequest(groupDN, nil)
		req.Attribute("objectClass", []string{"groupOfNames"})
		req.Attribute("cn", []string{group})
		req.Attribute("description", []string{group + " group"})
		req.Attribute("member", []string{memberDN})
		if err := conn.Add(req); err != nil {
			return d.unavailable("add group", err)
		}
		return nil
	}

	mod := goldap.NewModifyRequest(groupDN, nil)
	mod.Add("member", []string{memberDN})
	if err := conn.Modify(mod); err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultAttributeOrValueExists) {
			return nil
		}
		return d.unavailable("add member", err)
	}
	return nil
}

func (d *Directory) unavailable(operation string, err error) error {
	d.logger.Error("ldap operation failed", "operation", operation, "error", err)
	return errors.Wrap(err, portal.ErrDirectoryUnavailable.Category, portal.ErrDirectoryUnavailable.Message).
		WithTextCode(portal.ErrDirectoryUnavailable.TextCode).
		WithCode(portal.ErrDirectoryUnavailable.Code).
		WithMetadata(map[string]any{"operation": operation})
}

func isInvalidCredentials(err error) bool {
	return goldap.IsErrorWithCode(err, goldap.LDAPResultInvalidCredentials)
}

func defaultName(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return strings.TrimSpace(name)
}
