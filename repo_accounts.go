package portal

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the profile store mirrored from the directory
type Accounts interface {
	repository.Repository[*Account]

	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error
	SyncMembership(ctx context.Context, account *Account, groups []string, role string) error

	GetByUsername(ctx context.Context, username string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
	CountAll(ctx context.Context) (int, error)
	CountByGroup(ctx context.Context, group string) (int, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
}

type accounts struct {
	repository.Repository[*Account]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (a *accounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

// GetByIdentifierTx looks the account up by id, email or username.
func (a *accounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	for _, opt := range resolveAccountIdentifier(identifier) {
		record := &Account{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

// GetByUsername matches the username column only, unlike GetByIdentifier
// which also accepts an email or id.
func (a *accounts) GetByUsername(ctx context.Context, username string) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", username).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"username": username,
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record, a.now())
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, account)
}

func (a *accounts) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	now := a.now().UTC()
	_, err := tx.NewRaw(`
		UPDATE "accounts"
		SET
			"last_login" = ?,
			"login_count" = "login_count" + 1,
			"login_attempt_at" = NULL,
			"login_attempts" = 0,
			"updated_at" = ?
		WHERE "id" = ?;
	`, now, now, account.ID).Exec(ctx)
	if err != nil {
		return err
	}

	account.LastLogin = &now
	account.LoginCount++
	account.LoginAttempts = 0
	account.LoginAttemptAt = nil
	return nil
}

func (a *accounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, account)
}

func (a *accounts) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	now := a.now().UTC()
	attempts := account.LoginAttempts + 1
	_, err := tx.NewRaw(`
		UPDATE "accounts"
		SET
			"login_attempts" = ?,
			"login_attempt_at" = ?
		WHERE "id" = ?;
	`, attempts, now, account.ID).Exec(ctx)
	if err != nil {
		return err
	}

	account.LoginAttempts = attempts
	account.LoginAttemptAt = &now
	return nil
}

// SyncMembership copies the directory's view of groups onto the row.
func (a *accounts) SyncMembership(ctx context.Context, account *Account, groups []string, role string) error {
	now := a.now().UTC()
	record := &Account{
		ID:        account.ID,
		Groups:    NormalizeGroups(groups),
		Role:      role,
		UpdatedAt: &now,
	}

	_, err := a.db.NewUpdate().
		Model(record).
		Column("groups", "role", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}

	account.Groups = record.Groups
	account.Role = role
	account.UpdatedAt = &now
	return nil
}

func (a *accounts) ListAccounts(ctx context.Context) ([]*Account, error) {
	records := make([]*Account, 0)
	err := a.db.NewSelect().
		Model(&records).
		Order("created_at ASC", "username ASC").
		Scan(ctx)
	return records, err
}

func (a *accounts) CountAll(ctx context.Context) (int, error) {
	return a.db.NewSelect().Model((*Account)(nil)).Count(ctx)
}

// CountByGroup matches the quoted group name inside the JSON array column.
func (a *accounts) CountByGroup(ctx context.Context, group string) (int, error) {
	return a.db.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.groups LIKE ?", `%"`+group+`"%`).
		Count(ctx)
}

func (a *accounts) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	return a.db.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.last_login >= ?", since.UTC()).
		Count(ctx)
}

func prepareAccountDefaults(record *Account, now time.Time) {
	if record == nil {
		return
	}

	record.Groups = NormalizeGroups(record.Groups)
	if record.Role == "" {
		record.Role = RoleForGroups(record.Groups)
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt == nil {
		created := now.UTC()
		record.CreatedAt = &created
	}

	if record.UpdatedAt == nil {
		updated := now.UTC()
		record.UpdatedAt = &updated
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveAccountIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{column: "id", value: trimmed})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{column: "email", value: trimmed})
	}

	return append(options, identifierOption{column: "username", value: trimmed})
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
