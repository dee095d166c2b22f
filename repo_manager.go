package portal

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	Activities() Activities
	AuditLogs() repository.Repository[*AuditLog]
	Ping(ctx context.Context) error
}

// Activities is the user facing activity feed
type Activities interface {
	repository.Repository[*UserActivity]
	Latest(ctx context.Context, username string, limit int) ([]*UserActivity, error)
}

// DefaultActivityLimit is how many feed entries a profile shows.
const DefaultActivityLimit = 10

type activities struct {
	repository.Repository[*UserActivity]
	db *bun.DB
}

func NewActivitiesRepository(db *bun.DB) Activities {
	repo := repository.NewRepository[*UserActivity](db, repository.ModelHandlers[*UserActivity]{
		NewRecord: func() *UserActivity {
			return &UserActivity{}
		},
		GetID: func(record *UserActivity) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *UserActivity, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "username"
		},
	})
	return &activities{Repository: repo, db: db}
}

// Latest returns the newest entries first.
func (a *activities) Latest(ctx context.Context, username string, limit int) ([]*UserActivity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	records := make([]*UserActivity, 0, limit)
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.username = ?", username).
		Order("timestamp DESC").
		Limit(limit).
		Scan(ctx)
	return records, err
}

func NewAuditLogsRepository(db *bun.DB) repository.Repository[*AuditLog] {
	handlers := repository.ModelHandlers[*AuditLog]{
		NewRecord: func() *AuditLog {
			return &AuditLog{}
		},
		GetID: func(record *AuditLog) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *AuditLog, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "username"
		},
	}
	return repository.NewRepository(db, handlers)
}

type mngr struct {
	db         *bun.DB
	accounts   Accounts
	activities Activities
	auditLogs  repository.Repository[*AuditLog]
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:         db,
		accounts:   NewAccountsRepository(db),
		activities: NewActivitiesRepository(db),
		auditLogs:  NewAuditLogsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.activities == nil {
		return errors.New("repository activities should be initialized")
	}

	if m.auditLogs == nil {
		return errors.New("repository auditLogs should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Activities() Activities {
	return m.activities
}

func (m mngr) AuditLogs() repository.Repository[*AuditLog] {
	return m.auditLogs
}
