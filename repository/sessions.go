package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	portal "github.com/goliatone/go-portal"
	"github.com/uptrace/bun"
)

// SessionModel is the Bun model for server side session records.
type SessionModel struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`

	ID        string    `bun:"id,pk"`
	Username  string    `bun:"username,notnull"`
	Email     string    `bun:"email,notnull"`
	Groups    []string  `bun:"groups"`
	Role      string    `bun:"role,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}

// SessionStore implements portal.SessionStore on a sql table. Expiry is
// checked on read and rows are purged by a Sweeper.
type SessionStore struct {
	db  *bun.DB
	now func() time.Time
}

var _ portal.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a new store.
func NewSessionStore(db *bun.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// Find returns portal.ErrSessionNotFound for unknown and expired records.
func (s *SessionStore) Find(ctx context.Context, id string) (*portal.SessionRecord, error) {
	if id == "" {
		return nil, portal.ErrSessionNotFound
	}

	var model SessionModel
	err := s.db.NewSelect().
		Model(&model).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, portal.ErrSessionNotFound
		}
		return nil, err
	}

	record := toSessionRecord(&model)
	if record.Expired(s.now()) {
		return nil, portal.ErrSessionNotFound
	}

	return record, nil
}

// Save upserts the record.
func (s *SessionStore) Save(ctx context.Context, record *portal.SessionRecord) error {
	if record == nil || record.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	if record.Expired(s.now()) {
		return errors.New("session is expired")
	}

	_, err := s.db.NewInsert().
		Model(fromSessionRecord(record)).
		On("CONFLICT (id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("email = EXCLUDED.email").
		Set("groups = EXCLUDED.groups").
		Set("role = EXCLUDED.role").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)

	return err
}

// Delete removes the record, a missing one is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	_, err := s.db.NewDelete().
		Model((*SessionModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// PurgeExpired deletes records past their expiry and returns how many.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*SessionModel)(nil)).
		Where("expires_at <= ?", s.now().UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func toSessionRecord(m *SessionModel) *portal.SessionRecord {
	groups := m.Groups
	if groups == nil {
		groups = []string{}
	}
	return &portal.SessionRecord{
		ID:        m.ID,
		Username:  m.Username,
		Email:     m.Email,
		Groups:    groups,
		Role:      m.Role,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}

func fromSessionRecord(r *portal.SessionRecord) *SessionModel {
	groups := r.Groups
	if groups == nil {
		groups = []string{}
	}
	return &SessionModel{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		Groups:    groups,
		Role:      r.Role,
		CreatedAt: r.CreatedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
	}
}
