package portal_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	portal "github.com/goliatone/go-portal"
	"github.com/goliatone/go-portal/provider/local"
	"github.com/goliatone/go-portal/repository"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// testEnv wires a provider over an in-memory database, the local directory
// and the sql session store.
type testEnv struct {
	db        *bun.DB
	repo      portal.RepositoryManager
	directory *local.Directory
	sessions  *repository.SessionStore
	tokens    *portal.TokenServiceImpl
	provider  *portal.Provider
	events    *eventLog

	// apiDirectory, when set, replaces directory in the API controller.
	apiDirectory portal.Directory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := repository.Open(ctx, repository.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = portal.Migrate(ctx, db, nil)
	require.NoError(t, err)

	env := &testEnv{
		db:        db,
		repo:      portal.NewRepositoryManager(db),
		directory: local.NewDirectory(db),
		sessions:  repository.NewSessionStore(db),
		tokens:    portal.NewTokenService(testAuthConfig(), portal.DefaultLogger()),
		events:    &eventLog{},
	}
	env.provider = env.newProvider(env.sessions)

	env.addDirectoryUser(t, "user1", "password1", portal.GroupAdmin)
	env.addDirectoryUser(t, "user2", "password2", portal.GroupUser)

	return env
}

func (e *testEnv) newProvider(sessions portal.SessionStore) *portal.Provider {
	return portal.NewProvider(e.directory, e.repo, sessions, e.tokens).
		WithActivitySink(e.events)
}

func (e *testEnv) addDirectoryUser(t *testing.T, username, password, group string) {
	t.Helper()
	_, err := e.directory.CreateUser(context.Background(), portal.NewDirectoryUser{
		Username: username,
		Password: password,
		Email:    username + "@example.com",
		Group:    group,
	})
	require.NoError(t, err)
}

func (e *testEnv) sessionCount(t *testing.T) int {
	t.Helper()
	n, err := e.db.NewSelect().Model((*repository.SessionModel)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

// eventLog is an ActivitySink that keeps every event in memory.
type eventLog struct {
	mu     sync.Mutex
	events []portal.ActivityEvent
}

func (l *eventLog) Record(_ context.Context, event portal.ActivityEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *eventLog) types() []portal.ActivityEventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]portal.ActivityEventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.EventType)
	}
	return out
}

func (l *eventLog) last() portal.ActivityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return portal.ActivityEvent{}
	}
	return l.events[len(l.events)-1]
}

var errStoreDown = errors.New("connection refused")

// brokenStore is a session store whose backend cannot be reached.
type brokenStore struct{}

func (brokenStore) Find(context.Context, string) (*portal.SessionRecord, error) {
	return nil, errStoreDown
}

func (brokenStore) Save(context.Context, *portal.SessionRecord) error { return errStoreDown }

func (brokenStore) Delete(context.Context, string) error { return errStoreDown }

func (brokenStore) Ping(context.Context) error { return errStoreDown }

// flakyStore is a working session store whose lookups start failing once
// down is set.
type flakyStore struct {
	portal.SessionStore
	down atomic.Bool
}

func (s *flakyStore) Find(ctx context.Context, id string) (*portal.SessionRecord, error) {
	if s.down.Load() {
		return nil, errStoreDown
	}
	return s.SessionStore.Find(ctx, id)
}

// downDirectory is a directory that cannot be reached.
type downDirectory struct {
	portal.Directory
}

func (downDirectory) Groups(context.Context, string) ([]string, error) { return nil, errStoreDown }

func (downDirectory) Ping(context.Context) error { return errStoreDown }

// messageOf returns the user facing message of a rich error.
func messageOf(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Message
	}
	return err.Error()
}
