package redis_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	portal "github.com/goliatone/go-portal"
	portalredis "github.com/goliatone/go-portal/adapters/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *portalredis.SessionStore {
	t.Helper()
	client, prefix := newClient(t)
	return portalredis.NewSessionStoreWithPrefix(client, prefix)
}

// newClient connects to the test server and returns a key prefix unique to
// the test.
func newClient(t *testing.T) (redis.UniversalClient, string) {
	t.Helper()

	addr := os.Getenv("PORTAL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PORTAL_TEST_REDIS_ADDR not set")
	}

	client := portalredis.NewClient(portalredis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}

	return client, "portal:test:" + uuid.NewString() + ":"
}

func TestSessionStore_SaveFindDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	record := &portal.SessionRecord{
		ID:        "jti-1",
		Username:  "user1",
		Email:     "user1@example.com",
		Groups:    []string{portal.GroupAdmin},
		Role:      portal.RoleAdmin,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().Add(time.Minute).UTC(),
	}
	require.NoError(t, store.Save(ctx, record))

	found, err := store.Find(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "user1", found.Username)
	assert.Equal(t, []string{portal.GroupAdmin}, found.Groups)

	require.NoError(t, store.Delete(ctx, "jti-1"))

	_, err = store.Find(ctx, "jti-1")
	assert.ErrorIs(t, err, portal.ErrSessionNotFound)
}

func TestSessionStore_ExpiresWithTTL(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	record := &portal.SessionRecord{
		ID:        "short",
		Username:  "user2",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().Add(1100 * time.Millisecond).UTC(),
	}
	require.NoError(t, store.Save(ctx, record))

	time.Sleep(1500 * time.Millisecond)

	_, err := store.Find(ctx, "short")
	assert.ErrorIs(t, err, portal.ErrSessionNotFound)
}

func TestSessionStore_RejectsExpired(t *testing.T) {
	store := newStore(t)

	err := store.Save(context.Background(), &portal.SessionRecord{
		ID:        "old",
		ExpiresAt: time.Now().Add(-time.Second),
	})
	assert.Error(t, err)
}

func TestSessionStore_Ping(t *testing.T) {
	store := newStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestSessionStore_UnreachableIsNotNotFound(t *testing.T) {
	client := portalredis.NewClient(portalredis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { client.Close() })
	store := portalredis.NewSessionStore(client)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := store.Find(ctx, "jti")
	require.Error(t, err)
	assert.NotErrorIs(t, err, portal.ErrSessionNotFound)

	_, err = store.Find(ctx, "")
	assert.ErrorIs(t, err, portal.ErrSessionNotFound)
}

func TestSessionStore_CorruptRecordIsDropped(t *testing.T) {
	client, prefix := newClient(t)
	store := portalredis.NewSessionStoreWithPrefix(client, prefix)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, prefix+"jti-corrupt", "{not json", time.Minute).Err())

	_, err := store.Find(ctx, "jti-corrupt")
	assert.ErrorIs(t, err, portal.ErrSessionNotFound)

	exists, err := client.Exists(ctx, prefix+"jti-corrupt").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

// cannedRedis answers GET with a fixed payload and records DEL keys, so
// Find can be exercised without a server.
type cannedRedis struct {
	mu      sync.Mutex
	payload string
	deleted []string
}

func (c *cannedRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (c *cannedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (c *cannedRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		switch cmd.Name() {
		case "get":
			cmd.(*redis.StringCmd).SetVal(c.payload)
		case "del":
			for _, arg := range cmd.Args()[1:] {
				key, _ := arg.(string)
				c.deleted = append(c.deleted, key)
			}
			cmd.(*redis.IntCmd).SetVal(int64(len(cmd.Args()) - 1))
		default:
			return next(ctx, cmd)
		}
		return nil
	}
}

func TestSessionStore_CorruptPayloadWithoutServer(t *testing.T) {
	client := portalredis.NewClient(portalredis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { client.Close() })

	canned := &cannedRedis{payload: "{not json"}
	client.AddHook(canned)
	store := portalredis.NewSessionStoreWithPrefix(client, "portal:test:")

	_, err := store.Find(context.Background(), "jti")
	assert.ErrorIs(t, err, portal.ErrSessionNotFound)
	assert.Equal(t, []string{"portal:test:jti"}, canned.deleted)
}
