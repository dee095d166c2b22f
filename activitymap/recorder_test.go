package activitymap_test

import (
	"context"
	"testing"
	"time"

	portal "github.com/goliatone/go-portal"
	"github.com/goliatone/go-portal/activitymap"
	"github.com/goliatone/go-portal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newRepo(t *testing.T) (portal.RepositoryManager, *bun.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := repository.Open(ctx, repository.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = portal.Migrate(ctx, db, nil)
	require.NoError(t, err)

	return portal.NewRepositoryManager(db), db
}

func auditLogs(t *testing.T, db *bun.DB) []*portal.AuditLog {
	t.Helper()
	logs := make([]*portal.AuditLog, 0)
	require.NoError(t, db.NewSelect().Model(&logs).Order("timestamp ASC").Scan(context.Background()))
	return logs
}

func TestRecorder_WritesAuditAndFeed(t *testing.T) {
	ctx := context.Background()
	repo, db := newRepo(t)
	rec := activitymap.NewRecorder(repo)

	base := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, rec.Record(ctx, portal.ActivityEvent{
		EventType:  portal.ActivityEventLoginSuccess,
		Username:   "user1",
		OccurredAt: base,
	}))
	require.NoError(t, rec.Record(ctx, portal.ActivityEvent{
		EventType:  portal.ActivityEventLogout,
		Username:   "user1",
		OccurredAt: base.Add(time.Second),
	}))

	feed, err := repo.Activities().Latest(ctx, "user1", portal.DefaultActivityLimit)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "User logged out", feed[0].Activity)
	assert.Equal(t, "User logged in", feed[1].Activity)

	logs := auditLogs(t, db)
	require.Len(t, logs, 2)
	assert.Equal(t, string(portal.ActivityEventLoginSuccess), logs[0].Action)
}

func TestRecorder_AuditOnlyEvents(t *testing.T) {
	ctx := context.Background()
	repo, db := newRepo(t)
	rec := activitymap.NewRecorder(repo)

	require.NoError(t, rec.Record(ctx, portal.ActivityEvent{
		EventType: portal.ActivityEventAccessDenied,
		Username:  "user1",
		Metadata:  map[string]any{activitymap.MetadataKeyPath: "/user"},
	}))

	feed, err := repo.Activities().Latest(ctx, "user1", 0)
	require.NoError(t, err)
	assert.Empty(t, feed)

	logs := auditLogs(t, db)
	require.Len(t, logs, 1)
	assert.Equal(t, string(portal.ActivityEventAccessDenied), logs[0].Action)
	assert.Equal(t, activitymap.ChannelAccess, logs[0].Channel)
	assert.Equal(t, "/user", logs[0].Metadata[activitymap.MetadataKeyPath])
}

func TestRecorder_FeedIsCapped(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	rec := activitymap.NewRecorder(repo)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 12; i++ {
		require.NoError(t, rec.Record(ctx, portal.ActivityEvent{
			EventType:  portal.ActivityEventLoginSuccess,
			Username:   "user2",
			OccurredAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	feed, err := repo.Activities().Latest(ctx, "user2", portal.DefaultActivityLimit)
	require.NoError(t, err)
	require.Len(t, feed, portal.DefaultActivityLimit)
	assert.True(t, feed[0].Timestamp.After(feed[1].Timestamp))
}
