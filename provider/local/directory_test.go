package local_test

import (
	"context"
	"testing"

	portal "github.com/goliatone/go-portal"
	"github.com/goliatone/go-portal/provider/local"
	"github.com/goliatone/go-portal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectory(t *testing.T) *local.Directory {
	t.Helper()
	ctx := context.Background()

	db, err := repository.Open(ctx, repository.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = portal.Migrate(ctx, db, nil)
	require.NoError(t, err)

	return local.NewDirectory(db)
}

func TestDirectory_CreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)

	entry, err := dir.CreateUser(ctx, portal.NewDirectoryUser{
		Username: "user1",
		Password: "secret1",
		Email:    "user1@example.com",
		Group:    portal.GroupAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "uid=user1,ou=people,dc=example,dc=com", entry.DN)
	assert.Equal(t, []string{portal.GroupAdmin}, entry.Groups)
	assert.Equal(t, "user1", entry.FirstName)

	got, err := dir.Authenticate(ctx, "user1", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "user1@example.com", got.Email)
	assert.Equal(t, []string{portal.GroupAdmin}, got.Groups)

	groups, err := dir.Groups(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, []string{portal.GroupAdmin}, groups)
}

func TestDirectory_AuthenticateFailures(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)

	_, err := dir.CreateUser(ctx, portal.NewDirectoryUser{Username: "user2", Password: "secret2"})
	require.NoError(t, err)

	_, err = dir.Authenticate(ctx, "user2", "wrong1")
	assert.ErrorIs(t, err, portal.ErrInvalidCredentials)

	_, err = dir.Authenticate(ctx, "nobody", "secret2")
	assert.ErrorIs(t, err, portal.ErrInvalidCredentials)

	_, err = dir.Authenticate(ctx, "user2", "")
	assert.ErrorIs(t, err, portal.ErrInvalidCredentials)
}

func TestDirectory_CreateUserDefaultsAndUIDNumbers(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)

	first, err := dir.CreateUser(ctx, portal.NewDirectoryUser{Username: "alpha", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, []string{portal.GroupUser}, first.Groups)

	_, err = dir.CreateUser(ctx, portal.NewDirectoryUser{Username: "beta", Password: "secret1"})
	require.NoError(t, err)

	exists, err := dir.Exists(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = dir.Exists(ctx, "gamma")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = dir.CreateUser(ctx, portal.NewDirectoryUser{Username: "alpha", Password: "secret1"})
	assert.ErrorIs(t, err, portal.ErrAccountExists)
}

func TestDirectory_AddMember(t *testing.T) {
	ctx := context.Background()
	dir := newDirectory(t)

	_, err := dir.CreateUser(ctx, portal.NewDirectoryUser{Username: "both", Password: "secret1", Group: portal.GroupUser})
	require.NoError(t, err)

	require.NoError(t, dir.AddMember(ctx, portal.GroupAdmin, "both"))
	require.NoError(t, dir.AddMember(ctx, portal.GroupAdmin, "both"))

	groups, err := dir.Groups(ctx, "both")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{portal.GroupAdmin, portal.GroupUser}, groups)
}

func TestDirectory_Ping(t *testing.T) {
	assert.NoError(t, newDirectory(t).Ping(context.Background()))
}
