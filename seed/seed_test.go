package seed_test

import (
	"context"
	"strings"
	"testing"

	portal "github.com/goliatone/go-portal"
	"github.com/goliatone/go-portal/provider/local"
	"github.com/goliatone/go-portal/repository"
	"github.com/goliatone/go-portal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func setup(t *testing.T) (portal.RepositoryManager, *bun.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := repository.Open(ctx, repository.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = portal.Migrate(ctx, db, nil)
	require.NoError(t, err)

	return portal.NewRepositoryManager(db), db
}

func TestDefaultFixtures(t *testing.T) {
	fixtures, err := seed.DefaultFixtures()
	require.NoError(t, err)
	require.Len(t, fixtures, 2)

	assert.Equal(t, "user1", fixtures[0].Username)
	assert.Equal(t, []string{portal.GroupAdmin}, fixtures[0].Groups)
	assert.Equal(t, portal.RoleAdmin, fixtures[0].Role)
	assert.Equal(t, "uid=user1,ou=people,dc=example,dc=com", fixtures[0].LDAPDN)

	assert.Equal(t, "user2", fixtures[1].Username)
	assert.Equal(t, []string{portal.GroupUser}, fixtures[1].Groups)
	assert.Equal(t, portal.RoleUser, fixtures[1].Role)
}

func TestLoadFixtures_Invalid(t *testing.T) {
	_, err := seed.LoadFixtures(strings.NewReader("accounts:\n  - username: x\n"))
	assert.Error(t, err)

	_, err = seed.LoadFixtures(strings.NewReader(`accounts:
  - username: x
    email: x@example.com
    ldap_dn: uid=x,ou=people,dc=example,dc=com
    groups: [Group_C]
`))
	assert.Error(t, err)

	_, err = seed.LoadFixtures(strings.NewReader("accounts:\n  - nickname: x\n"))
	assert.Error(t, err)
}

func TestSeeder_RunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, _ := setup(t)

	fixtures, err := seed.DefaultFixtures()
	require.NoError(t, err)

	res, err := seed.New(repo).Run(ctx, fixtures)
	require.NoError(t, err)
	assert.Equal(t, 2, res.AccountsCreated)
	assert.False(t, res.AccountsSkipped)

	admin, err := repo.Accounts().GetByIdentifier(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, []string{portal.GroupAdmin}, admin.Groups)
	assert.True(t, admin.IsActive)

	res, err = seed.New(repo).Run(ctx, fixtures)
	require.NoError(t, err)
	assert.True(t, res.AccountsSkipped)
	assert.Zero(t, res.AccountsCreated)

	total, err := repo.Accounts().CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestSeeder_ProvisionsLocalDirectory(t *testing.T) {
	ctx := context.Background()
	repo, db := setup(t)
	dir := local.NewDirectory(db)

	fixtures, err := seed.DefaultFixtures()
	require.NoError(t, err)

	res, err := seed.New(repo).WithDirectory(dir).Run(ctx, fixtures)
	require.NoError(t, err)
	assert.Equal(t, 2, res.DirectoryCreated)

	entry, err := dir.Authenticate(ctx, "user1", "password1")
	require.NoError(t, err)
	assert.Equal(t, []string{portal.GroupAdmin}, entry.Groups)
	assert.Equal(t, "uid=user1,ou=people,dc=example,dc=com", entry.DN)

	res, err = seed.New(repo).WithDirectory(dir).Run(ctx, fixtures)
	require.NoError(t, err)
	assert.Zero(t, res.DirectoryCreated)
}
