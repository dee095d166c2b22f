package portal

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionRecord(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	groups := []string{GroupAdmin}
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "ses-1",
			Subject:   "user1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UserEmail:  "user1@example.com",
		UserRole:   RoleAdmin,
		UserGroups: groups,
	}

	record := NewSessionRecord(claims, now)
	require.NotNil(t, record)
	assert.Equal(t, "ses-1", record.ID)
	assert.Equal(t, "user1", record.Username)
	assert.Equal(t, "user1@example.com", record.Email)
	assert.Equal(t, RoleAdmin, record.Role)
	assert.Equal(t, now, record.CreatedAt)
	assert.Equal(t, now.Add(time.Hour), record.ExpiresAt)

	// the record keeps its own copy of the groups
	groups[0] = "Group_C"
	assert.Equal(t, []string{GroupAdmin}, record.Groups)
}

func TestNewSessionRecord_DefaultTTL(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	record := NewSessionRecord(&JWTClaims{RegisteredClaims: jwt.RegisteredClaims{ID: "ses-2", Subject: "user2"}}, now)
	assert.Equal(t, now.Add(DefaultSessionTTL), record.ExpiresAt)

	assert.Nil(t, NewSessionRecord(nil, now))
}

func TestSessionRecord_Expired(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	record := &SessionRecord{ID: "ses-1", ExpiresAt: now}

	assert.True(t, record.Expired(now))
	assert.False(t, record.Expired(now.Add(-time.Second)))

	var missing *SessionRecord
	assert.True(t, missing.Expired(now))
	assert.Nil(t, missing.User())
}

func TestSessionRecord_User(t *testing.T) {
	record := &SessionRecord{Username: "user2", Email: "user2@example.com", Groups: []string{GroupUser}, Role: RoleUser}

	user := record.User()
	assert.Equal(t, "user2", user.Username)
	assert.True(t, user.InGroup(GroupUser))
	assert.False(t, user.IsAdmin())

	user.Groups[0] = GroupAdmin
	assert.Equal(t, []string{GroupUser}, record.Groups)
}
