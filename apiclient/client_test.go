package apiclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	portal "github.com/goliatone/go-portal"
	"github.com/goliatone/go-portal/apiclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, routes map[string]string, status int) (*httptest.Server, *string) {
	t.Helper()
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &gotAuth
}

func TestClient_AdminUsers(t *testing.T) {
	srv, gotAuth := newServer(t, map[string]string{
		"/api/admin/users": `[
			{"username":"user1","email":"user1@example.com","groups":["Group_A"],"is_active":true},
			{"username":"user2","email":"user2@example.com","groups":["Group_B"],"is_active":true}
		]`,
	}, http.StatusOK)

	client := apiclient.New(srv.URL + "/api/")
	users, err := client.AdminUsers(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "user1", users[0].Username)
	assert.Equal(t, []string{portal.GroupAdmin}, users[0].Groups)
	assert.Equal(t, "Bearer tok-1", *gotAuth)
}

func TestClient_AdminUsersNonArrayIsEmpty(t *testing.T) {
	srv, _ := newServer(t, map[string]string{
		"/api/admin/users": `{"detail":"Admin access required"}`,
	}, http.StatusOK)

	users, err := apiclient.New(srv.URL+"/api").AdminUsers(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, portal.HasTextCode(err, apiclient.TextCodeUnexpectedPayload))
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestClient_AdminUsersSkipsMalformedRows(t *testing.T) {
	srv, _ := newServer(t, map[string]string{
		"/api/admin/users": `[{"username":"user1"}, 42, "x", {"username":7}, {"email":"no-name@example.com"}, null]`,
	}, http.StatusOK)

	users, err := apiclient.New(srv.URL+"/api").AdminUsers(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "user1", users[0].Username)
}

func TestClient_AdminStats(t *testing.T) {
	srv, _ := newServer(t, map[string]string{
		"/api/admin/stats": `{"total_users":2,"group_a_users":1,"group_b_users":1,"active_sessions":1}`,
	}, http.StatusOK)

	stats, err := apiclient.New(srv.URL+"/api").AdminStats(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, portal.AdminStats{TotalUsers: 2, GroupAUsers: 1, GroupBUsers: 1, ActiveSessions: 1}, stats)
}

func TestClient_StatsNonObjectIsEmpty(t *testing.T) {
	srv, _ := newServer(t, map[string]string{
		"/api/admin/stats": `[1,2,3]`,
	}, http.StatusOK)

	stats, err := apiclient.New(srv.URL+"/api").AdminStats(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, portal.AdminStats{}, stats)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv, _ := newServer(t, map[string]string{
		"/api/user/profile": `{"error":"Not authenticated"}`,
	}, http.StatusUnauthorized)

	profile, err := apiclient.New(srv.URL+"/api").UserProfile(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, portal.HasTextCode(err, apiclient.TextCodeRequestFailed))
	assert.Equal(t, portal.UserProfile{}, profile)
}

func TestClient_UserProfileAndActivities(t *testing.T) {
	srv, _ := newServer(t, map[string]string{
		"/api/user/profile":    `{"username":"user2","email":"user2@example.com","login_count":3,"days_active":5}`,
		"/api/user/activities": `[{"timestamp":"2026-01-02T10:00:00Z","description":"User logged in","user_id":"user2"}]`,
	}, http.StatusOK)

	client := apiclient.New(srv.URL + "/api")

	profile, err := client.UserProfile(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "user2", profile.Username)
	assert.Equal(t, 3, profile.LoginCount)
	assert.NotNil(t, profile.Groups)

	activities, err := client.UserActivities(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "User logged in", activities[0].Description)
	assert.Equal(t, time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), activities[0].Timestamp.UTC())
}

func TestClient_Unreachable(t *testing.T) {
	client := apiclient.New("http://127.0.0.1:1/api", apiclient.WithTimeout(500*time.Millisecond))

	users, err := client.AdminUsers(context.Background(), "tok")
	require.Error(t, err)
	assert.Empty(t, users)
}

func TestClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := apiclient.New("http://127.0.0.1:1/api").AdminStats(ctx, "tok")
	assert.ErrorIs(t, err, context.Canceled)
}
