package activitymap_test

import (
	"testing"
	"time"

	portal "github.com/goliatone/go-portal"
	"github.com/goliatone/go-portal/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := portal.ActivityEvent{
		EventType: portal.ActivityEventLoginSuccess,
		Username:  "user1",
		Metadata: map[string]any{
			"session_id": "jti-1",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user1" {
		t.Fatalf("expected actor_id user1, got %q", out.ActorID)
	}
	if out.Verb != string(portal.ActivityEventLoginSuccess) {
		t.Fatalf("expected verb %q, got %q", portal.ActivityEventLoginSuccess, out.Verb)
	}
	if out.Channel != activitymap.ChannelAuth {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if out.Description != "User logged in" {
		t.Fatalf("expected description User logged in, got %q", out.Description)
	}
	if !out.UserFacing() {
		t.Fatalf("expected login success to be user facing")
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata["session_id"] != "jti-1" {
		t.Fatalf("expected metadata session_id jti-1, got %#v", out.Metadata["session_id"])
	}

	out.Metadata["extra"] = true
	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeAuditOnlyEvents(t *testing.T) {
	t.Parallel()

	cases := []struct {
		event   portal.ActivityEventType
		channel string
	}{
		{portal.ActivityEventLoginFailure, activitymap.ChannelAuth},
		{portal.ActivityEventAccessDenied, activitymap.ChannelAccess},
		{portal.ActivityEventDashboardUnresolved, activitymap.ChannelDashboard},
	}

	for _, tc := range cases {
		out := activitymap.Normalize(portal.ActivityEvent{EventType: tc.event, Username: "user2"})
		if out.UserFacing() {
			t.Fatalf("expected %s to be audit only", tc.event)
		}
		if out.Channel != tc.channel {
			t.Fatalf("expected channel %q for %s, got %q", tc.channel, tc.event, out.Channel)
		}
		if out.OccurredAt.IsZero() {
			t.Fatalf("expected occurred_at to default to now for %s", tc.event)
		}
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(
		portal.ActivityEvent{EventType: portal.ActivityEventLogout},
		activitymap.WithActorFallback("anonymous"),
		activitymap.WithDescriptions(map[portal.ActivityEventType]string{
			portal.ActivityEventLogout: "Signed out",
		}),
	)

	if out.ActorID != "anonymous" {
		t.Fatalf("expected actor fallback anonymous, got %q", out.ActorID)
	}
	if out.Description != "Signed out" {
		t.Fatalf("expected overridden description, got %q", out.Description)
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(portal.ActivityEvent{EventType: portal.ActivityEventLoginFailure, Username: "  "})
	if out.ActorID != "system" {
		t.Fatalf("expected default actor system, got %q", out.ActorID)
	}
	if out.Metadata != nil {
		t.Fatalf("expected nil metadata for empty input, got %#v", out.Metadata)
	}
}
