package activitymap

import (
	"strings"
	"time"

	portal "github.com/goliatone/go-portal"
)

const (
	// MetadataKeyReason carries the failure text code of a rejected login.
	MetadataKeyReason = "reason"
	// MetadataKeyPath is the request path of guard and dashboard events.
	MetadataKeyPath = "path"
)

const (
	ChannelAuth      = "auth"
	ChannelAccess    = "access"
	ChannelDashboard = "dashboard"

	defaultActorID = "system"
)

// Normalized is the storage shape for an activity event.
type Normalized struct {
	ActorID     string         `json:"actor_id"`
	Verb        string         `json:"verb"`
	Channel     string         `json:"channel,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// UserFacing reports whether the entry belongs in the user's activity feed.
// Every entry is written to the audit log regardless.
func (n Normalized) UserFacing() bool {
	return n.Description != ""
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	actorFallback string
	descriptions  map[portal.ActivityEventType]string
	now           func() time.Time
}

// Descriptions maps event types onto the text shown in the activity feed.
var Descriptions = map[portal.ActivityEventType]string{
	portal.ActivityEventLoginSuccess:       "User logged in",
	portal.ActivityEventLogout:             "User logged out",
	portal.ActivityEventAccountCreated:     "User account created",
	portal.ActivityEventAccountProvisioned: "User account created",
}

// Normalize converts a portal.ActivityEvent into the shape the recorder
// persists.
func Normalize(event portal.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now()
	}

	return Normalized{
		ActorID:     firstNonEmpty(strings.TrimSpace(event.Username), options.actorFallback),
		Verb:        string(event.EventType),
		Channel:     channelFor(event.EventType),
		Description: options.descriptions[event.EventType],
		Metadata:    cloneMap(event.Metadata),
		OccurredAt:  occurredAt.UTC(),
	}
}

// WithActorFallback sets the actor id used when the event has no username.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithDescriptions replaces the feed text table.
func WithDescriptions(d map[portal.ActivityEventType]string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil || d == nil {
			return
		}
		opts.descriptions = d
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		actorFallback: defaultActorID,
		descriptions:  Descriptions,
		now:           time.Now,
	}
}

func channelFor(t portal.ActivityEventType) string {
	switch t {
	case portal.ActivityEventAccessDenied:
		return ChannelAccess
	case portal.ActivityEventDashboardUnresolved:
		return ChannelDashboard
	default:
		return ChannelAuth
	}
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
