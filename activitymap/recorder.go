package activitymap

import (
	"context"

	"github.com/goliatone/go-errors"
	portal "github.com/goliatone/go-portal"
	"github.com/google/uuid"
)

// Recorder is a portal.ActivitySink that writes every event to the audit
// log and user facing events to the activity feed.
type Recorder struct {
	repo   portal.RepositoryManager
	opts   []Option
	logger portal.Logger
}

var _ portal.ActivitySink = (*Recorder)(nil)

func NewRecorder(repo portal.RepositoryManager, opts ...Option) *Recorder {
	return &Recorder{
		repo:   repo,
		opts:   opts,
		logger: portal.DefaultLogger(),
	}
}

func (r *Recorder) WithLogger(logger portal.Logger) *Recorder {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Record implements portal.ActivitySink.
func (r *Recorder) Record(ctx context.Context, event portal.ActivityEvent) error {
	n := Normalize(event, r.opts...)

	audit := &portal.AuditLog{
		ID:        uuid.New(),
		Username:  n.ActorID,
		Action:    n.Verb,
		Channel:   n.Channel,
		Metadata:  n.Metadata,
		Timestamp: n.OccurredAt,
	}
	if _, err := r.repo.AuditLogs().Create(ctx, audit); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to write audit log").
			WithMetadata(map[string]any{"action": n.Verb})
	}

	if !n.UserFacing() {
		return nil
	}

	entry := &portal.UserActivity{
		ID:        uuid.New(),
		Username:  n.ActorID,
		Activity:  n.Description,
		Metadata:  n.Metadata,
		Timestamp: n.OccurredAt,
	}
	if _, err := r.repo.Activities().Create(ctx, entry); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to write user activity").
			WithMetadata(map[string]any{"action": n.Verb})
	}

	r.logger.Debug("activity recorded", "user", n.ActorID, "action", n.Verb)
	return nil
}
