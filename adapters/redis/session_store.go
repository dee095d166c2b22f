// Package redis stores portal sessions in Redis, letting key TTLs expire
// them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	portal "github.com/goliatone/go-portal"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "portal:session:"

// SessionStore implements portal.SessionStore on Redis.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ portal.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a Redis backed store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, DefaultPrefix)
}

// NewSessionStoreWithPrefix creates a store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Options are the connection settings for NewClient.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient opens a client; callers should Ping before relying on it.
func NewClient(opts Options) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

func (s *SessionStore) Save(ctx context.Context, record *portal.SessionRecord) error {
	if record == nil || record.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	ttl := record.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.client.Set(ctx, s.key(record.ID), data, ttl).Err()
}

// Find maps a missing, expired or unreadable key to
// portal.ErrSessionNotFound. Connection errors are returned as is so
// callers can tell the store is down.
func (s *SessionStore) Find(ctx context.Context, id string) (*portal.SessionRecord, error) {
	if id == "" {
		return nil, portal.ErrSessionNotFound
	}

	data, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, portal.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var record portal.SessionRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		// a record we cannot read is dropped and treated as absent
		if err := s.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("cleanup corrupt session: %w", err)
		}
		return nil, portal.ErrSessionNotFound
	}

	if record.Expired(s.now()) {
		if err := s.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("cleanup expired session: %w", err)
		}
		return nil, portal.ErrSessionNotFound
	}

	if record.Groups == nil {
		record.Groups = []string{}
	}

	return &record, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SessionStore) key(id string) string {
	return s.prefix + id
}
