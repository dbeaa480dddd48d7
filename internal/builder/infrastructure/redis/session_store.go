package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/burger-builder/internal/builder/application"
)

const keyPrefix = "burger:session:"

// SessionStore keeps sessions as JSON values with a sliding TTL. Saves run
// under WATCH so a write based on a stale version fails instead of
// overwriting a newer one.
type SessionStore struct {
	log *slog.Logger
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(log *slog.Logger, rdb *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{log: log, rdb: rdb, ttl: ttl}
}

func (s *SessionStore) Key(id string) string { return keyPrefix + id }

func (s *SessionStore) Create(ctx context.Context, sess application.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.Key(sess.ID), b, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	return nil
}

// Load returns the session and resets its TTL.
func (s *SessionStore) Load(ctx context.Context, id string) (application.Session, error) {
	b, err := s.rdb.GetEx(ctx, s.Key(id), s.ttl).Bytes()
	return decode(id, b, err)
}

func (s *SessionStore) Save(ctx context.Context, sess application.Session) error {
	key := s.Key(sess.ID)
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := s.get(ctx, tx, sess.ID)
		if err != nil {
			return err
		}
		if cur.Version != sess.Version-1 {
			return application.ErrSessionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, s.ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		s.log.Warn("session watch aborted", "session_id", sess.ID)
		return application.ErrSessionConflict
	}
	return err
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, s.Key(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return application.ErrSessionNotFound
	}
	return nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *SessionStore) get(ctx context.Context, c getter, id string) (application.Session, error) {
	b, err := c.Get(ctx, s.Key(id)).Bytes()
	return decode(id, b, err)
}

func decode(id string, b []byte, err error) (application.Session, error) {
	if errors.Is(err, redis.Nil) {
		return application.Session{}, application.ErrSessionNotFound
	}
	if err != nil {
		return application.Session{}, err
	}
	var sess application.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return application.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return sess, nil
}
