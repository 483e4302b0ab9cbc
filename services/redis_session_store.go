package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"

	"bikes-api/models"
	"bikes-api/repositories"
)

const redisSessionPrefix = "session:"

// RedisSessionStore keeps sessions as JSON values that expire with the session.
type RedisSessionStore struct {
	client redis.Cmdable
}

func NewRedisSessionStore(client redis.Cmdable) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s", addr)
	}
	return rdb, nil
}

func (s *RedisSessionStore) Create(ctx context.Context, session *models.UserSession) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	return errors.Wrap(s.client.Set(ctx, redisSessionPrefix+session.ID, payload, ttl).Err(), "store session")
}

func (s *RedisSessionStore) Find(ctx context.Context, id string) (*models.UserSession, error) {
	payload, err := s.client.Get(ctx, redisSessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}

	var session models.UserSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	if session.Expired(time.Now()) {
		return nil, repositories.ErrNotFound
	}
	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return errors.Wrap(s.client.Del(ctx, redisSessionPrefix+id).Err(), "delete session")
}
