package otpstore

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/alphazero/academy/core/user"
)

const keyPrefix = "otp:"

// incrScript bumps the attempts of a live entry; it never resurrects an expired one.
var incrScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

type RedisStore struct {
	client redis.UniversalClient
}

var _ user.OTPStore = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, email, hash string, ttl time.Duration) error {
	key := keyPrefix + email
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "hash", hash, "attempts", 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return errors.Wrap(err, "saving otp")
}

func (s *RedisStore) Get(ctx context.Context, email string) (user.OTPEntry, error) {
	vals, err := s.client.HGetAll(ctx, keyPrefix+email).Result()
	if err != nil {
		return user.OTPEntry{}, errors.Wrap(err, "getting otp")
	}
	if vals["hash"] == "" {
		return user.OTPEntry{}, user.ErrOTPNotFound
	}
	attempts, _ := strconv.Atoi(vals["attempts"])
	return user.OTPEntry{Hash: vals["hash"], Attempts: attempts}, nil
}

func (s *RedisStore) IncrAttempts(ctx context.Context, email string) (int, error) {
	n, err := incrScript.Run(ctx, s.client, []string{keyPrefix + email}).Int()
	if err != nil {
		return 0, errors.Wrap(err, "counting otp attempt")
	}
	if n < 0 {
		return 0, user.ErrOTPNotFound
	}
	return n, nil
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	return errors.Wrap(s.client.Del(ctx, keyPrefix+email).Err(), "deleting otp")
}
