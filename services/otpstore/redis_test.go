package otpstore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alphazero/academy/core/user"
)

// redisEnv names a disposable redis server, e.g. redis://localhost:6379/15
const redisEnv = "ACADEMY_TEST_REDIS_URL"

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv(redisEnv)
	if url == "" || testing.Short() {
		t.Skipf("%s not set", redisEnv)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL(): %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	if err = client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("Ping(): %v", err)
	}
	return client
}

func TestRedisStore(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	store := NewRedisStore(client)
	email := uuid.NewString() + "@test.id"
	t.Cleanup(func() { _ = store.Delete(ctx, email) })

	if _, err := store.Get(ctx, email); err != user.ErrOTPNotFound {
		t.Fatalf("Get() on empty store error = %v; want %v", err, user.ErrOTPNotFound)
	}
	if _, err := store.IncrAttempts(ctx, email); err != user.ErrOTPNotFound {
		t.Fatalf("IncrAttempts() on empty store error = %v; want %v", err, user.ErrOTPNotFound)
	}
	if n, _ := client.Exists(ctx, keyPrefix+email).Result(); n != 0 {
		t.Fatal("IncrAttempts() created the entry")
	}

	if err := store.Save(ctx, email, "hash1", time.Minute); err != nil {
		t.Fatalf("Save(): %v", err)
	}
	if ttl := client.TTL(ctx, keyPrefix+email).Val(); ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v; want at most a minute", ttl)
	}

	t.Run("concurrent attempts are all counted", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.IncrAttempts(ctx, email); err != nil {
					t.Errorf("IncrAttempts(): %v", err)
				}
			}()
		}
		wg.Wait()
		entry, err := store.Get(ctx, email)
		if err != nil || entry.Hash != "hash1" || entry.Attempts != 10 {
			t.Errorf("Get() = %+v, %v; want 10 attempts", entry, err)
		}
	})

	// a new code resets the attempts
	_ = store.Save(ctx, email, "hash2", time.Minute)
	if entry, _ := store.Get(ctx, email); entry.Hash != "hash2" || entry.Attempts != 0 {
		t.Errorf("Get() after Save() = %+v", entry)
	}

	_ = store.Delete(ctx, email)
	if _, err := store.Get(ctx, email); err != user.ErrOTPNotFound {
		t.Errorf("Get() after Delete() error = %v; want %v", err, user.ErrOTPNotFound)
	}
}
