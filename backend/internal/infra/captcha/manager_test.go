package captcha

import (
	"context"
	"errors"
	"testing"
	"time"

	"iqupdate/backend/internal/infra/ratelimit"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, server
}

func TestManagerGenerateAndVerifyRedis(t *testing.T) {
	client, _ := newRedisClient(t)
	manager := NewManager(client, nil, Options{Prefix: "test-captcha", TTL: time.Minute, Length: 4})

	ctx := context.Background()
	id, image, err := manager.Generate(ctx, "127.0.0.1")
	if err != nil {
		t.Fatalf("generate captcha: %v", err)
	}
	if id == "" || image == "" {
		t.Fatalf("expected id and image, got %q / %d bytes", id, len(image))
	}

	stored, err := client.Get(ctx, "test-captcha:"+id).Result()
	if err != nil {
		t.Fatalf("get stored answer: %v", err)
	}
	if len(stored) != 4 {
		t.Fatalf("expected 4 digit answer, got %q", stored)
	}

	if err := manager.Verify(ctx, id, stored); err != nil {
		t.Fatalf("verify captcha: %v", err)
	}
	if err := manager.Verify(ctx, id, stored); !errors.Is(err, ErrCaptchaNotFound) {
		t.Fatalf("captcha must be single use, got %v", err)
	}
}

func TestManagerVerifyMismatchConsumesAnswer(t *testing.T) {
	client, _ := newRedisClient(t)
	manager := NewManager(client, nil, Options{Prefix: "test-captcha"})

	ctx := context.Background()
	id, _, err := manager.Generate(ctx, "")
	if err != nil {
		t.Fatalf("generate captcha: %v", err)
	}
	if err := manager.Verify(ctx, id, "wrong"); !errors.Is(err, ErrCaptchaMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, err := client.Get(ctx, "test-captcha:"+id).Result(); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected answer removed after failed verify, got %v", err)
	}
}

func TestManagerMemoryStore(t *testing.T) {
	manager := NewManager(nil, nil, Options{})
	ctx := context.Background()

	id, _, err := manager.Generate(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("generate captcha: %v", err)
	}
	mem := manager.store.(*memoryAnswerStore)
	answer := mem.store.Get(id, false)
	if answer == "" {
		t.Fatalf("expected answer in memory store")
	}
	if err := manager.Verify(ctx, id, " "+answer+" "); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := manager.Verify(ctx, "", answer); !errors.Is(err, ErrCaptchaNotFound) {
		t.Fatalf("expected not found for empty id, got %v", err)
	}
}

func TestManagerRateLimited(t *testing.T) {
	manager := NewManager(nil, ratelimit.NewMemoryLimiter(), Options{RateLimitPerMin: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := manager.Generate(ctx, "10.0.0.2"); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}
	if _, _, err := manager.Generate(ctx, "10.0.0.2"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
}

func TestLoadOptionsFromEnv(t *testing.T) {
	t.Setenv("CAPTCHA_TTL", "2m")
	t.Setenv("CAPTCHA_LENGTH", "6")
	t.Setenv("CAPTCHA_RATE_LIMIT_PER_MIN", "")

	opts, err := LoadOptionsFromEnv()
	if err != nil {
		t.Fatalf("load options: %v", err)
	}
	if opts.TTL != 2*time.Minute || opts.Length != 6 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.Prefix != defaultPrefix || opts.RateLimitPerMin != defaultRateLimit {
		t.Fatalf("defaults not applied: %+v", opts)
	}

	t.Setenv("CAPTCHA_WIDTH", "wide")
	if _, err := LoadOptionsFromEnv(); err == nil {
		t.Fatalf("expected parse error")
	}
}
