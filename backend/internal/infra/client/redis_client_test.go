package client

import (
	"context"
	"testing"

	"iqupdate/backend/internal/config"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisOptionsFromConfig(t *testing.T) {
	opts, ok, err := RedisOptionsFromConfig(config.RedisConfig{Endpoint: "cache.local", DB: 2})
	if err != nil || !ok {
		t.Fatalf("unexpected result ok=%v err=%v", ok, err)
	}
	if opts.Host != "cache.local" || opts.Port != defaultRedisPort || opts.DB != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}

	if _, ok, err := RedisOptionsFromConfig(config.RedisConfig{}); ok || err != nil {
		t.Fatalf("empty endpoint should disable redis, ok=%v err=%v", ok, err)
	}

	if _, _, err := RedisOptionsFromConfig(config.RedisConfig{Endpoint: "host:notaport"}); err == nil {
		t.Fatalf("expected invalid port error")
	}
}

func TestNewRedisClientPings(t *testing.T) {
	mr := miniredis.RunT(t)

	opts, _, err := RedisOptionsFromConfig(config.RedisConfig{Endpoint: mr.Addr()})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	client, err := NewRedisClient(context.Background(), opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	mr.Close()
	if _, err := NewRedisClient(context.Background(), opts); err == nil {
		t.Fatalf("expected ping failure after server closed")
	}
}
