package db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nftlender/backend/internal/config"
)

func TestNewRedisClientSuccess(t *testing.T) {
	s := miniredis.RunT(t)

	c, err := NewRedisClient(context.Background(), config.Config{RedisAddr: s.Addr(), RedisDB: 2})
	if err != nil {
		t.Fatalf("NewRedisClient returned error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if got := c.Options().DB; got != 2 {
		t.Fatalf("client DB = %d, want 2", got)
	}
}

func TestNewRedisClientFailure(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), config.Config{RedisAddr: "not-a-real-host:6379"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}
