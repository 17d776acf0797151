package cron

import (
	"context"
	"testing"
	"time"

	redisclient "github.com/angelmondragon/kartupintar-backend/pkg/redis"
	"github.com/angelmondragon/kartupintar-backend/pkg/redis/redistest"
)

func TestRedisLockIsExclusiveUntilReleased(t *testing.T) {
	client := redisclient.NewFromCmdable(redistest.NewCmdable())
	ctx := context.Background()

	first, err := NewRedisLock(client, "cron-worker:test", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, err := NewRedisLock(client, "cron-worker:test", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, err := second.Acquire(ctx); err != nil || ok {
		t.Fatalf("second acquire should fail: ok=%v err=%v", ok, err)
	}
	// A non-owner release leaves the holder in place.
	if err := second.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("lock stolen by non-owner")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if ok, err := second.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "x", 0); err == nil {
		t.Fatal("expected error for nil client")
	}
	client := redisclient.NewFromCmdable(redistest.NewCmdable())
	if _, err := NewRedisLock(client, "", 0); err == nil {
		t.Fatal("expected error for empty name")
	}
}
