// Package redistest provides an in-memory stand-in for the go-redis commands
// the platform uses.
package redistest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ExpireCall records one EXPIRE issued against the fake.
type ExpireCall struct {
	Key string
	TTL time.Duration
}

// Cmdable is a goroutine-safe in-memory fake. TTLs are recorded, not enforced.
type Cmdable struct {
	mu          sync.Mutex
	Data        map[string]string
	Counters    map[string]int64
	ExpireCalls []ExpireCall
	Err         error
}

func NewCmdable() *Cmdable {
	return &Cmdable{
		Data:     make(map[string]string),
		Counters: make(map[string]int64),
	}
}

func (m *Cmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", m.Err)
}

func (m *Cmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return redis.NewStatusResult("", m.Err)
	}
	m.Data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *Cmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return redis.NewStringResult("", m.Err)
	}
	v, ok := m.Data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *Cmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return redis.NewBoolResult(false, m.Err)
	}
	if _, exists := m.Data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.Data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *Cmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return redis.NewIntResult(0, m.Err)
	}
	m.Counters[key]++
	return redis.NewIntResult(m.Counters[key], nil)
}

func (m *Cmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExpireCalls = append(m.ExpireCalls, ExpireCall{Key: key, TTL: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *Cmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := m.Data[key]; ok {
			n++
		}
		delete(m.Data, key)
	}
	return redis.NewIntResult(n, nil)
}

// Eval only understands the compare-and-delete lock release script.
func (m *Cmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return redis.NewCmdResult(nil, m.Err)
	}
	if len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, fmt.Errorf("unsupported eval call"))
	}
	if m.Data[keys[0]] == fmt.Sprint(args[0]) {
		delete(m.Data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}
