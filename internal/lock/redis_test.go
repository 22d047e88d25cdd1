package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	redis.Cmdable
	values map[string]string
	ttl    map[string]time.Duration
	evals  int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

// Eval mimics the compare-and-delete unlock script.
func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.evals++
	if v, ok := f.values[keys[0]]; ok && v == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLock(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLock(rdb)
	ctx := context.Background()

	token, ok, err := l.Lock(ctx, "appointment:rec-1", 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected lock, got %v, %v", ok, err)
	}
	if token == "" || rdb.values["lock:appointment:rec-1"] != token {
		t.Errorf("expected token stored under prefixed key, got %v", rdb.values)
	}
	if rdb.ttl["lock:appointment:rec-1"] != 10*time.Second {
		t.Errorf("expected ttl on prefixed key, got %v", rdb.ttl)
	}

	_, ok, err = l.Lock(ctx, "appointment:rec-1", 10*time.Second)
	if err != nil || ok {
		t.Fatalf("second holder must not get the lock, got %v, %v", ok, err)
	}

	if err := l.Unlock(ctx, "appointment:rec-1", token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, ok, _ = l.Lock(ctx, "appointment:rec-1", time.Second)
	if !ok {
		t.Error("expected lock after unlock")
	}
}

func TestRedisLock_ExpiredHolderCannotReleaseNewOwner(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLock(rdb)
	ctx := context.Background()

	first, ok, err := l.Lock(ctx, "appointment:rec-1", time.Second)
	if err != nil || !ok {
		t.Fatalf("expected lock, got %v, %v", ok, err)
	}

	// the first holder's ttl runs out and another writer takes the key
	delete(rdb.values, "lock:appointment:rec-1")
	second, ok, err := l.Lock(ctx, "appointment:rec-1", time.Second)
	if err != nil || !ok {
		t.Fatalf("expected second holder to lock, got %v, %v", ok, err)
	}
	if first == second {
		t.Fatal("expected distinct owner tokens")
	}

	if err := l.Unlock(ctx, "appointment:rec-1", first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rdb.values["lock:appointment:rec-1"] != second {
		t.Fatalf("late unlock removed the new holder's lock: %v", rdb.values)
	}

	if _, ok, _ := l.Lock(ctx, "appointment:rec-1", time.Second); ok {
		t.Error("expected key to stay held by the second owner")
	}
}
