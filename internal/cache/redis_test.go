package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"appt-service/internal/models"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttl  map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttl[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestScheduleCache(t *testing.T) {
	rdb := newFakeRedis()
	c := NewScheduleCache(rdb, 5*time.Minute)
	ctx := context.Background()

	if _, err := c.Get(ctx, "doc-1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}

	sched := &models.SubjectSchedule{
		SubjectID: "doc-1",
		Days: models.WeeklySchedule{
			time.Monday: {IsActive: true, Windows: []models.TimeWindow{
				{Start: models.NewClock(9, 0), End: models.NewClock(12, 0)},
			}},
		},
		UpdatedAt: time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC),
	}
	if err := c.Set(ctx, sched, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rdb.ttl["schedule:doc-1"] != 5*time.Minute {
		t.Errorf("expected ttl on schedule:doc-1, got %v", rdb.ttl)
	}

	got, err := c.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mon := got.Days[time.Monday]
	if !mon.IsActive || len(mon.Windows) != 1 || mon.Windows[0].End != models.NewClock(12, 0) {
		t.Errorf("unexpected cached schedule: %+v", got)
	}
	if !got.UpdatedAt.Equal(sched.UpdatedAt) {
		t.Errorf("expected updatedAt %v, got %v", sched.UpdatedAt, got.UpdatedAt)
	}

	if err := c.Invalidate(ctx, "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Get(ctx, "doc-1"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after invalidate, got %v", err)
	}
}

func TestScheduleCache_StaleGenerationIsAMiss(t *testing.T) {
	rdb := newFakeRedis()
	c := NewScheduleCache(rdb, time.Minute)
	ctx := context.Background()

	// a reader captures the generation before querying the store
	before, err := c.Version(ctx, "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a schedule write lands while the reader is still querying
	if err := c.Invalidate(ctx, "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stale := &models.SubjectSchedule{SubjectID: "doc-1", Days: models.WeeklySchedule{}}
	if err := c.Set(ctx, stale, before); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := c.Get(ctx, "doc-1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected entry from an old generation to miss, got %v", err)
	}

	after, err := c.Version(ctx, "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after != before+1 {
		t.Fatalf("expected generation %d, got %d", before+1, after)
	}

	fresh := &models.SubjectSchedule{
		SubjectID: "doc-1",
		Days:      models.WeeklySchedule{time.Tuesday: {IsActive: true}},
	}
	if err := c.Set(ctx, fresh, after); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := c.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Days[time.Tuesday].IsActive {
		t.Errorf("expected current generation entry, got %+v", got)
	}
}
