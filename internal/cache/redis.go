// Package cache keeps subject schedules in Redis in front of the record store.
//
// Every subject has a generation counter. Entries are written tagged with the
// generation read before the store was queried, and Invalidate bumps the
// counter, so a reader that raced a schedule write can never publish the old
// schedule under the new generation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"appt-service/internal/models"

	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache miss")

type ScheduleCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

type entry struct {
	Version  int64                   `json:"version"`
	Schedule *models.SubjectSchedule `json:"schedule"`
}

func NewScheduleCache(client redis.Cmdable, ttl time.Duration) *ScheduleCache {
	return &ScheduleCache{client: client, ttl: ttl}
}

// Version returns the subject's current generation. A subject that was never
// invalidated is at generation zero.
func (c *ScheduleCache) Version(ctx context.Context, subjectID string) (int64, error) {
	const op = "cache.ScheduleCache.Version"

	v, err := c.client.Get(ctx, generationKey(subjectID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

// Get returns the cached schedule. Entries written under an older generation
// are reported as a miss.
func (c *ScheduleCache) Get(ctx context.Context, subjectID string) (*models.SubjectSchedule, error) {
	const op = "cache.ScheduleCache.Get"

	raw, err := c.client.Get(ctx, scheduleKey(subjectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if e.Schedule == nil {
		return nil, ErrMiss
	}

	current, err := c.Version(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if e.Version != current {
		return nil, ErrMiss
	}

	if e.Schedule.Days == nil {
		e.Schedule.Days = models.WeeklySchedule{}
	}

	return e.Schedule, nil
}

// Set stores sched tagged with version, which must be the value Version
// returned before sched was read from the store.
func (c *ScheduleCache) Set(ctx context.Context, sched *models.SubjectSchedule, version int64) error {
	const op = "cache.ScheduleCache.Set"

	raw, err := json.Marshal(entry{Version: version, Schedule: sched})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.client.Set(ctx, scheduleKey(sched.SubjectID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Invalidate moves the subject to a new generation and drops the entry.
func (c *ScheduleCache) Invalidate(ctx context.Context, subjectID string) error {
	const op = "cache.ScheduleCache.Invalidate"

	if err := c.client.Incr(ctx, generationKey(subjectID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.client.Del(ctx, scheduleKey(subjectID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func scheduleKey(subjectID string) string {
	return fmt.Sprintf("schedule:%s", subjectID)
}

func generationKey(subjectID string) string {
	return fmt.Sprintf("schedule:gen:%s", subjectID)
}
