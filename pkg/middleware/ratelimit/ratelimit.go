package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"appt-service/pkg/response"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"
)

const defaultIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Store keeps one token bucket per client address. Buckets idle for longer
// than the idle TTL are dropped by Prune.
type Store struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

func NewStore(perMinute, burst int) *Store {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}

	return &Store{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		idleTTL:  defaultIdleTTL,
		now:      time.Now,
	}
}

func (s *Store) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = s.now()

	return v.limiter
}

// Prune drops visitors not seen within the idle TTL and returns how many
// were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idleTTL)
	removed := 0
	for key, v := range s.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(s.visitors, key)
			removed++
		}
	}

	return removed
}

// Run prunes idle visitors every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Prune()
		}
	}
}

func New(log *slog.Logger, store *Store) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log := log.With(slog.String("component", "middleware/ratelimit"))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			if !store.limiter(key).Allow() {
				log.Warn("rate limit exceeded", slog.String("client", key))
				w.WriteHeader(http.StatusTooManyRequests)
				render.JSON(w, r, response.Error(response.RATE_LIMITED, "rate limit exceeded, try again later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
