package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/solwatch/core/logger"
	tghelpers "github.com/m3rciful/solwatch/core/telegram/helpers"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

const defaultIdleTTL = 10 * time.Minute

// RateLimitOptions configures the per-user token bucket.
type RateLimitOptions struct {
	PerSecond float64
	Burst     int
	// IdleTTL evicts buckets of users silent for longer; 0 means 10 minutes.
	IdleTTL   time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// UserLimiter keeps one rate.Limiter per user id.
type UserLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu     sync.Mutex
	byUser map[int64]*bucket
	hits   uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserLimiter returns nil when perSecond <= 0; a nil limiter allows everything.
func NewUserLimiter(perSecond float64, burst int, idleTTL time.Duration) *UserLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	return &UserLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: idleTTL,
		byUser:  make(map[int64]*bucket),
	}
}

// Allow consumes one token for userID at now.
func (l *UserLimiter) Allow(userID int64, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byUser[userID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byUser[userID] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%256 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for id, v := range l.byUser {
			if v.lastSeen.Before(cutoff) {
				delete(l.byUser, id)
			}
		}
	}
	return allowed
}

// Len reports the number of tracked users.
func (l *UserLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byUser)
}

// RateLimitMiddleware drops updates from users exceeding their bucket.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	limiter := NewUserLimiter(opts.PerSecond, opts.Burst, opts.IdleTTL)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || limiter == nil {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}
			if limiter.Allow(user.ID, time.Now()) {
				return next(c)
			}

			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
				slog.String("status", "skip"),
				slog.String("kind", UpdateKind(c.Update())),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
