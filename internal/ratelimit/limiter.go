// ABOUTME: Fixed-window per-client limiter and its HTTP middleware
// ABOUTME: Hashes client IPs with BLAKE2b and answers 429 once a window is spent

package ratelimit

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrLimitExceeded is returned when a request is blocked due to rate limiting.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// RejectMessage is the error text sent with 429 responses.
const RejectMessage = "Too many requests. Please wait."

// LimitExceededError reports which window a blocked request fell into.
type LimitExceededError struct {
	Key     string
	Current int
	Limit   int
	ResetAt time.Time
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (%d/%d)", e.Key, e.Current, e.Limit)
}

func (e *LimitExceededError) Unwrap() error {
	return ErrLimitExceeded
}

// Decision is the outcome of counting one request.
type Decision struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithStore sets the counter store. The default is a MemoryStore.
func WithStore(s Store) Option {
	return func(l *Limiter) {
		l.store = s
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithLogger sets the logger used by the middleware.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// OnLimitReached registers a callback invoked for each blocked request.
func OnLimitReached(fn func(key string, current int)) Option {
	return func(l *Limiter) {
		l.onLimitReached = fn
	}
}

// Limiter allows Limit requests per Window per client key.
type Limiter struct {
	limit          int
	window         time.Duration
	store          Store
	now            func() time.Time
	logger         *slog.Logger
	onLimitReached func(string, int)
}

// New creates a Limiter allowing limit requests per window.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		logger: slog.Default().With("component", "ratelimit"),
	}
	for _, o := range opts {
		o(l)
	}
	if l.store == nil {
		l.store = NewMemoryStore(window)
	}
	return l
}

// Check counts one request for key. It returns a *LimitExceededError when the
// key's window is already spent.
func (l *Limiter) Check(ctx context.Context, key string) (Decision, error) {
	current, resetAt, err := l.store.Increment(ctx, key, l.now(), l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: store error: %w", err)
	}

	d := Decision{
		Limit:     l.limit,
		Remaining: max(l.limit-current, 0),
		ResetAt:   resetAt,
	}
	if current > l.limit {
		if l.onLimitReached != nil {
			l.onLimitReached(key, current)
		}
		return d, &LimitExceededError{Key: key, Current: current, Limit: l.limit, ResetAt: resetAt}
	}
	return d, nil
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}

// Close releases resources held by the limiter's store.
func (l *Limiter) Close() error {
	return l.store.Close()
}

// KeyFunc derives the client key for a request.
type KeyFunc func(r *http.Request) string

// Middleware enforces the limit on every request passing through it. A store
// failure lets the request through so the site stays available.
func (l *Limiter) Middleware(keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			d, err := l.Check(r.Context(), key)

			var limitErr *LimitExceededError
			switch {
			case errors.As(err, &limitErr):
				l.logger.Warn("rate limit exceeded", "client", key, "path", r.URL.Path, "count", limitErr.Current)
				l.writeHeaders(w, d)
				w.Header().Set("Retry-After", strconv.Itoa(l.secondsUntil(d.ResetAt)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": RejectMessage})
				return
			case err != nil:
				l.logger.Error("rate limit check failed", "error", err)
			default:
				l.writeHeaders(w, d)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) writeHeaders(w http.ResponseWriter, d Decision) {
	h := w.Header()
	h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("RateLimit-Reset", strconv.Itoa(l.secondsUntil(d.ResetAt)))
}

// secondsUntil rounds the time left until t up to whole seconds.
func (l *Limiter) secondsUntil(t time.Time) int {
	secs := math.Ceil(t.Sub(l.now()).Seconds())
	if secs < 0 {
		return 0
	}
	return int(secs)
}

// ClientKey returns a KeyFunc keyed on the client IP. With trustProxy the
// first X-Forwarded-For hop is used when present.
func ClientKey(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		return HashIP(ClientIP(r, trustProxy))
	}
}

// ClientIP extracts the client address from the request.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// HashIP returns a stable, non-reversible key for ip.
func HashIP(ip string) string {
	sum := blake2b.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:16])
}
