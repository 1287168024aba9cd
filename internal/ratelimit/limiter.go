// Package ratelimit implements the sliding-window request quota shared by all
// completion entry points. One Limiter instance is created per process and
// injected into the gateway and HTTP handlers; there is no global state.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"poststudio/internal/logging"
)

// Bucket tracks request usage for one identity inside the current window.
type Bucket struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// Result is the outcome of a quota check.
type Result struct {
	Allowed           bool
	RetryAfterMinutes int
}

// BucketStore persists buckets across restarts. Implementations must be safe
// for use from a single Limiter (the Limiter serializes calls).
type BucketStore interface {
	LoadBuckets() (map[string]Bucket, error)
	SaveBucket(identity string, b Bucket) error
}

// Limiter is a sliding-window request counter keyed by caller identity.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]Bucket
	max     int
	window  time.Duration
	store   BucketStore

	now func() time.Time // test seam
}

// New creates a limiter allowing max requests per window.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]Bucket),
		max:     max,
		window:  window,
		now:     time.Now,
	}
}

// NewWithStore creates a limiter whose buckets are loaded from and written
// through to the given store, so quotas survive process restarts.
func NewWithStore(max int, window time.Duration, store BucketStore) (*Limiter, error) {
	l := New(max, window)
	l.store = store
	buckets, err := store.LoadBuckets()
	if err != nil {
		return nil, err
	}
	if buckets != nil {
		l.buckets = buckets
	}
	return l, nil
}

// CheckAndConsume checks the identity's quota and, when allowed, consumes one
// request. The count is charged before any network round-trip happens so
// concurrent callers cannot overshoot the window.
func (l *Limiter) CheckAndConsume(identity string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[identity]
	if !ok || now.Sub(b.WindowStart) > l.window {
		b = Bucket{Count: 0, WindowStart: now}
	}

	if b.Count >= l.max {
		left := b.WindowStart.Add(l.window).Sub(now)
		minutes := int(math.Ceil(left.Minutes()))
		if minutes < 1 {
			minutes = 1
		}
		logging.RateLimit("denied identity=%s count=%d retry_after=%dm", identity, b.Count, minutes)
		return Result{Allowed: false, RetryAfterMinutes: minutes}
	}

	b.Count++
	l.buckets[identity] = b
	l.persist(identity, b)
	return Result{Allowed: true}
}

// Refund returns one request to the identity's bucket. Used when the process
// is configured to not charge quota for failed completions.
func (l *Limiter) Refund(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[identity]
	if !ok || b.Count == 0 {
		return
	}
	b.Count--
	l.buckets[identity] = b
	l.persist(identity, b)
}

// Usage returns the current count for an identity (0 if none or expired).
func (l *Limiter) Usage(identity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[identity]
	if !ok || l.now().Sub(b.WindowStart) > l.window {
		return 0
	}
	return b.Count
}

// SetLimits updates the window parameters; existing buckets keep their
// counts. Used by config hot reload.
func (l *Limiter) SetLimits(max int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.max = max
	l.window = window
}

func (l *Limiter) persist(identity string, b Bucket) {
	if l.store == nil {
		return
	}
	if err := l.store.SaveBucket(identity, b); err != nil {
		logging.Get(logging.CategoryRateLimit).Warn("persist bucket identity=%s: %v", identity, err)
	}
}
