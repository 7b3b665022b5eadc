// Package quota counts photos uploaded from one device within a rolling window.
// It throttles casual over-submission and is not a security boundary.
package quota

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"wedsync/lib/clock"
)

const (
	DefaultKey    = "wedding_photos_upload_count"
	DefaultWindow = 8 * time.Hour
	DefaultLimit  = 20
)

var ErrInvalidCount = errors.New("increment must be positive")

// Record is the persisted state: {"count": n, "timestamp": epoch-ms}.
type Record struct {
	Count     int   `json:"count"`
	Timestamp int64 `json:"timestamp"`
}

func (r Record) WindowStart() time.Time {
	return clock.FromEpochMillis(r.Timestamp)
}

// Store persists raw records by key.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithWindow(d time.Duration) Option {
	return func(t *Tracker) { t.window = d }
}

func WithLimit(n int) Option {
	return func(t *Tracker) { t.limit = n }
}

func WithKey(key string) Option {
	return func(t *Tracker) { t.key = key }
}

type Tracker struct {
	store  Store
	now    func() time.Time
	window time.Duration
	limit  int
	key    string
}

func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		now:    time.Now,
		window: DefaultWindow,
		limit:  DefaultLimit,
		key:    DefaultKey,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// load returns the live record, or nil when absent, unreadable or expired.
// Expired records are removed.
func (t *Tracker) load() (*Record, error) {
	raw, ok, err := t.store.Get(t.key)
	if err != nil {
		return nil, fmt.Errorf("quota get: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var r Record
	if err = json.Unmarshal(raw, &r); err != nil {
		return nil, nil
	}
	if t.now().Sub(r.WindowStart()) >= t.window {
		if err = t.store.Delete(t.key); err != nil {
			return nil, fmt.Errorf("quota delete: %w", err)
		}
		return nil, nil
	}
	return &r, nil
}

func (t *Tracker) CurrentCount() (int, error) {
	r, err := t.load()
	if err != nil || r == nil {
		return 0, err
	}
	return r.Count, nil
}

func (t *Tracker) Remaining() (int, error) {
	n, err := t.CurrentCount()
	if err != nil {
		return 0, err
	}
	return max(0, t.limit-n), nil
}

// Allowed reports whether at least one more photo fits in the window.
func (t *Tracker) Allowed() (bool, error) {
	n, err := t.Remaining()
	return n > 0, err
}

// Increment adds n to the live window, keeping its start, or opens a new
// window at now with count n. n must be positive; the stored record is left
// untouched otherwise.
func (t *Tracker) Increment(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}
	r, err := t.load()
	if err != nil {
		return err
	}
	if r == nil {
		r = &Record{Timestamp: clock.EpochMillis(t.now())}
	}
	r.Count += n
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("quota encode: %w", err)
	}
	if err = t.store.Set(t.key, raw); err != nil {
		return fmt.Errorf("quota set: %w", err)
	}
	return nil
}

// ResetsAt is the end of the live window, zero when there is none.
func (t *Tracker) ResetsAt() (time.Time, error) {
	r, err := t.load()
	if err != nil || r == nil {
		return time.Time{}, err
	}
	return r.WindowStart().Add(t.window), nil
}

func (t *Tracker) Limit() int {
	return t.limit
}
