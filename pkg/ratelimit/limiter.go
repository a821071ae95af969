// Package ratelimit throttles requests per anonymized client address
// using a fixed window: every record's count resets each window, account
// associations persist across resets.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"codeshare/pkg/logger"
	"codeshare/pkg/models"
	"codeshare/pkg/security"
	"codeshare/pkg/store"
)

// ThrottledBody is the plain-text response for rejected requests.
const ThrottledBody = "You've been temporarily blocked from accessing this resource due to making too many requests"

// Limiter counts requests per anonymized IP key. The reference
// implementation compared the whole record against the threshold instead
// of its count, so its throttle never fired; here the count is compared.
type Limiter struct {
	mu          sync.Mutex
	records     map[string]*models.IPRecord
	maxRequests int
	maxAccounts int
	window      time.Duration

	// OnThrottle is invoked on every rejection; the app wires a metrics
	// counter here.
	OnThrottle func()
}

// New builds a limiter with the given per-window request cap, signup
// account cap and reset window.
func New(maxRequests, maxAccounts int, window time.Duration) *Limiter {
	return &Limiter{
		records:     map[string]*models.IPRecord{},
		maxRequests: maxRequests,
		maxAccounts: maxAccounts,
		window:      window,
	}
}

// Load restores persisted records. Request counts start at zero; only
// the account associations survive restarts.
func (l *Limiter) Load() error {
	recs, err := store.ListIPRecords()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, r := range recs {
		r.Requests = 0
		l.records[k] = r
	}
	logger.Info("ip_records_loaded", "count", len(l.records))
	return nil
}

// Key anonymizes a forwarded-for header value. The raw address is passed
// through the master-key digest so it is never persisted or logged.
func (l *Limiter) Key(forwardedFor string) string {
	return security.KeyedDigest(forwardedFor)
}

// Allow increments the key's count, creating the record lazily, and
// reports whether the request is admitted.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	rec, ok := l.records[key]
	if !ok {
		rec = &models.IPRecord{}
		l.records[key] = rec
	}
	rec.Requests++
	admitted := rec.Requests <= l.maxRequests
	l.mu.Unlock()
	if !admitted && l.OnThrottle != nil {
		l.OnThrottle()
	}
	return admitted
}

// SignupAllowed reports whether the key may create another account.
func (l *Limiter) SignupAllowed(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[key]
	if !ok {
		return true
	}
	return len(rec.Accounts) < l.maxAccounts
}

// Associate records a created account against the key and persists the
// record behind.
func (l *Limiter) Associate(key, accountID string) {
	l.mu.Lock()
	rec, ok := l.records[key]
	if !ok {
		rec = &models.IPRecord{}
		l.records[key] = rec
	}
	rec.Accounts = append(rec.Accounts, accountID)
	saved := *rec
	l.mu.Unlock()
	store.Enqueue("save_ip_record", func() error { return store.SaveIPRecord(key, &saved) })
}

// Start launches the window reset loop; it stops when ctx is canceled.
func (l *Limiter) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(l.window)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				l.reset()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (l *Limiter) reset() {
	l.mu.Lock()
	for _, rec := range l.records {
		rec.Requests = 0
	}
	l.mu.Unlock()
}
