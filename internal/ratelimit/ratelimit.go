// Package ratelimit implements per-subject sliding-window counters.
package ratelimit

import (
	"sync"
	"time"

	"github.com/weiawesome/wes-io-polls/internal/domain"
)

// Action is a rate-limited class of request.
type Action string

const (
	ActionVote       Action = "vote"
	ActionPollCreate Action = "poll_create"
	ActionChatSend   Action = "chat_send"
)

// Rule allows Limit attempts per Window.
type Rule struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// DefaultRules returns the stock limits.
func DefaultRules() map[Action]Rule {
	return map[Action]Rule{
		ActionVote:       {Limit: 10, Window: time.Minute},
		ActionPollCreate: {Limit: 3, Window: time.Minute},
		ActionChatSend:   {Limit: 5, Window: 10 * time.Second},
	}
}

type key struct {
	subject string
	action  Action
}

// Limiter tracks accepted attempts per (subject, action).
type Limiter struct {
	mu    sync.Mutex
	rules map[Action]Rule
	hits  map[key][]time.Time
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter. Actions without a rule are never limited.
func New(rules map[Action]Rule, opts ...Option) *Limiter {
	l := &Limiter{
		rules: make(map[Action]Rule, len(rules)),
		hits:  make(map[key][]time.Time),
		now:   time.Now,
	}
	for a, r := range rules {
		l.rules[a] = r
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records an attempt and reports whether it is within the limit.
// Rejected attempts are not recorded.
func (l *Limiter) Allow(subjectID string, action Action) bool {
	rule, ok := l.rules[action]
	if !ok || rule.Limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := key{subject: subjectID, action: action}
	recent := prune(l.hits[k], now.Add(-rule.Window))

	if len(recent) >= rule.Limit {
		l.hits[k] = recent
		return false
	}
	l.hits[k] = append(recent, now)
	return true
}

// Check is Allow returning domain.ErrRateLimited on rejection.
func (l *Limiter) Check(subjectID string, action Action) error {
	if !l.Allow(subjectID, action) {
		return domain.ErrRateLimited
	}
	return nil
}

// Sweep drops keys with no attempt inside their window and returns how
// many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, ts := range l.hits {
		rule := l.rules[k.action]
		recent := prune(ts, now.Add(-rule.Window))
		if len(recent) == 0 {
			delete(l.hits, k)
			removed++
			continue
		}
		l.hits[k] = recent
	}
	return removed
}

// prune drops timestamps at or before cutoff. ts is ascending.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}
