package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-polls/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestEleventhVoteInAMinuteIsRejected(t *testing.T) {
	clock := newClock()
	l := New(DefaultRules(), WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		if err := l.Check("user_a", ActionVote); err != nil {
			t.Fatalf("vote %d rejected: %v", i+1, err)
		}
		clock.Advance(time.Second)
	}

	if err := l.Check("user_a", ActionVote); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("11th vote: got %v, want RATE_LIMITED", err)
	}

	// Other subjects and classes are independent.
	if !l.Allow("user_b", ActionVote) {
		t.Error("another subject should not be limited")
	}
	if !l.Allow("user_a", ActionChatSend) {
		t.Error("another action class should not be limited")
	}
}

func TestWindowSlides(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		limit  int
		window time.Duration
	}{
		{name: "poll create", action: ActionPollCreate, limit: 3, window: time.Minute},
		{name: "chat send", action: ActionChatSend, limit: 5, window: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newClock()
			l := New(DefaultRules(), WithClock(clock.Now))

			for i := 0; i < tt.limit; i++ {
				if !l.Allow("u", tt.action) {
					t.Fatalf("attempt %d rejected", i+1)
				}
			}
			if l.Allow("u", tt.action) {
				t.Fatal("attempt over the limit accepted")
			}

			clock.Advance(tt.window - time.Millisecond)
			if l.Allow("u", tt.action) {
				t.Fatal("accepted before the window elapsed")
			}

			clock.Advance(time.Millisecond)
			if !l.Allow("u", tt.action) {
				t.Fatal("rejected after the window elapsed")
			}
		})
	}
}

func TestRejectedAttemptsAreNotRecorded(t *testing.T) {
	clock := newClock()
	l := New(map[Action]Rule{ActionVote: {Limit: 1, Window: time.Minute}}, WithClock(clock.Now))

	l.Allow("u", ActionVote)
	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Second)
		l.Allow("u", ActionVote)
	}

	// First hit was at t=0; rejected ones at t=10..50 must not extend the window.
	clock.Advance(10 * time.Second)
	if !l.Allow("u", ActionVote) {
		t.Error("rejected attempts extended the window")
	}
}

func TestUnknownActionIsUnlimited(t *testing.T) {
	l := New(nil)
	for i := 0; i < 100; i++ {
		if !l.Allow("u", ActionVote) {
			t.Fatal("action without rule was limited")
		}
	}
}

func TestSweep(t *testing.T) {
	clock := newClock()
	l := New(DefaultRules(), WithClock(clock.Now))

	l.Allow("a", ActionChatSend)
	l.Allow("b", ActionVote)

	clock.Advance(30 * time.Second)
	if got := l.Sweep(); got != 1 {
		t.Errorf("Sweep() = %d, want 1 (chat key idle)", got)
	}

	clock.Advance(time.Minute)
	if got := l.Sweep(); got != 1 {
		t.Errorf("Sweep() = %d, want 1 (vote key idle)", got)
	}
}

func TestConcurrentAllow(t *testing.T) {
	l := New(map[Action]Rule{ActionVote: {Limit: 50, Window: time.Hour}})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("u", ActionVote) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 50 {
		t.Errorf("accepted = %d, want 50", accepted)
	}
}
