package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-polls/internal/cache"
	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/fanout"
	"github.com/weiawesome/wes-io-polls/internal/hub"
	"github.com/weiawesome/wes-io-polls/internal/idgen"
	"github.com/weiawesome/wes-io-polls/internal/ratelimit"
	"github.com/weiawesome/wes-io-polls/internal/repository"
	"github.com/weiawesome/wes-io-polls/internal/testutil"
)

var (
	alice = domain.Actor{UserID: "user_alice", Username: "alice", Role: domain.RoleAdmin}
	bob   = domain.Actor{UserID: "user_bob", Username: "bob", Role: domain.RoleUser}
	carol = domain.Actor{UserID: "user_carol", Username: "carol", Role: domain.RoleUser}
	mod   = domain.Actor{UserID: "user_mod", Username: "mod", Role: domain.RoleModerator}
)

type env struct {
	ctx      context.Context
	hub      *hub.Hub
	clock    *fakeClock
	polls    *pollServiceImpl
	chat     *chatServiceImpl
	rooms    *roomServiceImpl
	presence *presenceServiceImpl
	users    *repository.GormUserRepository
	messages *repository.GormMessageRepository
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
func newClock() *fakeClock                   { return &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)} }
func limiterFor(c *fakeClock) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.DefaultRules(), ratelimit.WithClock(c.Now))
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	clock := newClock()

	pollRepo := repository.NewGormPollRepository(db)
	roomRepo := repository.NewGormRoomRepository(db)
	msgRepo := repository.NewGormMessageRepository(db)
	userRepo := repository.NewGormUserRepository(db)
	presenceRepo := repository.NewGormPresenceRepository(db)

	h := hub.NewHub()
	fan := fanout.New(h, pollRepo, roomRepo)
	limiter := limiterFor(clock)
	ids := idgen.New()

	e := &env{
		ctx:      context.Background(),
		hub:      h,
		clock:    clock,
		users:    userRepo,
		messages: msgRepo,
		polls: NewPollService(pollRepo, cache.NewNoopPollCache(), limiter, fan, ids,
			PollOptions{CacheTTL: time.Minute}).(*pollServiceImpl),
		chat: NewChatService(msgRepo, pollRepo, roomRepo, limiter, fan, ids,
			ChatOptions{MaxMessageLength: 500, HistorySize: 50}).(*chatServiceImpl),
		rooms:    NewRoomService(roomRepo, fan, ids).(*roomServiceImpl),
		presence: NewPresenceService(presenceRepo, userRepo).(*presenceServiceImpl),
	}
	e.polls.now = clock.Now
	e.chat.now = clock.Now
	e.rooms.now = clock.Now
	e.presence.now = clock.Now
	return e
}

// connect registers a live connection for actor and subscribes its
// personal channel.
func (e *env) connect(actor domain.Actor) *hub.Client {
	c := hub.NewClient("conn-"+actor.UserID, actor.UserID, 64)
	e.hub.Register(c)
	e.hub.Subscribe(c, domain.UserChannel(actor.UserID))
	return c
}

func (e *env) createPoll(t *testing.T, actor domain.Actor, access string, allowed []string, options ...string) *domain.Poll {
	t.Helper()
	if len(options) == 0 {
		options = []string{"red", "blue"}
	}
	p, err := e.polls.CreatePoll(e.ctx, actor, &domain.CreatePollInput{
		Question:       "Favourite colour?",
		Options:        options,
		AccessType:     access,
		AllowedUserIDs: allowed,
	})
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	return p
}

func received(c *hub.Client) []hub.Frame {
	var frames []hub.Frame
	for {
		select {
		case data := <-c.Send:
			var f hub.Frame
			if err := json.Unmarshal(data, &f); err != nil {
				panic(err)
			}
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func names(frames []hub.Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Event
	}
	return out
}

func assertCode(t *testing.T, err error, want *domain.Error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %s", err, want.Code)
	}
}

func sumVotes(p *domain.Poll) int {
	total := 0
	for _, o := range p.Options {
		total += o.Votes
	}
	return total
}
