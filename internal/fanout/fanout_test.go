package fanout

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/hub"
	"github.com/weiawesome/wes-io-polls/internal/repository"
	"github.com/weiawesome/wes-io-polls/internal/testutil"
)

type fixture struct {
	f     *Fanout
	hub   *hub.Hub
	polls *repository.GormPollRepository
	rooms *repository.GormRoomRepository
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewDB(t)
	h := hub.NewHub()
	polls := repository.NewGormPollRepository(db)
	rooms := repository.NewGormRoomRepository(db)
	return &fixture{f: New(h, polls, rooms), hub: h, polls: polls, rooms: rooms}
}

func (fx *fixture) connect(id, userID string) *hub.Client {
	c := hub.NewClient(id, userID, 16)
	fx.hub.Register(c)
	fx.hub.Subscribe(c, domain.UserChannel(userID))
	return c
}

func events(c *hub.Client) []string {
	var names []string
	for {
		select {
		case data := <-c.Send:
			var f hub.Frame
			if err := json.Unmarshal(data, &f); err != nil {
				panic(err)
			}
			names = append(names, f.Event)
		default:
			return names
		}
	}
}

func poll(id string, access domain.AccessType, allowed ...string) *domain.Poll {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Poll{
		ID:             id,
		Question:       "q",
		Options:        []domain.Option{{ID: 0, Text: "a"}, {ID: 1, Text: "b"}},
		Status:         domain.PollStatusOpen,
		AccessType:     access,
		AllowedUserIDs: allowed,
		CreatorID:      "alice",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestCreated_Audience(t *testing.T) {
	tests := []struct {
		name    string
		poll    *domain.Poll
		reached []string
	}{
		{"public reaches everyone", poll("p1", domain.AccessPublic), []string{"alice", "bob", "carol"}},
		{"selected reaches allow-list", poll("p1", domain.AccessSelected, "alice", "bob"), []string{"alice", "bob"}},
		{"private reaches creator", poll("p1", domain.AccessPrivate), []string{"alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			clients := map[string]*hub.Client{
				"alice": fx.connect("c1", "alice"),
				"bob":   fx.connect("c2", "bob"),
				"carol": fx.connect("c3", "carol"),
			}

			fx.f.Created(tt.poll, domain.Event{Name: domain.EventPollCreated})

			var reached []string
			for _, user := range []string{"alice", "bob", "carol"} {
				if got := events(clients[user]); len(got) == 1 {
					reached = append(reached, user)
				}
			}
			if !reflect.DeepEqual(reached, tt.reached) {
				t.Errorf("reached = %v, want %v", reached, tt.reached)
			}
		})
	}
}

func TestChanged_SubscribesBeforeAndUnsubscribesAfter(t *testing.T) {
	fx := newFixture(t)
	bob := fx.connect("c2", "bob")
	carol := fx.connect("c3", "carol")

	p := poll("p1", domain.AccessSelected, "alice", "bob")
	fx.f.Created(p, domain.Event{Name: domain.EventPollCreated})
	events(bob)

	// bob is swapped out for carol: both hear the update, only carol stays.
	p.AllowedUserIDs = []string{"alice", "carol"}
	fx.f.Changed(p, domain.Event{Name: domain.EventPollUpdated})

	if got := events(bob); !reflect.DeepEqual(got, []string{domain.EventPollUpdated}) {
		t.Errorf("bob got %v", got)
	}
	if got := events(carol); !reflect.DeepEqual(got, []string{domain.EventPollUpdated}) {
		t.Errorf("carol got %v", got)
	}
	if fx.hub.IsSubscribed(bob, p.ChannelKey()) {
		t.Error("bob still subscribed")
	}
	if !fx.hub.IsSubscribed(carol, p.ChannelKey()) {
		t.Error("carol not subscribed")
	}
}

func TestKicked_NotifiesTargetThenDropsThem(t *testing.T) {
	fx := newFixture(t)
	alice := fx.connect("c1", "alice")
	bob := fx.connect("c2", "bob")

	p := poll("p1", domain.AccessPublic)
	fx.f.Created(p, domain.Event{Name: domain.EventPollCreated})
	events(alice)
	events(bob)

	fx.f.Kicked(p, "bob",
		domain.Event{Name: domain.EventPollKicked},
		domain.Event{Name: domain.EventParticipantLeft})

	if got := events(bob); !reflect.DeepEqual(got, []string{domain.EventPollKicked}) {
		t.Errorf("bob got %v", got)
	}
	if got := events(alice); !reflect.DeepEqual(got, []string{domain.EventParticipantLeft}) {
		t.Errorf("alice got %v", got)
	}
	if fx.hub.IsSubscribed(bob, domain.ChatChannel(p.ChannelKey())) {
		t.Error("bob still hears the poll chat")
	}
}

func TestDeleted_PublishesBeforeClosing(t *testing.T) {
	fx := newFixture(t)
	alice := fx.connect("c1", "alice")

	p := poll("p1", domain.AccessPublic)
	fx.f.Created(p, domain.Event{Name: domain.EventPollCreated})
	events(alice)

	if n := fx.f.Deleted(p.ChannelKey(), domain.Event{Name: domain.EventPollDeleted}); n != 1 {
		t.Errorf("delivered = %d", n)
	}
	if got := events(alice); !reflect.DeepEqual(got, []string{domain.EventPollDeleted}) {
		t.Errorf("alice got %v", got)
	}
	if len(fx.hub.Members(p.ChannelKey())) != 0 || len(fx.hub.Members(domain.ChatChannel(p.ChannelKey()))) != 0 {
		t.Error("channel not closed")
	}
}

func TestSync_FollowsAccess(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	open := poll("p1", domain.AccessPublic)
	hidden := poll("p2", domain.AccessSelected, "alice")
	kicked := poll("p3", domain.AccessPublic)
	kicked.KickedUserIDs = []string{"bob"}
	for _, p := range []*domain.Poll{open, hidden, kicked} {
		if err := fx.polls.Create(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	room := &domain.Room{ID: "r1", Name: "lobby", AccessType: domain.AccessPublic, CreatorID: "alice"}
	if err := fx.rooms.Create(ctx, room); err != nil {
		t.Fatalf("create room: %v", err)
	}

	bob := fx.connect("c2", "bob")
	fx.hub.Subscribe(bob, hidden.ChannelKey())

	if err := fx.f.Sync(ctx, "bob"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	want := []string{"chat:poll:p1", "chat:room:r1", "poll:p1", "room:r1", "user:bob"}
	if got := fx.hub.Channels(bob); !reflect.DeepEqual(got, want) {
		t.Errorf("channels = %v, want %v", got, want)
	}
}

func TestLeaveChat_SurvivesSync(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	p := poll("p1", domain.AccessPublic)
	if err := fx.polls.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	first := fx.connect("c1", "bob")
	fx.connect("c2", "bob")
	if err := fx.f.Sync(ctx, "bob"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	chat := domain.ChatChannel(p.ChannelKey())
	fx.f.LeaveChat(first, p.ChannelKey())
	if err := fx.f.Sync(ctx, "bob"); err != nil {
		t.Fatalf("resync: %v", err)
	}

	if got := fx.hub.Members(chat); !reflect.DeepEqual(got, []string{"c2"}) {
		t.Errorf("chat members = %v", got)
	}
	if !fx.hub.IsSubscribed(first, p.ChannelKey()) {
		t.Error("leaving chat dropped the poll channel")
	}

	if !fx.f.Join(p, first) {
		t.Fatal("join refused")
	}
	if got := fx.hub.Members(chat); !reflect.DeepEqual(got, []string{"c1", "c2"}) {
		t.Errorf("chat members after join = %v", got)
	}

	p.KickedUserIDs = []string{"bob"}
	if fx.f.Join(p, first) {
		t.Error("kicked subject admitted")
	}
}
