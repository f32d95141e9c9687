package hub

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/weiawesome/wes-io-polls/internal/domain"
)

func drain(c *Client) []Frame {
	var frames []Frame
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return frames
			}
			var f Frame
			if err := json.Unmarshal(data, &f); err != nil {
				panic(err)
			}
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func eventNames(frames []Frame) []string {
	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.Event
	}
	return names
}

func TestRegisterTracksFirstAndLastConnection(t *testing.T) {
	h := NewHub()
	a1 := NewClient("c1", "alice", 8)
	a2 := NewClient("c2", "alice", 8)

	if !h.Register(a1) {
		t.Error("first connection not reported as first")
	}
	if h.Register(a2) {
		t.Error("second connection reported as first")
	}
	if h.ConnectionCount("alice") != 2 {
		t.Errorf("count = %d", h.ConnectionCount("alice"))
	}

	if h.Unregister(a1) {
		t.Error("closing one of two connections reported as last")
	}
	if !h.Unregister(a2) {
		t.Error("closing final connection not reported as last")
	}
	if h.Unregister(a2) {
		t.Error("double unregister reported as last")
	}
	if _, ok := <-a2.Send; ok {
		t.Error("send buffer not closed")
	}
}

func TestPublishReachesOnlyMembers(t *testing.T) {
	h := NewHub()
	member := NewClient("c1", "alice", 8)
	outsider := NewClient("c2", "bob", 8)
	h.Register(member)
	h.Register(outsider)

	h.Subscribe(member, "poll:1")
	h.Subscribe(member, "poll:1")

	n := h.Publish("poll:1", domain.Event{Name: domain.EventPollResults, Data: map[string]int{"total": 1}})
	if n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
	if got := eventNames(drain(member)); !reflect.DeepEqual(got, []string{domain.EventPollResults}) {
		t.Errorf("member got %v", got)
	}
	if got := drain(outsider); len(got) != 0 {
		t.Errorf("outsider got %v", got)
	}

	// Events published before subscribing are not queued.
	h.Publish("poll:2", domain.Event{Name: domain.EventPollUpdated})
	h.Subscribe(outsider, "poll:2")
	if got := drain(outsider); len(got) != 0 {
		t.Errorf("late subscriber got %v", got)
	}
}

func TestEventFrameShape(t *testing.T) {
	h := NewHub()
	c := NewClient("c1", "alice", 8)
	h.Register(c)
	h.Subscribe(c, "room:1")

	h.Publish("room:1", domain.Event{Name: domain.EventRoomDeleted, Data: domain.RoomDeletedEvent{RoomID: "room_1"}})

	raw := <-c.Send
	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["type"] != "event" || got["event"] != domain.EventRoomDeleted {
		t.Errorf("frame = %s", raw)
	}
	data, _ := got["data"].(map[string]interface{})
	if data["roomId"] != "room_1" {
		t.Errorf("data = %v", got["data"])
	}
}

func TestBroadcastExcludes(t *testing.T) {
	h := NewHub()
	a := NewClient("c1", "alice", 8)
	b := NewClient("c2", "bob", 8)
	h.Register(a)
	h.Register(b)

	if n := h.Broadcast(domain.Event{Name: domain.EventUserOnline}, a.ID); n != 1 {
		t.Errorf("delivered = %d", n)
	}
	if len(drain(a)) != 0 || len(drain(b)) != 1 {
		t.Error("exclude not honoured")
	}
}

func TestSubscribeUserAndClose(t *testing.T) {
	h := NewHub()
	a1 := NewClient("c1", "alice", 8)
	a2 := NewClient("c2", "alice", 8)
	b := NewClient("c3", "bob", 8)
	for _, c := range []*Client{a1, a2, b} {
		h.Register(c)
	}

	h.SubscribeUser("alice", "poll:1")
	h.Subscribe(b, "poll:1")
	if got := h.Members("poll:1"); !reflect.DeepEqual(got, []string{"c1", "c2", "c3"}) {
		t.Fatalf("members = %v", got)
	}

	h.UnsubscribeUser("alice", "poll:1")
	if got := h.Members("poll:1"); !reflect.DeepEqual(got, []string{"c3"}) {
		t.Fatalf("members after UnsubscribeUser = %v", got)
	}

	h.Close("poll:1")
	if got := h.Members("poll:1"); len(got) != 0 {
		t.Errorf("members after Close = %v", got)
	}
	if h.IsSubscribed(b, "poll:1") || len(h.Channels(b)) != 0 {
		t.Error("membership index not cleared by Close")
	}
}

func TestSubscribeUserWith_SkipsExistingMembers(t *testing.T) {
	h := NewHub()
	a1 := NewClient("c1", "alice", 8)
	a2 := NewClient("c2", "alice", 8)
	h.Register(a1)
	h.Register(a2)

	h.SubscribeUserWith("alice", "poll:1", "chat:poll:1")
	h.Unsubscribe(a1, "chat:poll:1")

	h.SubscribeUserWith("alice", "poll:1", "chat:poll:1")
	if got := h.Members("chat:poll:1"); !reflect.DeepEqual(got, []string{"c2"}) {
		t.Fatalf("chat members = %v", got)
	}

	h.UnsubscribeUser("alice", "poll:1", "chat:poll:1")
	if len(h.Channels(a1)) != 0 || len(h.Channels(a2)) != 0 {
		t.Fatal("memberships survived UnsubscribeUser")
	}

	h.SubscribeUserWith("alice", "poll:1", "chat:poll:1")
	if got := h.Members("chat:poll:1"); !reflect.DeepEqual(got, []string{"c1", "c2"}) {
		t.Errorf("chat members after resubscribe = %v", got)
	}
}

func TestUnregisterDropsMemberships(t *testing.T) {
	h := NewHub()
	c := NewClient("c1", "alice", 8)
	h.Register(c)
	h.Subscribe(c, "poll:1")
	h.Subscribe(c, "user:alice")

	h.Unregister(c)
	if len(h.Members("poll:1")) != 0 || len(h.Members("user:alice")) != 0 {
		t.Error("memberships survived unregister")
	}

	// Subscribing an unregistered client is ignored.
	h.Subscribe(c, "poll:1")
	if len(h.Members("poll:1")) != 0 {
		t.Error("unregistered client subscribed")
	}
}

func TestSlowClientIsEvicted(t *testing.T) {
	h := NewHub()
	slow := NewClient("c1", "alice", 1)
	fast := NewClient("c2", "bob", 8)
	h.Register(slow)
	h.Register(fast)
	h.Subscribe(slow, "poll:1")
	h.Subscribe(fast, "poll:1")

	h.Publish("poll:1", domain.Event{Name: "one"})
	n := h.Publish("poll:1", domain.Event{Name: "two"})
	if n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}

	if h.ConnectionCount("alice") != 0 {
		t.Error("slow client still registered")
	}
	if got := h.Members("poll:1"); !reflect.DeepEqual(got, []string{"c2"}) {
		t.Errorf("members = %v", got)
	}
	if h.Send(slow, []byte("x")) {
		t.Error("Send to evicted client succeeded")
	}
	if got := eventNames(drain(fast)); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("fast client order = %v", got)
	}
}
