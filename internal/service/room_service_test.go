package service

import (
	"reflect"
	"testing"

	"github.com/weiawesome/wes-io-polls/internal/domain"
)

func TestCreateRoom(t *testing.T) {
	e := newEnv(t)

	_, err := e.rooms.CreateRoom(e.ctx, bob, &domain.CreateRoomInput{Name: "general"})
	assertCode(t, err, domain.ErrNotAuthorized)
	_, err = e.rooms.CreateRoom(e.ctx, alice, &domain.CreateRoomInput{Name: "ab"})
	assertCode(t, err, domain.ErrInvalidPayload)
	_, err = e.rooms.CreateRoom(e.ctx, alice, &domain.CreateRoomInput{Name: "general", AccessType: "hidden"})
	assertCode(t, err, domain.ErrInvalidAccessType)

	room, err := e.rooms.CreateRoom(e.ctx, alice, &domain.CreateRoomInput{Name: " general "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if room.Name != "general" || room.AccessType != domain.AccessPublic {
		t.Errorf("room = %+v", room)
	}

	_, err = e.rooms.CreateRoom(e.ctx, alice, &domain.CreateRoomInput{Name: "general"})
	assertCode(t, err, domain.ErrRoomNameExists)
}

func TestListRooms_Visibility(t *testing.T) {
	e := newEnv(t)
	for _, in := range []domain.CreateRoomInput{
		{Name: "lobby"},
		{Name: "vip", AccessType: "selected", AllowedUserIDs: []string{bob.UserID}},
		{Name: "staff", AccessType: "private"},
	} {
		in := in
		if _, err := e.rooms.CreateRoom(e.ctx, alice, &in); err != nil {
			t.Fatalf("create %s: %v", in.Name, err)
		}
	}

	visible := func(actor domain.Actor) []string {
		rooms, err := e.rooms.ListRooms(e.ctx, actor)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		var out []string
		for _, r := range rooms {
			out = append(out, r.Name)
		}
		return out
	}

	if got := visible(alice); len(got) != 3 {
		t.Errorf("alice sees %v", got)
	}
	if got := visible(bob); len(got) != 2 {
		t.Errorf("bob sees %v", got)
	}
	if got := visible(carol); !reflect.DeepEqual(got, []string{"lobby"}) {
		t.Errorf("carol sees %v", got)
	}
}

func TestUpdateRoomAndAllowList(t *testing.T) {
	e := newEnv(t)
	carolConn := e.connect(carol)
	room, err := e.rooms.CreateRoom(e.ctx, alice, &domain.CreateRoomInput{Name: "vip", AccessType: "selected"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = e.rooms.AddAllowedUser(e.ctx, bob, room.ID, carol.UserID)
	assertCode(t, err, domain.ErrNotAuthorized)

	room, err = e.rooms.AddAllowedUser(e.ctx, alice, room.ID, carol.UserID)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !reflect.DeepEqual(room.AllowedUserIDs, []string{alice.UserID, carol.UserID}) {
		t.Errorf("allowed = %v", room.AllowedUserIDs)
	}
	if got := names(received(carolConn)); !reflect.DeepEqual(got, []string{domain.EventRoomUpdated}) {
		t.Errorf("carol got %v", got)
	}
	if _, err := e.rooms.GetRoom(e.ctx, carol, room.ID); err != nil {
		t.Errorf("carol get: %v", err)
	}

	room, err = e.rooms.RemoveAllowedUser(e.ctx, alice, room.ID, alice.UserID)
	if err != nil {
		t.Fatalf("remove creator: %v", err)
	}
	if !reflect.DeepEqual(room.AllowedUserIDs, []string{carol.UserID, alice.UserID}) {
		t.Errorf("creator dropped from allow-list: %v", room.AllowedUserIDs)
	}

	name := "vip-lounge"
	_, err = e.rooms.UpdateRoom(e.ctx, carol, room.ID, &domain.RoomUpdates{Name: &name})
	assertCode(t, err, domain.ErrNotAuthorized)
	updated, err := e.rooms.UpdateRoom(e.ctx, alice, room.ID, &domain.RoomUpdates{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name {
		t.Errorf("name = %q", updated.Name)
	}
}

func TestDeleteRoom_CascadesMessages(t *testing.T) {
	e := newEnv(t)
	bobConn := e.connect(bob)
	room, err := e.rooms.CreateRoom(e.ctx, alice, &domain.CreateRoomInput{Name: "lobby"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	scope := domain.Scope{Type: domain.ScopeRoom, ID: room.ID}
	if _, err := e.chat.SendMessage(e.ctx, bob, scope, "hey"); err != nil {
		t.Fatalf("send: %v", err)
	}
	received(bobConn)

	_, err = e.rooms.DeleteRoom(e.ctx, bob, room.ID)
	assertCode(t, err, domain.ErrNotAuthorized)

	if _, err := e.rooms.DeleteRoom(e.ctx, alice, room.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := names(received(bobConn)); !reflect.DeepEqual(got, []string{domain.EventRoomDeleted}) {
		t.Errorf("bob got %v", got)
	}
	if n, _ := e.messages.CountByScope(e.ctx, scope); n != 0 {
		t.Errorf("messages left = %d", n)
	}
	_, err = e.rooms.GetRoom(e.ctx, alice, room.ID)
	assertCode(t, err, domain.ErrRoomNotFound)
}
