package policy

import (
	"errors"
	"reflect"
	"testing"

	"github.com/weiawesome/wes-io-polls/internal/domain"
)

func TestCanAccess(t *testing.T) {
	tests := []struct {
		name    string
		poll    domain.Poll
		subject string
		want    bool
	}{
		{
			name:    "creator of private poll",
			poll:    domain.Poll{CreatorID: "alice", AccessType: domain.AccessPrivate},
			subject: "alice",
			want:    true,
		},
		{
			name:    "stranger on private poll",
			poll:    domain.Poll{CreatorID: "alice", AccessType: domain.AccessPrivate},
			subject: "bob",
			want:    false,
		},
		{
			name:    "anyone on public poll",
			poll:    domain.Poll{CreatorID: "alice", AccessType: domain.AccessPublic},
			subject: "bob",
			want:    true,
		},
		{
			name:    "unset access type is public",
			poll:    domain.Poll{CreatorID: "alice"},
			subject: "bob",
			want:    true,
		},
		{
			name:    "legacy access type is public",
			poll:    domain.Poll{CreatorID: "alice", AccessType: "members"},
			subject: "bob",
			want:    true,
		},
		{
			name:    "allowed user on selected poll",
			poll:    domain.Poll{CreatorID: "alice", AccessType: domain.AccessSelected, AllowedUserIDs: []string{"alice", "bob"}},
			subject: "bob",
			want:    true,
		},
		{
			name:    "outsider on selected poll",
			poll:    domain.Poll{CreatorID: "alice", AccessType: domain.AccessSelected, AllowedUserIDs: []string{"alice", "bob"}},
			subject: "carol",
			want:    false,
		},
		{
			name: "kicked user stays out even when allowed",
			poll: domain.Poll{
				CreatorID:      "alice",
				AccessType:     domain.AccessSelected,
				AllowedUserIDs: []string{"alice", "bob"},
				KickedUserIDs:  []string{"bob"},
			},
			subject: "bob",
			want:    false,
		},
		{
			name:    "kicked user on public poll",
			poll:    domain.Poll{CreatorID: "alice", AccessType: domain.AccessPublic, KickedUserIDs: []string{"bob"}},
			subject: "bob",
			want:    false,
		},
		{
			name:    "anonymous subject",
			poll:    domain.Poll{CreatorID: "alice", AccessType: domain.AccessPublic},
			subject: "",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccess(&tt.poll, tt.subject); got != tt.want {
				t.Errorf("CanAccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAccessRoom(t *testing.T) {
	room := &domain.Room{CreatorID: "alice", AccessType: domain.AccessPrivate}
	if CanAccess(room, "bob") {
		t.Error("private room must reject non-creators")
	}
	if !CanAccess(room, "alice") {
		t.Error("private room must admit its creator")
	}
}

func TestRoles(t *testing.T) {
	poll := &domain.Poll{CreatorID: "alice"}

	tests := []struct {
		name         string
		actor        domain.Actor
		wantManage   bool
		wantModerate bool
	}{
		{name: "creator", actor: domain.Actor{UserID: "alice", Role: domain.RoleUser}, wantManage: true, wantModerate: true},
		{name: "admin", actor: domain.Actor{UserID: "root", Role: domain.RoleAdmin}, wantManage: true, wantModerate: true},
		{name: "moderator", actor: domain.Actor{UserID: "mod", Role: domain.RoleModerator}, wantManage: false, wantModerate: true},
		{name: "user", actor: domain.Actor{UserID: "bob", Role: domain.RoleUser}, wantManage: false, wantModerate: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanManage(poll, tt.actor); got != tt.wantManage {
				t.Errorf("CanManage() = %v, want %v", got, tt.wantManage)
			}
			if got := CanModerate(poll.CreatorID, tt.actor); got != tt.wantModerate {
				t.Errorf("CanModerate() = %v, want %v", got, tt.wantModerate)
			}
		})
	}
}

func TestNormalizeAccessType(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.AccessType
		wantErr error
	}{
		{in: "", want: domain.AccessPublic},
		{in: "public", want: domain.AccessPublic},
		{in: "private", want: domain.AccessPrivate},
		{in: "selected", want: domain.AccessSelected},
		{in: "secret", wantErr: domain.ErrInvalidAccessType},
	}

	for _, tt := range tests {
		got, err := NormalizeAccessType(tt.in)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%q: err = %v, want %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeAllowed(t *testing.T) {
	tests := []struct {
		name       string
		accessType domain.AccessType
		ids        []string
		want       []string
	}{
		{name: "selected adds creator", accessType: domain.AccessSelected, ids: []string{"bob"}, want: []string{"bob", "alice"}},
		{name: "selected dedups", accessType: domain.AccessSelected, ids: []string{"bob", "alice", "bob", ""}, want: []string{"bob", "alice"}},
		{name: "selected with nil", accessType: domain.AccessSelected, ids: nil, want: []string{"alice"}},
		{name: "public clears", accessType: domain.AccessPublic, ids: []string{"bob"}, want: []string{}},
		{name: "private clears", accessType: domain.AccessPrivate, ids: []string{"bob"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAllowed(tt.accessType, tt.ids, "alice")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
