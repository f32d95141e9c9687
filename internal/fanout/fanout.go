// Package fanout decides which live connections hear about a poll or room
// and keeps channel membership in step with access rules.
package fanout

import (
	"context"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/hub"
	"github.com/weiawesome/wes-io-polls/internal/policy"
	"github.com/weiawesome/wes-io-polls/internal/repository"
	"github.com/weiawesome/wes-io-polls/pkg/log"
)

// Resource is a poll or room as far as audience resolution cares.
type Resource interface {
	domain.Accessible
	ChannelKey() string
}

// Fanout resolves audiences on top of a hub. A resource channel holds
// exactly the connections of subjects that pass CanAccess, so publishing
// to it reaches every authorized client: all connected clients for public
// resources, the allow-list for selected ones and the creator for private
// ones. Each resource channel has a paired chat channel. A connection
// joins it together with the resource channel and may leave it on its own;
// losing access drops both.
type Fanout struct {
	hub   *hub.Hub
	polls repository.PollRepository
	rooms repository.RoomRepository
}

func New(h *hub.Hub, polls repository.PollRepository, rooms repository.RoomRepository) *Fanout {
	return &Fanout{hub: h, polls: polls, rooms: rooms}
}

// Hub returns the underlying hub.
func (f *Fanout) Hub() *hub.Hub {
	return f.hub
}

// Created subscribes every authorized connected subject to r's channel and
// then publishes ev on it.
func (f *Fanout) Created(r Resource, ev domain.Event) int {
	f.subscribeAuthorized(r)
	return f.hub.Publish(r.ChannelKey(), ev)
}

// Changed handles an access-affecting update: newly authorized subjects
// are subscribed before ev is published and subjects that lost access are
// unsubscribed afterwards.
func (f *Fanout) Changed(r Resource, ev domain.Event) int {
	f.subscribeAuthorized(r)
	n := f.hub.Publish(r.ChannelKey(), ev)
	f.unsubscribeUnauthorized(r)
	return n
}

// Publish sends ev to the current members of r's channel.
func (f *Fanout) Publish(r Resource, ev domain.Event) int {
	return f.hub.Publish(r.ChannelKey(), ev)
}

// PublishKey sends ev to the current members of key.
func (f *Fanout) PublishKey(key string, ev domain.Event) int {
	return f.hub.Publish(key, ev)
}

// Kicked notifies the target privately, drops them from r's channels and
// then publishes ev to the remaining members.
func (f *Fanout) Kicked(r Resource, targetID string, notice, ev domain.Event) int {
	f.hub.Publish(domain.UserChannel(targetID), notice)
	f.hub.UnsubscribeUser(targetID, r.ChannelKey(), domain.ChatChannel(r.ChannelKey()))
	return f.hub.Publish(r.ChannelKey(), ev)
}

// Deleted publishes ev on key and then closes key and its chat channel.
func (f *Fanout) Deleted(key string, ev domain.Event) int {
	n := f.hub.Publish(key, ev)
	f.hub.Close(key)
	f.hub.Close(domain.ChatChannel(key))
	return n
}

// Notify sends ev to every connection of userID.
func (f *Fanout) Notify(userID string, ev domain.Event) int {
	return f.hub.Publish(domain.UserChannel(userID), ev)
}

// Broadcast sends ev to every live connection except excludeClientID.
func (f *Fanout) Broadcast(ev domain.Event, excludeClientID string) int {
	return f.hub.Broadcast(ev, excludeClientID)
}

// Admit subscribes every connection of userID to r's channels if the
// subject passes CanAccess.
func (f *Fanout) Admit(r Resource, userID string) {
	if policy.CanAccess(r, userID) {
		f.subscribe(userID, r)
	}
}

// Join subscribes the single connection c to r's channels if its subject
// passes CanAccess. It reports whether c was admitted.
func (f *Fanout) Join(r Resource, c *hub.Client) bool {
	if !policy.CanAccess(r, c.UserID) {
		return false
	}
	f.hub.Subscribe(c, r.ChannelKey())
	f.hub.Subscribe(c, domain.ChatChannel(r.ChannelKey()))
	return true
}

// LeaveChat drops c from the chat channel paired with key. Resource events
// keep reaching it.
func (f *Fanout) LeaveChat(c *hub.Client, key string) {
	f.hub.Unsubscribe(c, domain.ChatChannel(key))
}

// Sync recomputes the channel memberships of every connection of userID
// against all polls and rooms.
func (f *Fanout) Sync(ctx context.Context, userID string) error {
	l := log.Ctx(ctx)

	polls, err := f.polls.List(ctx)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list polls for sync")
		return err
	}
	for _, p := range polls {
		f.syncOne(p, userID)
	}

	rooms, err := f.rooms.List(ctx)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list rooms for sync")
		return err
	}
	for _, r := range rooms {
		f.syncOne(r, userID)
	}
	return nil
}

func (f *Fanout) syncOne(r Resource, userID string) {
	if policy.CanAccess(r, userID) {
		f.subscribe(userID, r)
		return
	}
	f.unsubscribe(userID, r)
}

// subscribe adds the chat channel only for connections that were not yet
// members of the resource channel, so a chat leave survives resyncs.
func (f *Fanout) subscribe(userID string, r Resource) {
	f.hub.SubscribeUserWith(userID, r.ChannelKey(), domain.ChatChannel(r.ChannelKey()))
}

func (f *Fanout) unsubscribe(userID string, r Resource) {
	f.hub.UnsubscribeUser(userID, r.ChannelKey(), domain.ChatChannel(r.ChannelKey()))
}

func (f *Fanout) subscribeAuthorized(r Resource) {
	for _, userID := range f.hub.ConnectedUsers() {
		if policy.CanAccess(r, userID) {
			f.subscribe(userID, r)
		}
	}
}

func (f *Fanout) unsubscribeUnauthorized(r Resource) {
	for _, userID := range f.hub.SubscribedUsers(r.ChannelKey()) {
		if !policy.CanAccess(r, userID) {
			f.unsubscribe(userID, r)
		}
	}
}
