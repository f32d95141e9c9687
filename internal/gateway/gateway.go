// Package gateway binds websocket connections to authenticated subjects
// and dispatches their requests to the poll, chat and presence services.
package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-polls/internal/audit"
	"github.com/weiawesome/wes-io-polls/internal/config"
	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/fanout"
	"github.com/weiawesome/wes-io-polls/internal/hub"
	"github.com/weiawesome/wes-io-polls/internal/service"
	"github.com/weiawesome/wes-io-polls/pkg/log"
	"github.com/weiawesome/wes-io-polls/pkg/middleware"
	"github.com/weiawesome/wes-io-polls/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Gateway struct {
	hub       *hub.Hub
	fanout    *fanout.Fanout
	polls     service.PollService
	chat      service.ChatService
	presence  service.PresenceService
	validator middleware.TokenValidator
	cfg       config.WebSocketConfig

	mu       sync.Mutex
	sessions map[string]map[string]*Session // userID -> clientID -> session

	// lifecycle orders first-connection and last-connection presence
	// writes so a subject never ends offline while connected.
	lifecycle sync.Mutex
}

func New(
	fan *fanout.Fanout,
	polls service.PollService,
	chat service.ChatService,
	presence service.PresenceService,
	validator middleware.TokenValidator,
	cfg config.WebSocketConfig,
) *Gateway {
	return &Gateway{
		hub:       fan.Hub(),
		fanout:    fan,
		polls:     polls,
		chat:      chat,
		presence:  presence,
		validator: validator,
		cfg:       cfg,
		sessions:  make(map[string]map[string]*Session),
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (g *Gateway) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", gin.WrapH(g))
}

// ServeHTTP authenticates the request and upgrades it. Authentication
// failures are answered with a JSON envelope before any upgrade.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := log.Ctx(r.Context())

	principal, err := g.authenticate(r)
	if err != nil {
		l.Debug().Err(err).Msg("websocket authentication failed")
		status, resp := response.FailFromError(err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	actor := domain.Actor{UserID: principal.UserID, Username: principal.Username, Role: principal.Role}
	client := hub.NewClient(uuid.NewString(), actor.UserID, g.cfg.SendBuffer)
	s := newSession(client, conn, actor, g.cfg)
	g.open(s)

	go s.WritePump()
	go s.ReadPump(g.handle, g.close)
}

func (g *Gateway) authenticate(r *http.Request) (*middleware.Principal, error) {
	token := middleware.ExtractToken(r)
	if token == "" {
		return nil, domain.ErrTokenRequired
	}
	return g.validator.ValidateToken(r.Context(), token)
}

func (g *Gateway) open(s *Session) {
	l := log.Ctx(s.ctx)

	g.lifecycle.Lock()
	g.mu.Lock()
	conns, ok := g.sessions[s.actor.UserID]
	if !ok {
		conns = make(map[string]*Session)
		g.sessions[s.actor.UserID] = conns
	}
	first := len(conns) == 0
	conns[s.client.ID] = s
	g.mu.Unlock()

	g.hub.Register(s.client)
	g.hub.Subscribe(s.client, domain.UserChannel(s.actor.UserID))

	if first {
		if err := g.presence.Connect(s.ctx, s.actor.UserID); err != nil {
			l.Error().Err(err).Msg("failed to record presence")
		}
		g.fanout.Broadcast(domain.Event{
			Name: domain.EventUserOnline,
			Data: domain.UserPresenceEvent{UserID: s.actor.UserID, Username: s.actor.Username, Timestamp: time.Now().UTC()},
		}, s.client.ID)
	}
	g.lifecycle.Unlock()

	if err := g.fanout.Sync(s.ctx, s.actor.UserID); err != nil {
		l.Error().Err(err).Msg("failed to sync channel subscriptions")
	}

	audit.LogWithDetail(s.ctx, audit.ActionConnect, s.actor.UserID, s.client.ID, "websocket connected")
}

// close reconciles state after a connection ends: polls it joined are
// left unless another connection of the subject still holds them, and
// the subject goes offline with its last connection.
func (g *Gateway) close(s *Session) {
	l := log.Ctx(s.ctx)

	g.mu.Lock()
	joined := make([]string, 0, len(s.joined))
	for pollID := range s.joined {
		joined = append(joined, pollID)
	}
	s.joined = make(map[string]struct{})
	g.mu.Unlock()

	for _, pollID := range joined {
		if g.heldElsewhere(s, pollID) {
			continue
		}
		if _, err := g.polls.LeavePoll(s.ctx, s.actor, pollID); err != nil {
			l.Debug().Err(err).Str(log.FieldPollID, pollID).Msg("failed to leave poll on disconnect")
		}
	}

	g.lifecycle.Lock()
	g.mu.Lock()
	last := false
	if conns, ok := g.sessions[s.actor.UserID]; ok {
		if _, ok := conns[s.client.ID]; ok {
			delete(conns, s.client.ID)
			last = len(conns) == 0
		}
		if len(conns) == 0 {
			delete(g.sessions, s.actor.UserID)
		}
	}
	g.mu.Unlock()

	g.hub.Unregister(s.client)
	if last {
		if err := g.presence.Disconnect(s.ctx, s.actor.UserID); err != nil {
			l.Error().Err(err).Msg("failed to record offline presence")
		}
		g.fanout.Broadcast(domain.Event{
			Name: domain.EventUserOffline,
			Data: domain.UserPresenceEvent{UserID: s.actor.UserID, Username: s.actor.Username, Timestamp: time.Now().UTC()},
		}, "")
	}
	g.lifecycle.Unlock()

	audit.LogWithDetail(s.ctx, audit.ActionDisconnect, s.actor.UserID, s.client.ID, "websocket disconnected")
}

// heldElsewhere reports whether another connection of s's subject has
// joined pollID.
func (g *Gateway) heldElsewhere(s *Session, pollID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, other := range g.sessions[s.actor.UserID] {
		if id == s.client.ID {
			continue
		}
		if _, ok := other.joined[pollID]; ok {
			return true
		}
	}
	return false
}

func (g *Gateway) markJoined(s *Session, pollID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.joined[pollID] = struct{}{}
}

func (g *Gateway) markLeft(s *Session, pollID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(s.joined, pollID)
}

// DisconnectUser closes every live connection of userID after flushing
// what is already queued for it. It returns how many were closed.
func (g *Gateway) DisconnectUser(userID string) int {
	conns := g.hub.Connections(userID)
	for _, c := range conns {
		g.hub.Unregister(c)
	}
	return len(conns)
}

// handle decodes one inbound frame, dispatches it and acks the result.
func (g *Gateway) handle(s *Session, raw []byte) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		g.reply(s, "", "", nil, domain.ErrInvalidPayload.WithMessage("malformed request"))
		return
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		g.reply(s, req.ID, req.Action, nil, domain.ErrInvalidPayload.WithMessage("action is required"))
		return
	}

	data, err := g.safeDispatch(s, &req)
	g.reply(s, req.ID, req.Action, data, err)
}

func (g *Gateway) safeDispatch(s *Session, req *Request) (data interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			l := log.Ctx(s.ctx)
			l.Error().Str(log.FieldAction, req.Action).Interface("panic", r).Msg("panic while handling request")
			data, err = nil, domain.ErrInternal
		}
	}()
	return g.dispatch(s, req)
}

func (g *Gateway) reply(s *Session, id, action string, data interface{}, err error) {
	l := log.Ctx(s.ctx)

	resp := response.OK(data)
	if err != nil {
		var status int
		status, resp = response.FailFromError(err)
		switch {
		case status >= http.StatusInternalServerError:
			l.Error().Err(err).Str(log.FieldAction, action).Msg("request failed")
		case id == "":
			// No ack will carry this error.
			l.Warn().Err(err).Str(log.FieldAction, action).Msg("request without id rejected")
		default:
			l.Debug().Err(err).Str(log.FieldAction, action).Msg("request rejected")
		}
	}

	if id == "" {
		return
	}
	frame, encErr := hub.EncodeAck(id, resp)
	if encErr != nil {
		l.Error().Err(encErr).Str(log.FieldAction, action).Msg("failed to encode ack")
		return
	}
	g.hub.Send(s.client, frame)
}

func (g *Gateway) dispatch(s *Session, req *Request) (interface{}, error) {
	ctx, actor := s.ctx, s.actor

	switch req.Action {
	case ActionPollCreate:
		var p CreatePollPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		return g.polls.CreatePoll(ctx, actor, &domain.CreatePollInput{
			Question:       p.Question,
			Description:    p.Description,
			Options:        p.Options,
			AccessType:     p.AccessType,
			AllowedUserIDs: p.AllowedUserIDs,
		})

	case ActionPollVote:
		var p VotePayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		return g.polls.Vote(ctx, actor, p.PollID, *p.OptionID)

	case ActionPollClose:
		var p PollIDPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		return g.polls.ClosePoll(ctx, actor, p.PollID)

	case ActionPollEdit:
		var p EditPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		return g.polls.EditPoll(ctx, actor, p.PollID, &p.Updates)

	case ActionPollDelete:
		var p PollIDPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		if _, err := g.polls.DeletePoll(ctx, actor, p.PollID); err != nil {
			return nil, err
		}
		return gin.H{"pollId": p.PollID}, nil

	case ActionPollKick:
		var p KickPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		return g.polls.KickUser(ctx, actor, p.PollID, p.UserID)

	case ActionPollJoin:
		var p PollIDPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		poll, err := g.polls.JoinPoll(ctx, actor, p.PollID)
		if err != nil {
			return nil, err
		}
		g.markJoined(s, p.PollID)
		g.joinChannel(s, domain.PollChannel(p.PollID))
		return poll, nil

	case ActionPollLeave:
		var p PollIDPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		g.markLeft(s, p.PollID)
		if !g.heldElsewhere(s, p.PollID) {
			if _, err := g.polls.LeavePoll(ctx, actor, p.PollID); err != nil {
				return nil, err
			}
		}
		return gin.H{"pollId": p.PollID}, nil

	case ActionPollGetState:
		if err := g.fanout.Sync(ctx, actor.UserID); err != nil {
			return nil, err
		}
		return g.polls.GetState(ctx, actor)

	case ActionChatSend:
		var p ChatSendPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		scope, err := p.scope()
		if err != nil {
			return nil, err
		}
		return g.chat.SendMessage(ctx, actor, scope, p.Content)

	case ActionChatHistory:
		var p ScopePayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		scope, err := p.scope()
		if err != nil {
			return nil, err
		}
		msgs, err := g.chat.History(ctx, actor, scope)
		if err != nil {
			return nil, err
		}
		return gin.H{"scopeType": scope.Type, "scopeId": scope.ID, "messages": msgs}, nil

	case ActionChatDelete:
		var p MessageIDPayload
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		return g.chat.DeleteMessage(ctx, actor, p.MessageID)

	case ActionChatJoinRoom, ActionChatJoinPoll:
		scope, err := g.chatScope(req)
		if err != nil {
			return nil, err
		}
		res, err := g.chat.CanJoin(ctx, actor, scope)
		if err != nil {
			return nil, err
		}
		if !g.fanout.Join(res, s.client) {
			return nil, domain.ErrAccessDenied
		}
		g.joinChannel(s, scope.ChannelKey())
		msgs, err := g.chat.History(ctx, actor, scope)
		if err != nil {
			return nil, err
		}
		return gin.H{"channel": scope.ChannelKey(), "scopeType": scope.Type, "scopeId": scope.ID, "messages": msgs}, nil

	case ActionChatLeaveRoom, ActionChatLeavePoll:
		scope, err := g.chatScope(req)
		if err != nil {
			return nil, err
		}
		g.fanout.LeaveChat(s.client, scope.ChannelKey())
		if !g.chatHeldElsewhere(s, scope.ChatKey()) {
			if err := g.presence.LeaveChannel(ctx, actor.UserID, scope.ChannelKey()); err != nil {
				return nil, err
			}
		}
		return gin.H{"channel": scope.ChannelKey()}, nil

	case ActionPresenceOnline:
		return g.presence.OnlineUsers(ctx)

	case ActionPresenceAll:
		return g.presence.AllUsers(ctx)

	case ActionPing:
		return gin.H{"pong": true, "timestamp": time.Now().UTC()}, nil

	default:
		return nil, domain.ErrInvalidPayload.WithMessage(fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (g *Gateway) chatScope(req *Request) (domain.Scope, error) {
	switch req.Action {
	case ActionChatJoinRoom, ActionChatLeaveRoom:
		var p RoomIDPayload
		if err := decode(req.Payload, &p); err != nil {
			return domain.Scope{}, err
		}
		return domain.Scope{Type: domain.ScopeRoom, ID: p.RoomID}, nil
	default:
		var p PollIDPayload
		if err := decode(req.Payload, &p); err != nil {
			return domain.Scope{}, err
		}
		return domain.Scope{Type: domain.ScopePoll, ID: p.PollID}, nil
	}
}

// chatHeldElsewhere reports whether another connection of s's subject
// still listens on chatKey.
func (g *Gateway) chatHeldElsewhere(s *Session, chatKey string) bool {
	for _, c := range g.hub.Connections(s.actor.UserID) {
		if c.ID != s.client.ID && g.hub.IsSubscribed(c, chatKey) {
			return true
		}
	}
	return false
}

func (g *Gateway) joinChannel(s *Session, key string) {
	if err := g.presence.JoinChannel(s.ctx, s.actor.UserID, key); err != nil {
		l := log.Ctx(s.ctx)
		l.Warn().Err(err).Str(log.FieldChannel, key).Msg("failed to record channel membership")
	}
}
