// Package handler exposes the poll, chat, room, presence and identity
// services over HTTP.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/identity"
	"github.com/weiawesome/wes-io-polls/internal/service"
	"github.com/weiawesome/wes-io-polls/pkg/log"
	"github.com/weiawesome/wes-io-polls/pkg/middleware"
	"github.com/weiawesome/wes-io-polls/pkg/response"
)

// Handler handles HTTP requests for the poll server.
type Handler struct {
	identity       identity.Service
	polls          service.PollService
	chat           service.ChatService
	rooms          service.RoomService
	presence       service.PresenceService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	ident identity.Service,
	polls service.PollService,
	chat service.ChatService,
	rooms service.RoomService,
	presence service.PresenceService,
	authMiddleware *middleware.AuthMiddleware,
) *Handler {
	return &Handler{
		identity:       ident,
		polls:          polls,
		chat:           chat,
		rooms:          rooms,
		presence:       presence,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
			auth.POST("/logout", h.authMiddleware.RequireAuth(), h.Logout)
			auth.GET("/me", h.authMiddleware.RequireAuth(), h.Me)
		}

		protected := api.Group("", h.authMiddleware.RequireAuth())

		polls := protected.Group("/polls")
		{
			polls.GET("", h.GetPollsState)
			polls.POST("", h.CreatePoll)
			polls.GET("/:id", h.GetPoll)
			polls.PUT("/:id", h.EditPoll)
			polls.DELETE("/:id", h.DeletePoll)
			polls.POST("/:id/vote", h.Vote)
			polls.POST("/:id/close", h.ClosePoll)
			polls.POST("/:id/kick", h.KickUser)
			polls.POST("/:id/join", h.JoinPoll)
			polls.POST("/:id/leave", h.LeavePoll)
			polls.GET("/:id/messages", h.pollScope(h.History))
			polls.POST("/:id/messages", h.pollScope(h.SendMessage))
		}

		rooms := protected.Group("/rooms")
		{
			rooms.GET("", h.ListRooms)
			rooms.POST("", h.CreateRoom)
			rooms.GET("/:id", h.GetRoom)
			rooms.PUT("/:id", h.UpdateRoom)
			rooms.DELETE("/:id", h.DeleteRoom)
			rooms.POST("/:id/users", h.AddAllowedUser)
			rooms.DELETE("/:id/users/:userId", h.RemoveAllowedUser)
			rooms.GET("/:id/messages", h.roomScope(h.History))
			rooms.POST("/:id/messages", h.roomScope(h.SendMessage))
		}

		protected.DELETE("/messages/:id", h.DeleteMessage)

		presence := protected.Group("/presence")
		{
			presence.GET("/online", h.OnlineUsers)
			presence.GET("/users", h.AllUsers)
		}
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

// OnlineUsers lists connected subjects.
func (h *Handler) OnlineUsers(c *gin.Context) {
	users, err := h.presence.OnlineUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to list online users")
		return
	}
	response.Success(c, users)
}

// AllUsers lists every registered subject with its presence.
func (h *Handler) AllUsers(c *gin.Context) {
	users, err := h.presence.AllUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to list users")
		return
	}
	response.Success(c, users)
}

func actor(c *gin.Context) domain.Actor {
	p := middleware.GetPrincipal(c)
	return domain.Actor{UserID: p.UserID, Username: p.Username, Role: p.Role}
}

// bindJSON decodes the request body into v, answering INVALID_PAYLOAD on
// failure.
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Str("path", c.FullPath()).Msg("failed to bind request")
		response.FromError(c, domain.ErrInvalidPayload.WithMessage(err.Error()))
		return false
	}
	return true
}

// fail answers with the envelope for err. Unclassified errors are logged
// since their detail never reaches the client.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	if domain.AsError(err) == domain.ErrInternal {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	}
	response.FromError(c, err)
}
