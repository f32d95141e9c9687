package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/pkg/response"
)

type allowUserRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// ListRooms lists the rooms the caller can see.
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListRooms(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err, "failed to list rooms")
		return
	}
	response.Success(c, rooms)
}

// CreateRoom creates a room.
func (h *Handler) CreateRoom(c *gin.Context) {
	var in domain.CreateRoomInput
	if !bindJSON(c, &in) {
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), actor(c), &in)
	if err != nil {
		h.fail(c, err, "failed to create room")
		return
	}
	response.Created(c, room)
}

// GetRoom retrieves a room by ID.
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.rooms.GetRoom(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to get room")
		return
	}
	response.Success(c, room)
}

func (h *Handler) UpdateRoom(c *gin.Context) {
	var updates domain.RoomUpdates
	if !bindJSON(c, &updates) {
		return
	}

	room, err := h.rooms.UpdateRoom(c.Request.Context(), actor(c), c.Param("id"), &updates)
	if err != nil {
		h.fail(c, err, "failed to update room")
		return
	}
	response.Success(c, room)
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	room, err := h.rooms.DeleteRoom(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to delete room")
		return
	}
	response.Success(c, gin.H{"roomId": room.ID})
}

// AddAllowedUser grants a subject access to a selected-access room.
func (h *Handler) AddAllowedUser(c *gin.Context) {
	var req allowUserRequest
	if !bindJSON(c, &req) {
		return
	}

	room, err := h.rooms.AddAllowedUser(c.Request.Context(), actor(c), c.Param("id"), req.UserID)
	if err != nil {
		h.fail(c, err, "failed to add allowed user")
		return
	}
	response.Success(c, room)
}

func (h *Handler) RemoveAllowedUser(c *gin.Context) {
	room, err := h.rooms.RemoveAllowedUser(c.Request.Context(), actor(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		h.fail(c, err, "failed to remove allowed user")
		return
	}
	response.Success(c, room)
}
