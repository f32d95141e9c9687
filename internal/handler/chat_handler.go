package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/pkg/response"
)

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type scopedHandler func(c *gin.Context, scope domain.Scope)

func (h *Handler) pollScope(fn scopedHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		fn(c, domain.Scope{Type: domain.ScopePoll, ID: c.Param("id")})
	}
}

func (h *Handler) roomScope(fn scopedHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		fn(c, domain.Scope{Type: domain.ScopeRoom, ID: c.Param("id")})
	}
}

// History returns the retained messages of a thread, oldest first.
func (h *Handler) History(c *gin.Context, scope domain.Scope) {
	messages, err := h.chat.History(c.Request.Context(), actor(c), scope)
	if err != nil {
		h.fail(c, err, "failed to load chat history")
		return
	}
	response.Success(c, gin.H{
		"scopeType": scope.Type,
		"scopeId":   scope.ID,
		"messages":  messages,
	})
}

// SendMessage appends a message to a thread.
func (h *Handler) SendMessage(c *gin.Context, scope domain.Scope) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), actor(c), scope, req.Content)
	if err != nil {
		h.fail(c, err, "failed to send message")
		return
	}
	response.Created(c, msg)
}

// DeleteMessage redacts a message.
func (h *Handler) DeleteMessage(c *gin.Context) {
	msg, err := h.chat.DeleteMessage(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to delete message")
		return
	}
	response.Success(c, msg)
}
