package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/pkg/middleware"
	"github.com/weiawesome/wes-io-polls/pkg/response"
)

// Register creates an account and returns a session for it.
func (h *Handler) Register(c *gin.Context) {
	var creds domain.Credentials
	if !bindJSON(c, &creds) {
		return
	}

	session, err := h.identity.Register(c.Request.Context(), &creds)
	if err != nil {
		h.fail(c, err, "failed to register")
		return
	}
	response.Created(c, session)
}

// Login exchanges credentials for a session.
func (h *Handler) Login(c *gin.Context) {
	var creds domain.Credentials
	if !bindJSON(c, &creds) {
		return
	}

	session, err := h.identity.Login(c.Request.Context(), &creds)
	if err != nil {
		h.fail(c, err, "failed to login")
		return
	}
	response.Success(c, session)
}

// Logout revokes the token the request was made with.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.identity.Logout(c.Request.Context(), middleware.GetToken(c)); err != nil {
		h.fail(c, err, "failed to logout")
		return
	}
	response.Success(c, gin.H{"message": "logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.identity.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, err, "failed to load user")
		return
	}
	response.Success(c, user)
}
