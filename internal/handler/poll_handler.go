package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/pkg/response"
)

type voteRequest struct {
	OptionID *int `json:"optionId" binding:"required"`
}

type kickRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// GetPollsState returns every poll the caller can see.
func (h *Handler) GetPollsState(c *gin.Context) {
	state, err := h.polls.GetState(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err, "failed to load polls")
		return
	}
	response.Success(c, state)
}

// CreatePoll creates a poll.
func (h *Handler) CreatePoll(c *gin.Context) {
	var in domain.CreatePollInput
	if !bindJSON(c, &in) {
		return
	}

	poll, err := h.polls.CreatePoll(c.Request.Context(), actor(c), &in)
	if err != nil {
		h.fail(c, err, "failed to create poll")
		return
	}
	response.Created(c, poll)
}

// GetPoll returns one poll with the caller's vote.
func (h *Handler) GetPoll(c *gin.Context) {
	view, err := h.polls.GetPoll(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to get poll")
		return
	}
	response.Success(c, view)
}

// EditPoll applies a partial update.
func (h *Handler) EditPoll(c *gin.Context) {
	var updates domain.PollUpdates
	if !bindJSON(c, &updates) {
		return
	}

	poll, err := h.polls.EditPoll(c.Request.Context(), actor(c), c.Param("id"), &updates)
	if err != nil {
		h.fail(c, err, "failed to edit poll")
		return
	}
	response.Success(c, poll)
}

// DeletePoll removes a poll and its chat.
func (h *Handler) DeletePoll(c *gin.Context) {
	poll, err := h.polls.DeletePoll(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to delete poll")
		return
	}
	response.Success(c, gin.H{"pollId": poll.ID})
}

// Vote casts, changes or retracts the caller's vote.
func (h *Handler) Vote(c *gin.Context) {
	var req voteRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.polls.Vote(c.Request.Context(), actor(c), c.Param("id"), *req.OptionID)
	if err != nil {
		h.fail(c, err, "failed to vote")
		return
	}
	response.Success(c, result)
}

func (h *Handler) ClosePoll(c *gin.Context) {
	poll, err := h.polls.ClosePoll(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to close poll")
		return
	}
	response.Success(c, poll)
}

func (h *Handler) KickUser(c *gin.Context) {
	var req kickRequest
	if !bindJSON(c, &req) {
		return
	}

	poll, err := h.polls.KickUser(c.Request.Context(), actor(c), c.Param("id"), req.UserID)
	if err != nil {
		h.fail(c, err, "failed to kick user")
		return
	}
	response.Success(c, poll)
}

func (h *Handler) JoinPoll(c *gin.Context) {
	poll, err := h.polls.JoinPoll(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to join poll")
		return
	}
	response.Success(c, poll)
}

func (h *Handler) LeavePoll(c *gin.Context) {
	poll, err := h.polls.LeavePoll(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to leave poll")
		return
	}
	response.Success(c, poll)
}
