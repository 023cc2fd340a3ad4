package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"live-poll/internal/service"
	"live-poll/internal/session"
)

// PollHandler serves poll endpoints.
type PollHandler struct {
	pollService   *service.PollService
	resultService *service.ResultService
}

// NewPollHandler creates a PollHandler.
func NewPollHandler(pollService *service.PollService, resultService *service.ResultService) *PollHandler {
	return &PollHandler{pollService: pollService, resultService: resultService}
}

// StartPollRequest is the body of POST /rooms/:roomId/polls. Range checks
// live in the room session so every entry point enforces them.
type StartPollRequest struct {
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	Duration        int      `json:"duration"`
	CorrectOptionID int      `json:"correct_option_id"`
}

// SubmitVoteRequest is the body of POST /rooms/:roomId/polls/:pollId/votes.
type SubmitVoteRequest struct {
	OptionID  int     `json:"option_id" binding:"required"`
	TimeTaken float64 `json:"time_taken"`
}

// StartPoll handles POST /rooms/:roomId/polls.
func (h *PollHandler) StartPoll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req StartPollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorCodeResponse(c, http.StatusBadRequest, "validation", "Invalid poll body")
		return
	}

	poll, err := h.pollService.StartPoll(c.Request.Context(), userID, c.Param("roomId"), session.PollSpec{
		Question:        req.Question,
		Options:         req.Options,
		DurationSeconds: req.Duration,
		CorrectOptionID: req.CorrectOptionID,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, poll)
}

// SubmitVote handles POST /rooms/:roomId/polls/:pollId/votes.
func (h *PollHandler) SubmitVote(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}
	var req SubmitVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorCodeResponse(c, http.StatusBadRequest, "validation", "Invalid input: option_id is required")
		return
	}

	res, err := h.pollService.SubmitVote(c.Request.Context(), userID, c.Param("roomId"), pollID, req.OptionID, req.TimeTaken)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"room_id": c.Param("roomId"), "poll_id": pollID, "participant_id": userID}).Debug("Vote accepted")
	SuccessResponse(c, http.StatusOK, gin.H{"status": "accepted", "vote": res.Vote, "tally": res.Tally})
}

// State handles GET /rooms/:roomId/state.
func (h *PollHandler) State(c *gin.Context) {
	st, err := h.pollService.CurrentState(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, st)
}

// Results handles GET /rooms/:roomId/polls/:pollId/results.
func (h *PollHandler) Results(c *gin.Context) {
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}
	res, err := h.resultService.Results(c.Request.Context(), c.Param("roomId"), pollID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, res)
}

func pollIDParam(c *gin.Context) (int64, bool) {
	pollID, err := strconv.ParseInt(c.Param("pollId"), 10, 64)
	if err != nil || pollID <= 0 {
		ErrorCodeResponse(c, http.StatusBadRequest, "validation", "Invalid poll id")
		return 0, false
	}
	return pollID, true
}
