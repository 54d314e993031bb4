package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/VotingM7011E/VotingService/internal/entity"
	"github.com/VotingM7011E/VotingService/internal/repo"
	"github.com/VotingM7011E/VotingService/internal/services"
	"github.com/gin-gonic/gin"
)

type VotingHandler struct {
	votingService *services.Voting
}

type CreatePollRequest struct {
	MeetingID      string   `json:"meeting_id" binding:"required"`
	Name           string   `json:"name" binding:"required"`
	Kind           string   `json:"kind" binding:"required,oneof=single ranked nomination"`
	ExpectedVoters *int     `json:"expected_voters"`
	Options        []string `json:"options" binding:"required"`
}

type CastVoteRequest struct {
	VoterID   string  `json:"voter_id" binding:"required"`
	OptionIDs []int64 `json:"option_ids"`
	Accepted  *bool   `json:"accepted"`
}

func NewVotingHandler(votingService *services.Voting) *VotingHandler {
	return &VotingHandler{votingService: votingService}
}

// statusFromError maps the service and storage sentinels onto HTTP statuses:
// validation 400, missing references 404, uniqueness and state conflicts 409.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, repo.ErrPollNotFound),
		errors.Is(err, repo.ErrOptionNotFound),
		errors.Is(err, repo.ErrVoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, repo.ErrPollClosed),
		errors.Is(err, repo.ErrVoteAlreadyExists),
		errors.Is(err, repo.ErrDuplicateOption),
		errors.Is(err, repo.ErrDuplicateRank):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (v *VotingHandler) CreatePoll(c *gin.Context) {
	var req CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	var kind entity.PollKind
	switch req.Kind {
	case string(entity.PollKindSingle):
		kind = entity.PollKindSingle
	case string(entity.PollKindRanked):
		kind = entity.PollKindRanked
	case string(entity.PollKindNomination):
		kind = entity.PollKindNomination
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown poll kind"})
		return
	}

	poll, err := v.votingService.CreatePoll(c.Request.Context(), req.MeetingID, req.Name, kind, req.ExpectedVoters, req.Options)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"poll": poll})
}

func (v *VotingHandler) GetPolls(c *gin.Context) {
	if meetingID := c.Query("meeting_id"); meetingID != "" {
		polls, err := v.votingService.GetPollsByMeetingID(c.Request.Context(), meetingID)
		if err != nil {
			c.JSON(statusFromError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"polls": polls})
		return
	}

	polls, err := v.votingService.GetPolls(c.Request.Context())
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"polls": polls})
}

func (v *VotingHandler) GetPollByID(c *gin.Context) {
	pollIDStr := c.Param("id")
	pollID, err := strconv.Atoi(pollIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poll id"})
		return
	}

	poll, err := v.votingService.GetPollByID(c.Request.Context(), int64(pollID))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	options, err := v.votingService.GetOptionsByPollID(c.Request.Context(), int64(pollID))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"poll": poll, "options": options})
}

func (v *VotingHandler) DeletePoll(c *gin.Context) {
	pollIDStr := c.Param("id")
	pollID, err := strconv.Atoi(pollIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poll id"})
		return
	}

	err = v.votingService.DeletePoll(c.Request.Context(), int64(pollID))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusNoContent, gin.H{})
}

func (v *VotingHandler) ClosePoll(c *gin.Context) {
	pollIDStr := c.Param("id")
	pollID, err := strconv.Atoi(pollIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poll id"})
		return
	}

	transitioned, err := v.votingService.ClosePoll(c.Request.Context(), int64(pollID))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"poll_id": pollID, "transitioned": transitioned})
}

func (v *VotingHandler) CastVote(c *gin.Context) {
	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	pollIDStr := c.Param("id")
	pollID, err := strconv.Atoi(pollIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poll id"})
		return
	}

	vote, err := v.votingService.CastVote(c.Request.Context(), int64(pollID), req.VoterID, req.OptionIDs, req.Accepted)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"vote": vote})
}

func (v *VotingHandler) GetVotesByPollID(c *gin.Context) {
	pollIDStr := c.Param("id")
	pollID, err := strconv.Atoi(pollIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poll id"})
		return
	}

	votes, err := v.votingService.GetVotesByPollID(c.Request.Context(), int64(pollID))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"votes": votes})
}

func (v *VotingHandler) Tally(c *gin.Context) {
	pollIDStr := c.Param("id")
	pollID, err := strconv.Atoi(pollIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poll id"})
		return
	}

	result, err := v.votingService.Tally(c.Request.Context(), int64(pollID))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tally": result})
}

func (v *VotingHandler) GetLogs(c *gin.Context) {
	logs, err := v.votingService.GetLogs(c.Request.Context())
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
