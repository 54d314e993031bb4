package routes

import (
	"github.com/VotingM7011E/VotingService/internal/handlers"
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(rg *gin.RouterGroup, handler *handlers.VotingHandler) {
	{
		rg.POST("/polls", handler.CreatePoll)
		rg.GET("/polls", handler.GetPolls)
		rg.GET("/polls/:id", handler.GetPollByID)
		rg.DELETE("/polls/:id", handler.DeletePoll)
		rg.POST("/polls/:id/close", handler.ClosePoll)

		rg.POST("/polls/:id/votes", handler.CastVote)
		rg.GET("/polls/:id/votes", handler.GetVotesByPollID)

		rg.GET("/polls/:id/tally", handler.Tally)

		rg.GET("/logs", handler.GetLogs)
	}
}
