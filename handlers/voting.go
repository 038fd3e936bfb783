package handlers

import (
	"match-arena-system/middleware"
	"match-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupVotingRoutes(app *fiber.App, votingService *services.VotingService, aiService *services.AIService) {
	// 🔓 Public views
	app.Get("/matches/:id/voting", votingService.GetSessionEndpoint)
	app.Get("/matches/:id/winners", votingService.GetFinalWinnersEndpoint)

	// 🔐 Authenticated voting operations
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/matches/:id/votes", votingService.SubmitVoteEndpoint)
	secured.Get("/matches/:id/votes/me", votingService.HasVotedEndpoint)
	secured.Post("/matches/:id/voting/finalize", votingService.FinalizeVotingEndpoint)
	secured.Post("/matches/:id/voting/finalize-ai", votingService.FinalizeWithAIEndpoint)
	secured.Post("/matches/:id/ai-report", votingService.SubmitAIReportEndpoint)
	secured.Post("/matches/:id/ai-verify", aiService.AnalyzeProofEndpoint)
}
