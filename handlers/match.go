package handlers

import (
	"match-arena-system/middleware"
	"match-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(app *fiber.App, matchService *services.MatchService) {
	// 🔓 Public views
	app.Get("/matches", matchService.GetAllMatchesEndpoint)
	app.Get("/matches/counter", matchService.MatchCounterEndpoint)
	app.Get("/matches/:id", matchService.GetMatchEndpoint)
	app.Get("/matches/:id/participants", matchService.GetParticipantsEndpoint)

	// 🔐 Authenticated lifecycle operations
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/matches", matchService.CreateMatchEndpoint)
	secured.Post("/matches/:id/join", matchService.JoinMatchEndpoint)
	secured.Post("/matches/join/confirm-stake", matchService.ConfirmStakeAndJoinEndpoint)
	secured.Post("/matches/:id/start", matchService.StartMatchEndpoint)
	secured.Post("/matches/:id/voting/start", matchService.StartVotingEndpoint)
	secured.Post("/matches/:id/cancel", matchService.CancelMatchEndpoint)
	secured.Post("/matches/:id/complete", matchService.CompleteMatchEndpoint)
	secured.Get("/users/me/matches", matchService.GetUserMatchesEndpoint)
}
