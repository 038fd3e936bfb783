package handlers

import (
	"match-arena-system/middleware"
	"match-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRewardRoutes(app *fiber.App, rewardService *services.RewardService) {
	// 🔓 Public pool view
	app.Get("/matches/:id/rewards/pool", rewardService.GetRewardPoolEndpoint)

	// 🔐 Authenticated claim operations
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/users/me/rewards", rewardService.GetRewardBalanceEndpoint)
	secured.Post("/matches/:id/rewards/claim", rewardService.ClaimMatchRewardsEndpoint)
	secured.Post("/rewards/claim-all", rewardService.ClaimAllRewardsEndpoint)
}
