package handlers

import (
	"match-arena-system/middleware"
	"match-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLedgerRoutes(app *fiber.App, ledgerService *services.LedgerService, relayerService *services.RelayerService) {
	// 🔐 Everything on the ledger is caller-scoped
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/users/register", ledgerService.RegisterEndpoint)
	secured.Get("/users/me/balance", ledgerService.GetBalanceEndpoint)
	secured.Post("/users/me/deposit", ledgerService.DepositEndpoint)
	secured.Post("/users/me/withdraw", ledgerService.WithdrawEndpoint)

	secured.Post("/matches/:id/stake", ledgerService.StakeEndpoint)
	secured.Get("/stakes/:id", ledgerService.GetStakeEndpoint)
	secured.Get("/users/me/stakes", ledgerService.GetUserStakesEndpoint)

	secured.Post("/relayer/actions", relayerService.SubmitActionEndpoint)
	secured.Get("/relayer/actions/:id", relayerService.GetActionEndpoint)
	secured.Get("/users/me/actions", relayerService.GetUserActionsEndpoint)
}
