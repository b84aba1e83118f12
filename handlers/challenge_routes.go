// handlers/challenge_routes.go
package handlers

import (
	"challenge-ledger/middleware"
	"challenge-ledger/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, bets *services.BetLedgerService) {
	group := app.Group("/challenges", middleware.UserContextMiddleware())

	group.Post("/:id/join", func(c *fiber.Ctx) error {
		type Req struct {
			BetAmount int64 `json:"betAmount"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badJSON(c, err)
		}

		bet, err := bets.Join(c.UserContext(), middleware.UserID(c), c.Params("id"), req.BetAmount)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(bet)
	})

	group.Post("/:id/settle-success", func(c *fiber.Ctx) error {
		res, err := bets.SettleSuccess(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(res)
	})

	group.Post("/:id/cancel", func(c *fiber.Ctx) error {
		if err := bets.CancelBet(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
			return errorResponse(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Called when a verification for the challenge is approved.
	group.Post("/:id/progress", func(c *fiber.Ctx) error {
		bet, err := bets.RecordProgress(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(bet)
	})

	group.Get("/:id/bet", func(c *fiber.Ctx) error {
		bet, err := bets.GetBet(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(bet)
	})
}
