// handlers/point_routes.go
package handlers

import (
	"challenge-ledger/middleware"
	"challenge-ledger/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPointRoutes(app *fiber.App, points *services.PointService, payments *services.PaymentSettlementService) {
	user := app.Group("/points", middleware.UserContextMiddleware())

	// Confirms a gateway payment and credits the points (safe to retry).
	user.Post("/charge/confirm", func(c *fiber.Ctx) error {
		var req services.ChargeRequest
		if err := c.BodyParser(&req); err != nil {
			return badJSON(c, err)
		}

		res, err := payments.ConfirmAndCredit(c.UserContext(), middleware.UserID(c), req)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(res)
	})

	user.Get("/", func(c *fiber.Ctx) error {
		acct, err := points.EnsureAccount(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"user_id": acct.UserID,
			"balance": acct.Balance,
		})
	})

	user.Get("/ledger", func(c *fiber.Ctx) error {
		entries, err := points.ListLedger(c.UserContext(), middleware.UserID(c), c.QueryInt("limit", 0))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	admin := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireRole(middleware.RoleAdmin))

	admin.Post("/points/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id"`
			Amount int64  `json:"amount"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badJSON(c, err)
		}

		balance, err := points.GrantPoints(c.UserContext(), req.UserID, req.Amount)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"message":    "points granted",
			"user_id":    req.UserID,
			"amount":     req.Amount,
			"totalPoint": balance,
		})
	})
}
