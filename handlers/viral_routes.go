// handlers/viral_routes.go
package handlers

import (
	"strings"

	"job-board-growth/middleware"
	"job-board-growth/models"
	"job-board-growth/services"

	"github.com/gofiber/fiber/v2"
)

func SetupViralRoutes(app *fiber.App, engine *services.ViralGrowthEngine, stream *services.NotificationStream) {
	user := middleware.UserContextMiddleware()
	admin := middleware.RequireRole(middleware.RoleAdmin)

	app.Post("/viral/actions", user, func(c *fiber.Ctx) error {
		var body struct {
			Action   string         `json:"action"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.Action) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "action is required"})
		}
		result := engine.TrackViralAction(c.UserContext(), middleware.UserID(c), body.Action, body.Metadata)
		return c.Status(fiber.StatusAccepted).JSON(result)
	})

	app.Post("/viral/share-content", user, func(c *fiber.Ctx) error {
		var body struct {
			JobID    string `json:"job_id"`
			Platform string `json:"platform"`
		}
		if err := c.BodyParser(&body); err != nil || body.JobID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "job_id is required"})
		}
		content, err := engine.GenerateSocialShareContent(c.UserContext(), body.JobID, middleware.UserID(c), body.Platform)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(content)
	})

	// Share links are opened by anonymous visitors; only the gateway token applies
	app.Get("/viral/share/:code", func(c *fiber.Ctx) error {
		row, err := engine.RecordShareClick(c.UserContext(), c.Params("code"))
		if err != nil {
			return fail(c, err)
		}
		return c.Redirect(engine.ShareLandingURL(c.UserContext(), row), fiber.StatusFound)
	})

	app.Get("/viral/stats/me", user, func(c *fiber.Ctx) error {
		stats, err := engine.GetUserViralStats(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(stats)
	})

	app.Get("/viral/leaderboard", user, func(c *fiber.Ctx) error {
		kind := models.LeaderboardType(c.Query("type", string(models.LeaderboardPoints)))
		board, err := engine.GetLeaderboard(c.UserContext(), kind, c.QueryInt("limit", services.DefaultLeaderboardLimit))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"type": kind, "entries": board})
	})

	app.Get("/viral/campaigns", user, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"campaigns": engine.GetActiveCampaigns()})
	})

	app.Post("/admin/campaigns", user, admin, func(c *fiber.Ctx) error {
		var def services.CampaignDefinition
		if err := c.BodyParser(&def); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		campaign, err := engine.CreateCampaign(c.UserContext(), def)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(campaign)
	})

	app.Get("/notifications/stream", user, stream.Stream)
}
