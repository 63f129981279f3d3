// handlers/referral_routes.go
package handlers

import (
	"errors"
	"log"
	"strings"

	"job-board-growth/middleware"
	"job-board-growth/models"
	"job-board-growth/services"

	"github.com/gofiber/fiber/v2"
)

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrReferralNotFound),
		errors.Is(err, services.ErrJobNotFound),
		errors.Is(err, services.ErrCampaignNotFound),
		errors.Is(err, services.ErrTrackingCodeNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidProgram),
		errors.Is(err, services.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrConditionsNotMet):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrProgramExhausted):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrCodeGenerationExhausted):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ [API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func SetupReferralRoutes(app *fiber.App, engine *services.ReferralEngine) {
	user := middleware.UserContextMiddleware()
	admin := middleware.RequireRole(middleware.RoleAdmin)

	app.Post("/referrals/codes", user, func(c *fiber.Ctx) error {
		var body struct {
			ProgramID string `json:"program_id"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
			}
		}
		code, err := engine.GenerateReferralCode(c.UserContext(), middleware.UserID(c), body.ProgramID)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"code": code})
	})

	// The new user is the authenticated caller unless an admin applies on their behalf
	app.Post("/referrals/apply", user, func(c *fiber.Ctx) error {
		var body struct {
			Code   string `json:"code"`
			UserID string `json:"user_id"`
		}
		if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.Code) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code is required"})
		}
		newUserID := middleware.UserID(c)
		if body.UserID != "" && middleware.HasRole(c, middleware.RoleAdmin) {
			newUserID = body.UserID
		}
		applied, err := engine.ApplyReferralCode(c.UserContext(), body.Code, newUserID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"applied": applied})
	})

	app.Get("/referrals/me", user, func(c *fiber.Ctx) error {
		referrals, err := engine.GetUserReferrals(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"referrals": referrals})
	})

	// Non-admins only ever see their own stats
	app.Get("/referrals/stats", user, func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		if middleware.HasRole(c, middleware.RoleAdmin) {
			userID = c.Query("user_id")
		}
		stats, err := engine.GetReferralStats(c.UserContext(), userID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(stats)
	})

	app.Post("/referrals/:id/cancel", user, func(c *fiber.Ctx) error {
		var body struct {
			Reason string `json:"reason"`
		}
		_ = c.BodyParser(&body)
		id := c.Params("id")
		if !middleware.HasRole(c, middleware.RoleAdmin) {
			referrals, err := engine.GetUserReferrals(c.UserContext(), middleware.UserID(c))
			if err != nil {
				return fail(c, err)
			}
			owned := false
			for _, r := range referrals {
				owned = owned || r.ID == id
			}
			if !owned {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
			}
		}
		if err := engine.CancelReferral(c.UserContext(), id, body.Reason); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"status": models.ReferralCancelled})
	})

	app.Get("/programs", user, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"programs": engine.ListPrograms()})
	})

	app.Post("/admin/programs", user, admin, func(c *fiber.Ctx) error {
		var def services.ProgramDefinition
		if err := c.BodyParser(&def); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		program, err := engine.CreateProgram(c.UserContext(), def)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(program)
	})

	app.Post("/referrals/:id/rewards", user, admin, func(c *fiber.Ctx) error {
		var body struct {
			Trigger models.ReferralTrigger `json:"trigger"`
			Context map[string]any         `json:"context"`
		}
		if err := c.BodyParser(&body); err != nil || body.Trigger == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "trigger is required"})
		}
		referral, err := engine.ProcessReward(c.UserContext(), c.Params("id"), body.Trigger, body.Context)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(referral)
	})

	app.Post("/referrals/:id/complete", user, admin, func(c *fiber.Ctx) error {
		if err := engine.CompleteReferral(c.UserContext(), c.Params("id")); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"status": models.ReferralCompleted})
	})

	app.Post("/referrals/:id/expire", user, admin, func(c *fiber.Ctx) error {
		if err := engine.ExpireReferral(c.UserContext(), c.Params("id")); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"status": models.ReferralExpired})
	})
}
