package server

import (
	"postbook/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// RecountAccount handles POST /api/accounts/:id/recount
// @Summary Recount posts
// @Description Rewrite the account's post_count from its posts.
// @Tags admin
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/{id}/recount [post]
func (s *Server) RecountAccount(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	account, err := s.coordinator.RecountAccount(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, fiber.StatusInternalServerError)
	}
	return c.JSON(account)
}

// ReconcileCounters handles POST /api/admin/reconcile
// @Summary Reconcile all counters
// @Tags admin
// @Produce json
// @Success 200 {object} object{repaired=int}
// @Router /admin/reconcile [post]
func (s *Server) ReconcileCounters(c *fiber.Ctx) error {
	repaired, err := s.coordinator.ReconcileCounters(c.UserContext())
	if err != nil {
		return respondError(c, err, fiber.StatusInternalServerError)
	}

	if repaired > 0 {
		s.publishBroadcastEvent(c.UserContext(), notifications.EventCountersRepaired, map[string]any{
			"repaired": repaired,
		})
	}

	return c.JSON(fiber.Map{"repaired": repaired})
}
