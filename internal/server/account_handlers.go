package server

import (
	"postbook/internal/models"
	"postbook/internal/notifications"
	"postbook/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createAccountRequest struct {
	Name          string `json:"name"`
	ContactNumber string `json:"contact_number"`
	Location      string `json:"location"`
}

// CreateAccount handles POST /api/accounts
// @Summary Create account
// @Description Register an account. contact_number is an opaque string and must be unique.
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body object{name=string,contact_number=string,location=string} true "Account"
// @Success 201 {object} models.Account
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /accounts [post]
func (s *Server) CreateAccount(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	account, err := s.coordinator.CreateAccount(c.UserContext(), service.CreateAccountInput{
		Name:          req.Name,
		ContactNumber: req.ContactNumber,
		Location:      req.Location,
	})
	if err != nil {
		return respondError(c, err, fiber.StatusInternalServerError)
	}

	s.publishAccountEvent(c.UserContext(), account.ID, notifications.EventAccountCreated, map[string]any{
		"name": account.Name,
	})

	return c.Status(fiber.StatusCreated).JSON(account)
}

// ListAccounts handles GET /api/accounts
func (s *Server) ListAccounts(c *fiber.Ctx) error {
	accounts, err := s.coordinator.ListAccounts(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(accounts)
}

// GetAccount handles GET /api/accounts/:id
// @Summary Get account
// @Tags accounts
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/{id} [get]
func (s *Server) GetAccount(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	account, err := s.coordinator.GetAccount(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, fiber.StatusInternalServerError)
	}
	return c.JSON(account)
}

// ListAccountPosts handles GET /api/accounts/:id/posts
func (s *Server) ListAccountPosts(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	posts, err := s.coordinator.ListPostsForAccount(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, fiber.StatusInternalServerError)
	}
	return c.JSON(posts)
}
