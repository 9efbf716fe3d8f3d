package server

import (
	"postbook/internal/models"
	"postbook/internal/notifications"
	"postbook/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

// updatePostRequest uses pointers so absent fields are left untouched.
type updatePostRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Images      *[]string `json:"images"`
}

// CreatePost handles POST /api/accounts/:id/posts
// @Summary Create post
// @Description Create a post owned by the account and increment its post_count.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Account ID"
// @Param request body object{title=string,description=string,images=[]string} true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/{id}/posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	accountID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req createPostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.coordinator.CreatePost(c.UserContext(), service.CreatePostInput{
		AccountID:   accountID,
		Title:       req.Title,
		Description: req.Description,
		Images:      req.Images,
	})
	if err != nil {
		return respondError(c, err, fiber.StatusInternalServerError)
	}

	s.publishAccountEvent(c.UserContext(), accountID, notifications.EventPostCreated, map[string]any{
		"post_id": post.ID,
	})

	return c.Status(fiber.StatusCreated).JSON(post)
}

// ListPosts handles GET /api/posts
func (s *Server) ListPosts(c *fiber.Ctx) error {
	posts, err := s.coordinator.ListPosts(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.coordinator.GetPost(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, fiber.StatusInternalServerError)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT /api/accounts/:id/posts/:postId
// @Summary Update post
// @Description Update title, description or images of a post owned by the account.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Account ID"
// @Param postId path int true "Post ID"
// @Param request body object{title=string,description=string,images=[]string} true "Fields to change"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/{id}/posts/{postId} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	accountID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	var req updatePostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.coordinator.UpdatePost(c.UserContext(), service.UpdatePostInput{
		AccountID:   accountID,
		PostID:      postID,
		Title:       req.Title,
		Description: req.Description,
		Images:      req.Images,
	})
	if err != nil {
		return respondError(c, err, fiber.StatusBadRequest)
	}

	s.publishAccountEvent(c.UserContext(), accountID, notifications.EventPostUpdated, map[string]any{
		"post_id": post.ID,
	})

	return c.JSON(post)
}

// DeletePost handles DELETE /api/accounts/:id/posts/:postId
// @Summary Delete post
// @Tags posts
// @Param id path int true "Account ID"
// @Param postId path int true "Post ID"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/{id}/posts/{postId} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	accountID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	if err := s.coordinator.DeletePost(c.UserContext(), service.DeletePostInput{
		AccountID: accountID,
		PostID:    postID,
	}); err != nil {
		return respondError(c, err, fiber.StatusBadRequest)
	}

	s.publishAccountEvent(c.UserContext(), accountID, notifications.EventPostDeleted, map[string]any{
		"post_id": postID,
	})

	return c.SendStatus(fiber.StatusNoContent)
}
