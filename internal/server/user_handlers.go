package server

import (
	"reelhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateUser handles POST /api/users
func (s *Server) CreateUser(c *fiber.Ctx) error {
	var req struct {
		Name      string `json:"name"`
		Email     string `json:"email"`
		Bio       string `json:"bio"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.users.CreateUser(c.UserContext(), service.CreateUserInput{
		Name:      req.Name,
		Email:     req.Email,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// GetUser handles GET /api/users/:id
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.users.GetUser(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetUserPosts handles GET /api/users/:id/posts and lists approved posts only.
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)
	approved := true

	posts, err := s.posts.ListPosts(c.UserContext(), service.ListPostsInput{
		Limit:    page.Limit,
		Offset:   page.Offset,
		OwnerID:  id,
		Approved: &approved,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// DeleteUser handles DELETE /api/users/:id. Users may delete themselves;
// admins may delete anyone.
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	report, err := s.users.DeleteUser(c.UserContext(), service.DeleteUserInput{
		ActorID:  currentUserID(c),
		TargetID: id,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "User deleted",
		"report":  report,
	})
}
