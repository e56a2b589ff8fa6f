package server

import (
	"github.com/gofiber/fiber/v2"
)

// ToggleLike handles POST /api/posts/:id/like
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.relationships.ToggleLike(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(res)
}

// GetLikes handles GET /api/posts/:id/likes
func (s *Server) GetLikes(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	likes, err := s.relationships.ListLikes(c.UserContext(), postID, parsePagination(c, 50).Page())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(likes)
}

// Follow handles POST /api/follows/:userId
func (s *Server) Follow(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	res, err := s.relationships.Follow(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// Unfollow handles DELETE /api/follows/:userId. Unfollowing someone you do
// not follow succeeds with removed=false.
func (s *Server) Unfollow(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	res, err := s.relationships.Unfollow(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(res)
}

// GetFollowers handles GET /api/users/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	users, err := s.relationships.Followers(c.UserContext(), userID, parsePagination(c, 50).Page())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(users)
}

// GetFollowing handles GET /api/users/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	users, err := s.relationships.Following(c.UserContext(), userID, parsePagination(c, 50).Page())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(users)
}
