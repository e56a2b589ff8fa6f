package server

import (
	"reelhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts. New posts wait for moderation.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Title        string   `json:"title"`
		Description  string   `json:"description"`
		VideoURL     string   `json:"video_url"`
		ThumbnailURL string   `json:"thumbnail_url"`
		DurationSec  int      `json:"duration_sec"`
		Tags         []string `json:"tags"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.posts.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:       currentUserID(c),
		Title:        req.Title,
		Description:  req.Description,
		VideoURL:     req.VideoURL,
		ThumbnailURL: req.ThumbnailURL,
		DurationSec:  req.DurationSec,
		Tags:         req.Tags,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	approved := true

	posts, err := s.posts.ListPosts(c.UserContext(), service.ListPostsInput{
		Limit:    page.Limit,
		Offset:   page.Offset,
		Approved: &approved,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.posts.GetPost(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	report, err := s.posts.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: id,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Post deleted",
		"report":  report,
	})
}
