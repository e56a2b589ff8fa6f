package server

import (
	"reelhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

type textRequest struct {
	Text string `json:"text"`
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req textRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.comments.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID: currentUserID(c),
		PostID: postID,
		Text:   req.Text,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComments handles GET /api/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.comments.ListComments(c.UserContext(), postID, parsePagination(c, 50).Page())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(comments)
}

// DeleteComment handles DELETE /api/comments/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	report, err := s.comments.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		UserID:    currentUserID(c),
		CommentID: commentID,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Comment deleted",
		"report":  report,
	})
}

// CreateReply handles POST /api/comments/:id/replies
func (s *Server) CreateReply(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req textRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	reply, err := s.comments.CreateReply(c.UserContext(), service.CreateReplyInput{
		UserID:    currentUserID(c),
		CommentID: commentID,
		Text:      req.Text,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reply)
}

// GetReplies handles GET /api/comments/:id/replies
func (s *Server) GetReplies(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	replies, err := s.comments.ListReplies(c.UserContext(), commentID, parsePagination(c, 50).Page())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(replies)
}

// DeleteReply handles DELETE /api/replies/:id
func (s *Server) DeleteReply(c *fiber.Ctx) error {
	replyID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	report, err := s.comments.DeleteReply(c.UserContext(), service.DeleteReplyInput{
		UserID:  currentUserID(c),
		ReplyID: replyID,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Reply deleted",
		"report":  report,
	})
}
