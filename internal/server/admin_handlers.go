package server

import (
	"reelhub/internal/featureflags"
	"reelhub/internal/models"
	"reelhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

type moderationRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) listByApproval(c *fiber.Ctx, approved bool) error {
	page := parsePagination(c, 20)
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

// GetPendingPosts handles GET /api/admin/posts/pending
func (s *Server) GetPendingPosts(c *fiber.Ctx) error {
	return s.listByApproval(c, false)
}

// GetApprovedPosts handles GET /api/admin/posts/approved
func (s *Server) GetApprovedPosts(c *fiber.Ctx) error {
	return s.listByApproval(c, true)
}

// GetPostStats handles GET /api/admin/posts/stats
func (s *Server) GetPostStats(c *fiber.Ctx) error {
	stats, err := s.posts.Stats(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(stats)
}

// ApprovePost handles POST /api/admin/posts/:id/approve
func (s *Server) ApprovePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.posts.ApprovePost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// RejectPost handles POST /api/admin/posts/:id/reject
func (s *Server) RejectPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req moderationRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	post, err := s.posts.RejectPost(c.UserContext(), service.ModerationInput{
		AdminID: currentUserID(c),
		PostID:  id,
		Reason:  req.Reason,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// ReassignPostOwner handles PATCH /api/admin/posts/:id/owner
func (s *Server) ReassignPostOwner(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		OwnerID uint   `json:"owner_id"`
		Reason  string `json:"reason"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.OwnerID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("owner_id is required"))
	}

	post, err := s.posts.ReassignOwner(c.UserContext(), service.ReassignOwnerInput{
		AdminID:    currentUserID(c),
		PostID:     id,
		NewOwnerID: req.OwnerID,
		Reason:     req.Reason,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// GetModerationLogs handles GET /api/admin/moderation-logs?post_id=
func (s *Server) GetModerationLogs(c *fiber.Ctx) error {
	postID := c.QueryInt("post_id", 0)
	if postID < 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	logs, err := s.posts.ModerationLogs(c.UserContext(), uint(postID), parsePagination(c, 50).Page())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(logs)
}

// RunAudit handles POST /api/admin/audit?fix=true|false. Repairs are only
// written while the audit_autofix flag is on.
func (s *Server) RunAudit(c *fiber.Ctx) error {
	fix := c.QueryBool("fix", false)
	if fix && !s.featureFlags.Enabled(featureflags.AuditAutofix, currentUserID(c)) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Audit fixes are disabled by the audit_autofix flag"))
	}

	report, err := s.audit.Run(c.UserContext(), fix)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(report)
}
