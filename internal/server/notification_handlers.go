package server

import (
	"reelhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications?unread=true
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	list, err := s.notifications.List(c.UserContext(), service.ListNotificationsInput{
		UserID:     currentUserID(c),
		UnreadOnly: c.QueryBool("unread", false),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(list)
}

// MarkNotificationRead handles PATCH /api/notifications/:id/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	n, err := s.notifications.MarkRead(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(n)
}

// DeleteNotification handles DELETE /api/notifications/:id
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notifications.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
