package server

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"reelhub/internal/middleware"
	"reelhub/internal/models"
	"reelhub/internal/notifications"
	"reelhub/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const streamTicketTTL = 30 * time.Second

// streamRejection is the last frame sent on a stream the hub refused.
func streamRejection(err error) models.ErrorResponse {
	code := "UNAVAILABLE"
	if errors.Is(err, notifications.ErrUserFull) || errors.Is(err, notifications.ErrServerFull) {
		code = "TOO_MANY_CONNECTIONS"
	}
	return models.ErrorResponse{Error: err.Error(), Code: code}
}

func streamTicketKey(ticket string) string {
	return "ws_ticket:" + ticket
}

// IssueStreamTicket hands out a short-lived, single-use ticket for opening
// the notification stream.
func (s *Server) IssueStreamTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			&models.AppError{Code: "UNAVAILABLE", Message: "Live notifications are unavailable"})
	}
	ticket := uuid.NewString()
	userID := currentUserID(c)
	if err := s.redis.Set(c.UserContext(), streamTicketKey(ticket), userID, streamTicketTTL).Err(); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(streamTicketTTL.Seconds()),
	})
}

// TicketRequired consumes the ?ticket= query parameter and authenticates the
// request as the user it was issued to.
func (s *Server) TicketRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ticket := c.Query("ticket")
		if ticket == "" || s.redis == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("WebSocket ticket required"))
		}

		raw, err := s.redis.GetDel(c.UserContext(), streamTicketKey(ticket)).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				middleware.Logger.WarnContext(c.UserContext(), "ticket lookup failed", slog.String("error", err.Error()))
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
		}
		userID, err := strconv.ParseUint(raw, 10, 0)
		if err != nil || userID == 0 {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
		}

		c.Locals("userID", uint(userID))
		c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, uint(userID)))

		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				&models.AppError{Code: "UPGRADE_REQUIRED", Message: "WebSocket upgrade required"})
		}
		return c.Next()
	}
}

// NotificationStream pushes notification events to the authenticated user
// until either side closes the connection.
func (s *Server) NotificationStream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok || s.hub == nil {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("notification stream rejected",
				slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
			_ = conn.WriteJSON(streamRejection(err))
			_ = conn.Close()
			return
		}

		observability.ActiveWebSockets.Inc()
		defer observability.ActiveWebSockets.Dec()

		go client.WritePump()
		client.ReadPump()
	})
}
