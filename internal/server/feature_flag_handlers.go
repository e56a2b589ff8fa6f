package server

import (
	"reelhub/internal/models"

	"github.com/gofiber/fiber/v2"
)

type flagView struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// GetFeatureFlags lists every flag with its configured value and whether it
// is on for ?user_id (the caller when omitted). Percentage rollouts differ
// per user, so this is how an admin checks who is in a bucket.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if c.Query("user_id") != "" {
		id := c.QueryInt("user_id", 0)
		if id <= 0 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid user ID"))
		}
		userID = uint(id)
	}

	flags := make([]flagView, 0)
	if s.featureFlags != nil {
		raw := s.featureFlags.Raw()
		for _, name := range s.featureFlags.Names() {
			flags = append(flags, flagView{
				Name:    name,
				Value:   raw[name],
				Enabled: s.featureFlags.Enabled(name, userID),
			})
		}
	}
	return c.JSON(fiber.Map{"user_id": userID, "flags": flags})
}
