package server

import (
	"creditfeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SaveItem handles POST /api/feed/items/:id/save
// @Summary Save a content item
// @Description Adds the item to the caller's saved list and awards credits once per item
// @Tags interactions
// @Produce json
// @Param id path int true "Content item ID"
// @Success 200 {object} service.InteractionResult
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /feed/items/{id}/save [post]
func (s *Server) SaveItem(c *fiber.Ctx) error {
	itemID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	result, err := s.interactionService.Save(c.UserContext(), currentUserID(c), itemID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// UnsaveItem handles DELETE /api/feed/items/:id/save
// @Summary Remove a content item from the saved list
// @Description Credits earned by the save are kept
// @Tags interactions
// @Param id path int true "Content item ID"
// @Success 204
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /feed/items/{id}/save [delete]
func (s *Server) UnsaveItem(c *fiber.Ctx) error {
	itemID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.interactionService.Unsave(c.UserContext(), currentUserID(c), itemID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReportItem handles POST /api/feed/items/:id/report
// @Summary Report a content item
// @Tags interactions
// @Accept json
// @Produce json
// @Param id path int true "Content item ID"
// @Param request body object{reason=string} true "Report reason"
// @Success 200 {object} service.InteractionResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /feed/items/{id}/report [post]
func (s *Server) ReportItem(c *fiber.Ctx) error {
	itemID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	result, err := s.interactionService.Report(c.UserContext(), currentUserID(c), itemID, req.Reason)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// ShareItem handles POST /api/feed/items/:id/share
// @Summary Share a content item
// @Description Every share counts and awards credits
// @Tags interactions
// @Produce json
// @Param id path int true "Content item ID"
// @Success 200 {object} service.InteractionResult
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /feed/items/{id}/share [post]
func (s *Server) ShareItem(c *fiber.Ctx) error {
	itemID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	result, err := s.interactionService.Share(c.UserContext(), currentUserID(c), itemID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}
