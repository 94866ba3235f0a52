package server

import (
	"strings"

	"creditfeed/internal/models"
	"creditfeed/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/feed
// @Summary Browse the feed
// @Description Visible content items, newest first, optionally for one source
// @Tags feed
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param source query string false "twitter or reddit"
// @Success 200 {object} repository.ContentPage
// @Failure 400 {object} models.ErrorResponse
// @Router /feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, repository.DefaultPageSize)
	source := models.Source(strings.ToLower(strings.TrimSpace(c.Query("source"))))

	result, err := s.feedService.Feed(c.UserContext(), page.Page, page.Limit, source)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// GetFeedItem handles GET /api/feed/items/:id
// @Summary Get one content item
// @Tags feed
// @Produce json
// @Param id path int true "Content item ID"
// @Success 200 {object} models.ContentItem
// @Failure 404 {object} models.ErrorResponse
// @Router /feed/items/{id} [get]
func (s *Server) GetFeedItem(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	item, err := s.feedService.Item(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(item)
}

// GetSavedFeed handles GET /api/feed/saved
// @Summary Saved items of the current user
// @Tags feed
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} repository.ContentPage
// @Security BearerAuth
// @Router /feed/saved [get]
func (s *Server) GetSavedFeed(c *fiber.Ctx) error {
	page := parsePagination(c, repository.DefaultPageSize)
	result, err := s.feedService.SavedFeed(c.UserContext(), currentUserID(c), page.Page, page.Limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// RefreshFeed handles POST /api/feed/refresh. A failing source is reported
// in its slot and never fails the request.
// @Summary Refresh the feed from every source
// @Tags feed
// @Produce json
// @Success 200 {object} service.RefreshResult
// @Security BearerAuth
// @Router /feed/refresh [post]
func (s *Server) RefreshFeed(c *fiber.Ctx) error {
	result, err := s.feedService.RefreshAs(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}
