package server

import (
	"creditfeed/internal/models"
	"creditfeed/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// GetAllUsers handles GET /api/admin/users
// @Summary List users
// @Tags admin
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Users per page" default(20)
// @Success 200 {object} service.UserList
// @Security BearerAuth
// @Router /admin/users [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	users, err := s.userService.ListUsers(c.UserContext(), page.Page, page.Limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(users)
}

// GetUserDetail handles GET /api/admin/users/:id
// @Summary User with saved items and recent transactions
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} service.UserDetail
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id} [get]
func (s *Server) GetUserDetail(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	detail, err := s.statsService.UserDetail(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(detail)
}

// ReconcileUser handles GET /api/admin/users/:id/reconcile
// @Summary Compare a stored balance with the ledger
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} service.ReconcileReport
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/reconcile [get]
func (s *Server) ReconcileUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	report, err := s.ledger.Reconcile(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(report)
}

// GetUserStats handles GET /api/admin/stats/users
// @Summary User statistics
// @Tags admin
// @Produce json
// @Success 200 {object} service.UserStats
// @Security BearerAuth
// @Router /admin/stats/users [get]
func (s *Server) GetUserStats(c *fiber.Ctx) error {
	stats, err := s.statsService.UserStats(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(stats)
}

// GetFeedStats handles GET /api/admin/stats/feed
// @Summary Feed statistics
// @Tags admin
// @Produce json
// @Success 200 {object} service.FeedStats
// @Security BearerAuth
// @Router /admin/stats/feed [get]
func (s *Server) GetFeedStats(c *fiber.Ctx) error {
	stats, err := s.statsService.FeedStats(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(stats)
}

// GetCreditStats handles GET /api/admin/stats/credits
// @Summary Credit statistics
// @Tags admin
// @Produce json
// @Success 200 {object} service.CreditStats
// @Security BearerAuth
// @Router /admin/stats/credits [get]
func (s *Server) GetCreditStats(c *fiber.Ctx) error {
	stats, err := s.statsService.CreditStats(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(stats)
}

// GetReportedContent handles GET /api/admin/reported
// @Summary Items with at least one report
// @Tags admin
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} repository.ContentPage
// @Security BearerAuth
// @Router /admin/reported [get]
func (s *Server) GetReportedContent(c *fiber.Ctx) error {
	page := parsePagination(c, repository.DefaultPageSize)
	result, err := s.feedService.ReportedFeed(c.UserContext(), currentUserID(c), page.Page, page.Limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// ClearReports handles PUT /api/admin/reported/:id/clear
// @Summary Dismiss every report on an item
// @Tags admin
// @Produce json
// @Param id path int true "Content item ID"
// @Success 200 {object} models.ContentItem
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reported/{id}/clear [put]
func (s *Server) ClearReports(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	item, err := s.feedService.ClearReports(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(item)
}

// DeleteReportedContent handles DELETE /api/admin/reported/:id
// @Summary Remove a content item with its saves and reports
// @Tags admin
// @Param id path int true "Content item ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reported/{id} [delete]
func (s *Server) DeleteReportedContent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.feedService.RemoveItem(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFeatureFlags returns configured flags evaluated for the current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.String(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
	})
}
