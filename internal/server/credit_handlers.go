package server

import (
	"creditfeed/internal/models"
	"creditfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/profile
// @Summary Current user's profile and balance
// @Tags profile
// @Produce json
// @Success 200 {object} models.User
// @Security BearerAuth
// @Router /profile [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// UpdateProfile handles PUT /api/profile
// @Summary Update name, bio and avatar
// @Description Completing the profile does not award credits; call /credits/award/profile
// @Tags profile
// @Accept json
// @Produce json
// @Param request body object{name=string,bio=string,avatar_url=string} true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req struct {
		Name      string `json:"name"`
		Bio       string `json:"bio"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.rewardService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:    currentUserID(c),
		Name:      req.Name,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetBalance handles GET /api/credits/balance
// @Summary Current credit balance
// @Tags credits
// @Produce json
// @Success 200 {object} object{credits=int}
// @Security BearerAuth
// @Router /credits/balance [get]
func (s *Server) GetBalance(c *fiber.Ctx) error {
	balance, err := s.ledger.Balance(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"credits": balance})
}

// GetCreditHistory handles GET /api/credits/history
// @Summary Ledger entries of the current user, newest first
// @Tags credits
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Entries per page" default(20)
// @Success 200 {object} service.CreditHistory
// @Security BearerAuth
// @Router /credits/history [get]
func (s *Server) GetCreditHistory(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	history, err := s.ledger.History(c.UserContext(), currentUserID(c), page.Page, page.Limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(history)
}

// AwardProfileCompletion handles POST /api/credits/award/profile
// @Summary Claim the one-time profile completion bonus
// @Tags credits
// @Produce json
// @Success 200 {object} service.InteractionResult
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /credits/award/profile [post]
func (s *Server) AwardProfileCompletion(c *fiber.Ctx) error {
	result, err := s.rewardService.AwardProfileCompletion(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// AdjustCredits handles POST /api/credits/adjust
// @Summary Adjust a user's credits
// @Tags credits
// @Accept json
// @Produce json
// @Param request body object{userId=int,amount=int,description=string} true "Adjustment"
// @Success 200 {object} service.AdjustCreditsResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /credits/adjust [post]
func (s *Server) AdjustCredits(c *fiber.Ctx) error {
	var req struct {
		UserID      uint   `json:"userId"`
		Amount      int    `json:"amount"`
		Description string `json:"description"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.UserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("userId is required"))
	}

	result, err := s.rewardService.AdjustCredits(c.UserContext(), service.AdjustCreditsInput{
		ActorID:      currentUserID(c),
		TargetUserID: req.UserID,
		Amount:       req.Amount,
		Description:  req.Description,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}
