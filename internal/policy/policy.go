// Package policy decides which actions an authenticated actor may perform.
package policy

import (
	"creditfeed/internal/models"
)

// Action names a privileged operation.
type Action string

const (
	ActionAdjustCredits   Action = "adjust_credits"
	ActionModerateContent Action = "moderate_content"
	ActionViewStats       Action = "view_stats"
	ActionRefreshFeed     Action = "refresh_feed"
	ActionManageUsers     Action = "manage_users"
)

// Actor is the caller an action is evaluated for.
type Actor struct {
	UserID uint
	Role   models.Role
}

// ActorFor builds an Actor from a loaded user.
func ActorFor(user *models.User) Actor {
	if user == nil {
		return Actor{}
	}
	return Actor{UserID: user.ID, Role: user.Role}
}

// userActions is what a non-admin account may do.
var userActions = map[Action]bool{
	ActionRefreshFeed: true,
}

// CanPerform reports whether actor may perform action.
func CanPerform(actor Actor, action Action) bool {
	if actor.UserID == 0 {
		return false
	}
	if actor.Role == models.RoleAdmin {
		return true
	}
	return userActions[action]
}

// Require returns a Forbidden error when actor may not perform action.
func Require(actor Actor, action Action) error {
	if !CanPerform(actor, action) {
		return models.NewForbiddenError("Insufficient permissions for " + string(action))
	}
	return nil
}
