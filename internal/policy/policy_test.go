package policy

import (
	"testing"

	"creditfeed/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanPerform(t *testing.T) {
	admin := Actor{UserID: 1, Role: models.RoleAdmin}
	user := Actor{UserID: 2, Role: models.RoleUser}
	anonymous := Actor{}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		want   bool
	}{
		{"admin adjusts credits", admin, ActionAdjustCredits, true},
		{"admin moderates", admin, ActionModerateContent, true},
		{"admin views stats", admin, ActionViewStats, true},
		{"admin manages users", admin, ActionManageUsers, true},
		{"user refreshes feed", user, ActionRefreshFeed, true},
		{"user cannot adjust credits", user, ActionAdjustCredits, false},
		{"user cannot moderate", user, ActionModerateContent, false},
		{"user cannot view stats", user, ActionViewStats, false},
		{"anonymous cannot refresh", anonymous, ActionRefreshFeed, false},
		{"unknown role gets user rights", Actor{UserID: 3, Role: "guest"}, ActionManageUsers, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanPerform(tt.actor, tt.action))
		})
	}
}

func TestRequire(t *testing.T) {
	err := Require(Actor{UserID: 2, Role: models.RoleUser}, ActionViewStats)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	assert.NoError(t, Require(Actor{UserID: 1, Role: models.RoleAdmin}, ActionViewStats))
}

func TestActorFor(t *testing.T) {
	assert.Equal(t, Actor{}, ActorFor(nil))
	assert.Equal(t, Actor{UserID: 5, Role: models.RoleAdmin}, ActorFor(&models.User{ID: 5, Role: models.RoleAdmin}))
}
