// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// Role is a coarse permission tier for a user account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// DefaultCredits is the balance every new account starts with.
const DefaultCredits = 10

// LoginDayLayout formats the calendar day used to gate the daily login bonus.
const LoginDayLayout = "2006-01-02"

// Profile holds the optional, user-editable profile fields.
type Profile struct {
	Name      string `gorm:"size:100" json:"name"`
	Bio       string `gorm:"size:500" json:"bio"`
	AvatarURL string `gorm:"size:2048" json:"avatar_url"`
}

// IsComplete reports whether every field required for the completion bonus is set.
func (p Profile) IsComplete() bool {
	return strings.TrimSpace(p.Name) != "" &&
		strings.TrimSpace(p.Bio) != "" &&
		strings.TrimSpace(p.AvatarURL) != ""
}

// User represents an account that earns credits.
type User struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Username         string     `gorm:"uniqueIndex;not null;size:30" json:"username"`
	Email            string     `gorm:"uniqueIndex;not null;size:254" json:"email"`
	Password         string     `gorm:"not null" json:"-"`
	Role             Role       `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	Credits          int        `gorm:"not null;default:10" json:"credits"`
	ProfileCompleted bool       `gorm:"not null;default:false" json:"profile_completed"`
	Profile          Profile    `gorm:"embedded;embeddedPrefix:profile_" json:"profile"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	LastLoginDay     *string    `gorm:"size:10" json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// NormalizeEmail lower-cases and trims an address so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LoginDay returns the server-local calendar day for t.
func LoginDay(t time.Time) string {
	return t.Local().Format(LoginDayLayout)
}
