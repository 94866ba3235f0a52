package models

import (
	"time"

	"gorm.io/gorm"
)

// Source is the platform a content item was pulled from.
type Source string

const (
	SourceTwitter Source = "twitter"
	SourceReddit  Source = "reddit"
)

// Sources lists every supported content source.
var Sources = []Source{SourceTwitter, SourceReddit}

// Valid reports whether s is a supported source.
func (s Source) Valid() bool {
	switch s {
	case SourceTwitter, SourceReddit:
		return true
	}
	return false
}

// PlaceholderTexts are supplier stand-ins for content that was taken down upstream.
var PlaceholderTexts = []string{"[deleted]", "[removed]"}

// ContentItem is a normalized unit of externally sourced content.
// (Source, OriginalID) is the natural key used for idempotent ingestion.
type ContentItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Source      Source    `gorm:"type:varchar(16);not null;uniqueIndex:idx_content_source_original" json:"source"`
	OriginalID  string    `gorm:"size:128;not null;uniqueIndex:idx_content_source_original" json:"original_id"`
	Title       string    `gorm:"size:512;not null" json:"title"`
	Content     string    `gorm:"type:text" json:"content"`
	URL         string    `gorm:"size:2048" json:"url"`
	Author      string    `gorm:"size:255" json:"author"`
	ImageURL    string    `gorm:"size:2048" json:"image_url,omitempty"`
	PublishedAt time.Time `gorm:"index" json:"published_at"`
	ShareCount  int       `gorm:"not null;default:0" json:"share_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Saves   []ContentSave   `gorm:"foreignKey:ContentItemID;constraint:OnDelete:CASCADE" json:"-"`
	Reports []ContentReport `gorm:"foreignKey:ContentItemID;constraint:OnDelete:CASCADE" json:"report_reasons"`

	// Derived from Saves and Reports after a find.
	SavedBy    []uint `gorm:"-" json:"saved_by"`
	ReportedBy []uint `gorm:"-" json:"reported_by"`
}

// AfterFind fills the membership views from the preloaded join rows.
func (c *ContentItem) AfterFind(_ *gorm.DB) error {
	c.SavedBy = make([]uint, 0, len(c.Saves))
	for _, s := range c.Saves {
		c.SavedBy = append(c.SavedBy, s.UserID)
	}
	c.ReportedBy = make([]uint, 0, len(c.Reports))
	for _, r := range c.Reports {
		c.ReportedBy = append(c.ReportedBy, r.UserID)
	}
	if c.Reports == nil {
		c.Reports = []ContentReport{}
	}
	return nil
}

// IsSavedBy reports whether userID is in the item's saved set.
func (c *ContentItem) IsSavedBy(userID uint) bool {
	for _, id := range c.SavedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ContentSave records that a user saved an item. The composite key keeps
// the saved set free of duplicates.
type ContentSave struct {
	UserID        uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ContentItemID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"content_item_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// ContentReport is one user's report against an item, with its reason.
// One row per (user, item) backs both the reporter set and the reasons list.
type ContentReport struct {
	UserID        uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ContentItemID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"content_item_id"`
	Reason        string    `gorm:"size:500;not null" json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}
