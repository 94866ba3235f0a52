package database

import "creditfeed/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.ContentItem{},
		&models.ContentSave{},
		&models.ContentReport{},
		&models.CreditTransaction{},
	}
}
