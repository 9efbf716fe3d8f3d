package database

import "postbook/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters: accounts must exist before posts reference them.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.Post{},
	}
}
