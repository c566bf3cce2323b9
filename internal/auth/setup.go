package auth

import (
	"fmt"

	"github.com/BlockBoard/BB-Backend/internal/db"
	"gorm.io/gorm"
)

// Init creates the auth schema and migrates its tables.
func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, "app_auth"); err != nil {
		return fmt.Errorf("ensuring schema app_auth: %w", err)
	}
	if err := d.AutoMigrate(&User{}, &Session{}); err != nil {
		return fmt.Errorf("migrating auth tables: %w", err)
	}
	return nil
}
