package servers

import (
	"fmt"

	"github.com/BlockBoard/BB-Backend/internal/db"
	"gorm.io/gorm"
)

// Init creates the listing schema and migrates its tables.
func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, "listing"); err != nil {
		return fmt.Errorf("ensuring schema listing: %w", err)
	}
	if err := d.AutoMigrate(&Server{}, &VoteCooldown{}, &Comment{}, &Analytic{}); err != nil {
		return fmt.Errorf("migrating listing tables: %w", err)
	}
	return nil
}
