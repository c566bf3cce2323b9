// Package seeds loads demo users and servers for local development.
// Existing rows are left alone, so reseeding is safe.
package seeds

import "gorm.io/gorm"

func SeedAll(d *gorm.DB) error {
	if err := SeedUsers(d); err != nil {
		return err
	}
	return SeedServers(d)
}
