package seeds

import (
	"errors"
	"fmt"

	"github.com/BlockBoard/BB-Backend/internal/auth"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Fixed UUIDs so servers can reference their owners across reseeds.
var demoUsers = []auth.User{
	{
		UUID:      "11111111-1111-4111-8111-111111111111",
		DiscordID: "100000000000000001",
		Username:  "steve",
		Admin:     true,
	},
	{
		UUID:      "22222222-2222-4222-8222-222222222222",
		DiscordID: "100000000000000002",
		Username:  "alex",
	},
	{
		UUID:      "33333333-3333-4333-8333-333333333333",
		DiscordID: "100000000000000003",
		Username:  "herobrine",
		Banned:    true,
		BanReason: "Griefing the demo data",
	},
}

func SeedUsers(d *gorm.DB) error {
	created := 0
	for _, user := range demoUsers {
		var existing auth.User
		err := d.First(&existing, "uuid = ?", user.UUID).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup user %s: %w", user.Username, err)
		}

		if err := d.Create(&user).Error; err != nil {
			return fmt.Errorf("create user %s: %w", user.Username, err)
		}
		created++
	}

	log.Info().Int("created", created).Int("total", len(demoUsers)).Msg("Seeded users")
	return nil
}
