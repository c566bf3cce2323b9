package seeds

import (
	"errors"
	"fmt"

	"github.com/BlockBoard/BB-Backend/internal/servers"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var demoServers = []servers.Server{
	{
		UUID:        "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa",
		Owner:       "11111111-1111-4111-8111-111111111111",
		Name:        "Demo Survival",
		Description: "A long-running survival world with land claims and a player economy.",
		Address:     "wss://survival.example.com",
		Discord:     "demo",
		Code:        "a1b2c3d4e5",
		Verified:    true,
		Approved:    true,
		Votes:       42,
		Tags:        pq.StringArray{"SURVIVAL", "PVE"},
	},
	{
		UUID:        "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb",
		Owner:       "22222222-2222-4222-8222-222222222222",
		Name:        "Demo Skyblock",
		Description: "Start on a floating island and build your way up.",
		Address:     "wss://skyblock.example.com",
		Code:        "f6e5d4c3b2",
		Tags:        pq.StringArray{"SKYBLOCK", "MINIGAMES"},
	},
}

func SeedServers(d *gorm.DB) error {
	created := 0
	for _, server := range demoServers {
		var existing servers.Server
		err := d.First(&existing, "uuid = ?", server.UUID).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup server %s: %w", server.Name, err)
		}

		if err := d.Create(&server).Error; err != nil {
			return fmt.Errorf("create server %s: %w", server.Name, err)
		}
		created++
	}

	log.Info().Int("created", created).Int("total", len(demoServers)).Msg("Seeded servers")
	return nil
}
