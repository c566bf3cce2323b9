package servers

import (
	"time"

	"github.com/lib/pq"
)

// ValidTags is the fixed tag vocabulary servers may be listed under.
var ValidTags = []string{
	"PVP", "PVE", "FACTIONS", "MINIGAMES", "SURVIVAL",
	"CREATIVE", "SKYBLOCK", "PRISON", "RPG", "MISCELLANEOUS",
}

type Server struct {
	UUID        string `gorm:"primaryKey" json:"uuid"`
	Owner       string `gorm:"not null;index" json:"owner"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Address     string `gorm:"not null;uniqueIndex" json:"address"`
	Discord     string `json:"discord,omitempty"`
	// Code is the shared secret behind the ownership handshake. Visible
	// only to the server's owner and admins.
	Code      string         `json:"code,omitempty"`
	Verified  bool           `gorm:"default:false" json:"verified"`
	Approved  bool           `gorm:"default:false" json:"approved"`
	Disabled  bool           `gorm:"default:false" json:"disabled"`
	Votes     int            `gorm:"default:0" json:"votes"`
	Tags      pq.StringArray `gorm:"type:text[]" json:"tags"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Listed reports whether the server appears in public listings.
func (s *Server) Listed() bool { return s.Verified && !s.Disabled }

// VoteCooldown blocks a repeat vote from the same user on the same server.
// Row existence alone is the block; ExpiresAt is advisory.
type VoteCooldown struct {
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	ServerID  string    `gorm:"primaryKey" json:"server_id"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
}

type Comment struct {
	ID       string    `gorm:"primaryKey" json:"-"`
	Content  string    `gorm:"not null" json:"content"`
	PosterID string    `gorm:"not null;index" json:"-"`
	ServerID string    `gorm:"not null;index" json:"-"`
	PostedAt time.Time `gorm:"autoCreateTime" json:"posted_at"`
}

type AnalyticType string

const (
	AnalyticPlayerCount AnalyticType = "PLAYER_COUNT"
	AnalyticUptime      AnalyticType = "UPTIME"
)

// Analytic rows are written by the external poller; this service only
// reads them back for the owner dashboard.
type Analytic struct {
	ID        uint         `gorm:"primaryKey" json:"-"`
	ServerID  string       `gorm:"not null;index" json:"-"`
	Type      AnalyticType `gorm:"not null" json:"type"`
	Data      string       `json:"data"`
	CreatedAt time.Time    `json:"created_at"`
}

func (Server) TableName() string       { return "listing.servers" }
func (VoteCooldown) TableName() string { return "listing.vote_cooldowns" }
func (Comment) TableName() string      { return "listing.comments" }
func (Analytic) TableName() string     { return "listing.analytics" }
