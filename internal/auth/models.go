package auth

import "time"

// SessionTokenLength matches the opaque token strings issued at login.
const SessionTokenLength = 90

// SessionTTL is how long a session lives without re-authentication.
const SessionTTL = 24 * time.Hour

type User struct {
	UUID      string    `gorm:"primaryKey" json:"uuid"`
	DiscordID string    `gorm:"not null;uniqueIndex" json:"-"`
	Username  string    `gorm:"not null" json:"username"`
	Avatar    string    `json:"avatar"`
	Banned    bool      `gorm:"default:false" json:"banned"`
	BanReason string    `json:"ban_reason,omitempty"`
	Admin     bool      `gorm:"default:false" json:"admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Session struct {
	SessionToken string    `gorm:"primaryKey" json:"-"`
	UserID       string    `gorm:"not null;unique" json:"-"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
}

func (User) TableName() string    { return "app_auth.users" }
func (Session) TableName() string { return "app_auth.sessions" }
