package auth

import (
	"errors"
	"time"

	"github.com/BlockBoard/BB-Backend/internal/utils"
	"gorm.io/gorm"
)

// GormStore is the Postgres-backed credential store.
type GormStore struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) FindSessionByToken(token string) (*Session, error) {
	var session Session
	err := s.DB.First(&session, "session_token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *GormStore) DeleteSession(token string) error {
	return s.DB.Delete(&Session{}, "session_token = ?", token).Error
}

func (s *GormStore) FindUserByUUID(uuid string) (*User, error) {
	var user User
	err := s.DB.First(&user, "uuid = ?", uuid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) CreateSession(userID string, expiresAt time.Time) (*Session, error) {
	session := Session{
		SessionToken: utils.RandomString(SessionTokenLength, ""),
		UserID:       userID,
		ExpiresAt:    expiresAt,
	}
	if err := s.DB.Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *GormStore) UpdateSessionExpiry(token string, expiresAt time.Time) error {
	return s.DB.Model(&Session{}).
		Where("session_token = ?", token).
		Update("expires_at", expiresAt).Error
}

// FindSessionByUser returns the user's live session, if any. Used by the
// login flow to extend an existing session instead of issuing a second
// token (one session per user).
func (s *GormStore) FindSessionByUser(userID string) (*Session, error) {
	var session Session
	err := s.DB.First(&session, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}
