package servers

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrCooldownActive means the user already holds a cooldown row for this
// server and may not vote again.
var ErrCooldownActive = errors.New("vote cooldown active")

// CooldownWindow stamps new cooldown rows. The stamp is advisory: a row's
// existence blocks re-voting no matter how old it is.
const CooldownWindow = 24 * time.Hour

// VoteStore is the slice of the data store the cooldown guard needs.
// RecordVote must apply the vote delta and insert the cooldown row
// atomically, and reject the insert when a row for the pair already
// exists.
type VoteStore interface {
	FindCooldown(userID, serverID string) (*VoteCooldown, error)
	RecordVote(userID, serverID string, delta int, expiresAt time.Time) (int, error)
}

// VoteGuard enforces at most one vote per user per server. The existence
// check up front gives the common case a clean rejection; the store's
// unique constraint catches the race between two concurrent casts.
type VoteGuard struct {
	store VoteStore
	now   func() time.Time
}

func NewVoteGuard(store VoteStore) *VoteGuard {
	return &VoteGuard{store: store, now: time.Now}
}

// Cast applies a +1 or -1 vote and records the cooldown. Returns the
// server's new vote total, or ErrCooldownActive when the pair has voted
// before.
func (g *VoteGuard) Cast(userID, serverID string, up bool) (int, error) {
	cooldown, err := g.store.FindCooldown(userID, serverID)
	if err != nil {
		return 0, err
	}
	if cooldown != nil {
		return 0, ErrCooldownActive
	}

	delta := 1
	if !up {
		delta = -1
	}

	votes, err := g.store.RecordVote(userID, serverID, delta, g.now().Add(CooldownWindow))
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, ErrCooldownActive
		}
		return 0, err
	}
	return votes, nil
}

// GormVoteStore backs the guard with the relational store, which is the
// sole arbiter of vote/cooldown atomicity.
type GormVoteStore struct {
	DB *gorm.DB
}

func (s *GormVoteStore) FindCooldown(userID, serverID string) (*VoteCooldown, error) {
	var cooldown VoteCooldown
	err := s.DB.First(&cooldown, "user_id = ? AND server_id = ?", userID, serverID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cooldown, nil
}

// RecordVote runs the counter update and the cooldown insert in one
// transaction; a vote is never recorded without its cooldown row.
func (s *GormVoteStore) RecordVote(userID, serverID string, delta int, expiresAt time.Time) (int, error) {
	var votes int
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		cooldown := VoteCooldown{
			UserID:    userID,
			ServerID:  serverID,
			ExpiresAt: expiresAt,
		}
		if err := tx.Create(&cooldown).Error; err != nil {
			return err
		}

		if err := tx.Model(&Server{}).
			Where("uuid = ?", serverID).
			UpdateColumn("votes", gorm.Expr("votes + ?", delta)).Error; err != nil {
			return err
		}

		return tx.Model(&Server{}).
			Where("uuid = ?", serverID).
			Select("votes").
			Scan(&votes).Error
	})
	if err != nil {
		return 0, err
	}
	return votes, nil
}
