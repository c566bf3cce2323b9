package servers_test

import (
	"errors"
	"testing"
	"time"

	"github.com/BlockBoard/BB-Backend/internal/servers"
	"gorm.io/gorm"
)

// fakeVoteStore implements servers.VoteStore in memory with the same
// uniqueness guarantee the real table enforces.
type fakeVoteStore struct {
	cooldowns map[string]*servers.VoteCooldown
	votes     map[string]int

	// hideCooldowns makes FindCooldown miss while RecordVote still
	// collides, mimicking two casts racing past the existence check.
	hideCooldowns bool
}

func newFakeVoteStore() *fakeVoteStore {
	return &fakeVoteStore{
		cooldowns: make(map[string]*servers.VoteCooldown),
		votes:     make(map[string]int),
	}
}

func key(userID, serverID string) string { return userID + "/" + serverID }

func (f *fakeVoteStore) FindCooldown(userID, serverID string) (*servers.VoteCooldown, error) {
	if f.hideCooldowns {
		return nil, nil
	}
	return f.cooldowns[key(userID, serverID)], nil
}

func (f *fakeVoteStore) RecordVote(userID, serverID string, delta int, expiresAt time.Time) (int, error) {
	k := key(userID, serverID)
	if _, ok := f.cooldowns[k]; ok {
		return 0, gorm.ErrDuplicatedKey
	}
	f.cooldowns[k] = &servers.VoteCooldown{UserID: userID, ServerID: serverID, ExpiresAt: expiresAt}
	f.votes[serverID] += delta
	return f.votes[serverID], nil
}

// TestCast_FirstVote verifies an upvote increments the counter and
// stamps a cooldown row roughly a day out.
func TestCast_FirstVote(t *testing.T) {
	store := newFakeVoteStore()
	guard := servers.NewVoteGuard(store)

	votes, err := guard.Cast("u1", "s1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if votes != 1 {
		t.Errorf("expected 1 vote, got %d", votes)
	}

	cooldown := store.cooldowns[key("u1", "s1")]
	if cooldown == nil {
		t.Fatal("expected a cooldown row")
	}
	until := time.Until(cooldown.ExpiresAt)
	if until < 23*time.Hour || until > 25*time.Hour {
		t.Errorf("cooldown expiry not ~24h out: %v", until)
	}
}

// TestCast_Downvote verifies value=false decrements the counter.
func TestCast_Downvote(t *testing.T) {
	guard := servers.NewVoteGuard(newFakeVoteStore())

	votes, err := guard.Cast("u1", "s1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if votes != -1 {
		t.Errorf("expected -1 votes, got %d", votes)
	}
}

// TestCast_SecondVoteRejected verifies an immediate second vote for the
// same pair is rejected and the counter is untouched.
func TestCast_SecondVoteRejected(t *testing.T) {
	store := newFakeVoteStore()
	guard := servers.NewVoteGuard(store)

	if _, err := guard.Cast("u1", "s1", true); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}

	_, err := guard.Cast("u1", "s1", true)
	if !errors.Is(err, servers.ErrCooldownActive) {
		t.Fatalf("expected ErrCooldownActive, got %v", err)
	}
	if store.votes["s1"] != 1 {
		t.Errorf("second vote must not change the counter, got %d", store.votes["s1"])
	}
}

// TestCast_ExistenceBlocksRegardlessOfExpiry verifies an old cooldown row
// still blocks: only row existence is consulted, never its timestamp.
func TestCast_ExistenceBlocksRegardlessOfExpiry(t *testing.T) {
	store := newFakeVoteStore()
	store.cooldowns[key("u1", "s1")] = &servers.VoteCooldown{
		UserID:    "u1",
		ServerID:  "s1",
		ExpiresAt: time.Now().Add(-48 * time.Hour),
	}
	guard := servers.NewVoteGuard(store)

	_, err := guard.Cast("u1", "s1", true)
	if !errors.Is(err, servers.ErrCooldownActive) {
		t.Errorf("expected ErrCooldownActive for an expired row, got %v", err)
	}
}

// TestCast_RaceFallback verifies that when the existence check misses but
// the insert collides (two concurrent casts), the duplicate-key error is
// reported as a cooldown rejection.
func TestCast_RaceFallback(t *testing.T) {
	store := newFakeVoteStore()
	store.hideCooldowns = true
	guard := servers.NewVoteGuard(store)

	if _, err := guard.Cast("u2", "s1", true); err != nil {
		t.Fatalf("setup vote failed: %v", err)
	}
	_, err := guard.Cast("u2", "s1", true)
	if !errors.Is(err, servers.ErrCooldownActive) {
		t.Errorf("expected ErrCooldownActive, got %v", err)
	}
	if store.votes["s1"] != 1 {
		t.Errorf("racing vote must not change the counter, got %d", store.votes["s1"])
	}
}

// TestCast_PairScope verifies cooldowns are scoped to the user/server
// pair, not to either side alone.
func TestCast_PairScope(t *testing.T) {
	guard := servers.NewVoteGuard(newFakeVoteStore())

	if _, err := guard.Cast("u1", "s1", true); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	if _, err := guard.Cast("u2", "s1", true); err != nil {
		t.Errorf("different user should be allowed: %v", err)
	}
	if _, err := guard.Cast("u1", "s2", true); err != nil {
		t.Errorf("different server should be allowed: %v", err)
	}
}
