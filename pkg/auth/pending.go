package auth

import (
	"strings"
	"sync"
	"time"

	"igfeed/pkg/models"
)

// DefaultChallengeTTL bounds how long a login waits for its verification code
const DefaultChallengeTTL = 10 * time.Minute

type pendingEntry struct {
	challenge *models.TwoFactorChallenge
	expires   time.Time
}

// PendingTable keeps two-factor challenges between the password step and
// the code step, keyed by username
type PendingTable struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]pendingEntry
}

// NewPendingTable creates a table; a non-positive ttl falls back to DefaultChallengeTTL
func NewPendingTable(ttl time.Duration) *PendingTable {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &PendingTable{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]pendingEntry),
	}
}

func pendingKey(username string) string {
	return strings.ToLower(username)
}

// Put stores a challenge, replacing any earlier one for the same user
func (p *PendingTable) Put(challenge *models.TwoFactorChallenge) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[pendingKey(challenge.Username)] = pendingEntry{
		challenge: challenge,
		expires:   p.now().Add(p.ttl),
	}
}

// Get returns the live challenge of username
func (p *PendingTable) Get(username string) (*models.TwoFactorChallenge, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := pendingKey(username)
	entry, ok := p.entries[key]
	if !ok {
		return nil, false
	}
	if !p.now().Before(entry.expires) {
		delete(p.entries, key)
		return nil, false
	}
	return entry.challenge, true
}

// Delete drops the challenge of username
func (p *PendingTable) Delete(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, pendingKey(username))
}

// Sweep removes expired challenges and returns how many were dropped
func (p *PendingTable) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	removed := 0
	for key, entry := range p.entries {
		if !now.Before(entry.expires) {
			delete(p.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored challenges, expired ones included
func (p *PendingTable) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
