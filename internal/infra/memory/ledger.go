package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
)

// Ledger is an in-memory points leaderboard.
type Ledger struct {
	mu     sync.RWMutex
	now    func() time.Time
	totals map[uuid.UUID]*ledgerEntry
}

type ledgerEntry struct {
	points      int
	lastUpdated time.Time
}

func NewLedger() *Ledger {
	return &Ledger{now: time.Now, totals: make(map[uuid.UUID]*ledgerEntry)}
}

func (l *Ledger) Award(_ context.Context, userID uuid.UUID, points int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.totals[userID]
	if !ok {
		entry = &ledgerEntry{}
		l.totals[userID] = entry
	}
	entry.points += points
	entry.lastUpdated = l.now()
	return nil
}

// Top returns up to n entries ordered by points desc; ties go to whoever reached
// the total first, then by user ID.
func (l *Ledger) Top(_ context.Context, n int) ([]domain.LeaderboardEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]domain.LeaderboardEntry, 0, len(l.totals))
	for userID, entry := range l.totals {
		entries = append(entries, domain.LeaderboardEntry{UserID: userID, Points: entry.points})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		pi, pj := l.totals[entries[i].UserID], l.totals[entries[j].UserID]
		if !pi.lastUpdated.Equal(pj.lastUpdated) {
			return pi.lastUpdated.Before(pj.lastUpdated)
		}
		return entries[i].UserID.String() < entries[j].UserID.String()
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}
