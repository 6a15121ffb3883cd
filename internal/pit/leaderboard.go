package pit

import "github.com/Billy-Davies-2/glitch-pits/internal/models"

// LeaderboardSize is how many past winners are kept.
const LeaderboardSize = 10

// Leaderboard keeps the most recent winners, newest first.
// It is not safe for concurrent use; the Machine guards it.
type Leaderboard struct {
	entries []models.LeaderboardEntry
	max     int
}

// NewLeaderboard returns an empty leaderboard holding at most max entries.
func NewLeaderboard(max int) *Leaderboard {
	if max <= 0 {
		max = LeaderboardSize
	}
	return &Leaderboard{max: max}
}

// Add records a winner at the top and drops the oldest entry past capacity.
func (l *Leaderboard) Add(e models.LeaderboardEntry) {
	l.entries = append([]models.LeaderboardEntry{e}, l.entries...)
	if len(l.entries) > l.max {
		l.entries = l.entries[:l.max]
	}
}

// List returns a copy of the entries.
func (l *Leaderboard) List() []models.LeaderboardEntry {
	out := make([]models.LeaderboardEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
