package pit

import "github.com/Billy-Davies-2/glitch-pits/internal/models"

// Outbound event types.
const (
	EventSpawned        = "spawned"
	EventCharacterCount = "characterCount"
	EventRumbleState    = "rumbleState"
	EventGlitchLog      = "glitchLog"
	EventRumbleEvent    = "rumbleEvent"
	EventBalanceUpdate  = "balanceUpdate"
	EventStatsUpdate    = "statsUpdate"
	EventYouWon         = "youWon"
	EventLeaderboard    = "leaderboard"
)

// Spawned confirms a forge to its owner.
type Spawned struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Balance   int    `json:"balance"`
	Clothes   string `json:"clothes"`
	Weapon    string `json:"weapon"`
	LoreClass string `json:"loreClass"`
}

type CharacterCount struct {
	N int `json:"n"`
}

// GlitchLog is one line of the narrative feed.
type GlitchLog struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type BalanceUpdate struct {
	Balance int `json:"balance"`
}

// LeaderboardUpdate carries the recent winners, newest first.
type LeaderboardUpdate struct {
	Entries []models.LeaderboardEntry `json:"entries"`
}

type YouWon struct {
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

// glitchLog types
const (
	logForge      = "forge"
	logRumble     = "rumble"
	logBet        = "bet"
	logUpgrade    = "upgrade"
	logKill       = "kill"
	logEvent      = "event"
	logWinner     = "winner"
	logDisconnect = "disconnect"
)

func logTypeFor(evt models.RumbleEvent) string {
	if evt.Type == models.EventKill {
		return logKill
	}
	return logEvent
}
