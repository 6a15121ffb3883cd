package models

import "time"

// Phase is a step of the pit lifecycle
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseEntries  Phase = "entries"
	PhaseBattle   Phase = "battle"
	PhaseFinished Phase = "finished"
)

// GameMode is decided when the pit runs
type GameMode string

const (
	ModeNone   GameMode = ""
	ModeDuel   GameMode = "duel"
	ModeRumble GameMode = "rumble"
)

// EventType classifies a rumble event
type EventType string

const (
	EventKill     EventType = "kill"
	EventSelf     EventType = "self"
	EventCritical EventType = "critical"
	EventArena    EventType = "arena"
)

// The house opponent injected in duel mode.
const (
	SentinelID   = "SYSTEM_SENTINEL"
	SentinelName = "System Sentinel"
)

// Stats are cosmetic; they never bias the elimination order.
type Stats struct {
	Attack  int `json:"attack"`
	Defense int `json:"defense"`
	Luck    int `json:"luck"`
}

// Character is the forged fighter owned by one connection
type Character struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Clothes   string `json:"clothes"`
	Weapon    string `json:"weapon"`
	LoreClass string `json:"loreClass"`
	Stats
	Balance int `json:"balance"`
}

// Participant is a character snapshot locked into the current round
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	LoreClass string `json:"loreClass,omitempty"`
	Clothes   string `json:"clothes,omitempty"`
	Weapon    string `json:"weapon,omitempty"`
	BetAmount int    `json:"betAmount"`
	IsAlive   bool   `json:"isAlive"`
	Synthetic bool   `json:"synthetic,omitempty"`
}

// Sentinel returns the synthetic house opponent.
func Sentinel() Participant {
	return Participant{
		ID:        SentinelID,
		Name:      SentinelName,
		LoreClass: "The House",
		IsAlive:   true,
		Synthetic: true,
	}
}

// SpectatorBet is a wager placed on a participant by a non-participant
type SpectatorBet struct {
	BettorID   string  `json:"bettorId"`
	BettorName string  `json:"bettorName"`
	TargetID   string  `json:"targetId"`
	Amount     int     `json:"amount"`
	Multiplier float64 `json:"multiplier"`
}

// RumbleEvent is one revealed step of a battle
type RumbleEvent struct {
	Type           EventType `json:"type"`
	KillerID       string    `json:"killerId,omitempty"`
	Killer         string    `json:"killer,omitempty"`
	VictimID       string    `json:"victimId,omitempty"`
	Victim         string    `json:"victim,omitempty"`
	Message        string    `json:"message"`
	ElapsedSeconds int       `json:"elapsedSeconds"`
	Timestamp      string    `json:"timestamp"`
}

// PitState is the public view of the current round
type PitState struct {
	Phase         Phase                   `json:"phase"`
	Participants  []Participant           `json:"participants"`
	PrizePool     int                     `json:"prizePool"`
	SpectatorPool int                     `json:"spectatorPool"`
	SpectatorBets map[string]SpectatorBet `json:"spectatorBets"`
	Winner        *Participant            `json:"winner"`
	Events        []RumbleEvent           `json:"events"`
	SeedID        string                  `json:"seedId"`
	GameMode      GameMode                `json:"gameMode"`
}

// LeaderboardEntry records a past winner
type LeaderboardEntry struct {
	Name   string    `json:"name"`
	Amount int       `json:"amount"`
	SeedID string    `json:"seedId"`
	Date   time.Time `json:"date"`
}

// PayoutLine is one credit applied during settlement
type PayoutLine struct {
	RecipientID string `json:"recipientId"`
	Kind        string `json:"kind"` // "winner", "spectator" or "refund"
	Amount      int    `json:"amount"`
}

// RoundRecord is the audit trail of a finished round
type RoundRecord struct {
	SeedID           string         `json:"seedId"`
	Mode             GameMode       `json:"mode"`
	Participants     []Participant  `json:"participants"`
	WinnerID         string         `json:"winnerId"`
	WinnerName       string         `json:"winnerName"`
	PrizePool        int            `json:"prizePool"`
	SpectatorPool    int            `json:"spectatorPool"`
	NetPrizePool     int            `json:"netPrizePool"`
	NetSpectatorPool int            `json:"netSpectatorPool"`
	Bets             []SpectatorBet `json:"bets"`
	Payouts          []PayoutLine   `json:"payouts"`
	Events           []RumbleEvent  `json:"events"`
	FinishedAt       time.Time      `json:"finishedAt"`
}

// WinRate aggregates how often a winner kind took the round
type WinRate struct {
	Mode   GameMode `json:"mode"`
	Winner string   `json:"winner"` // "house" or "player"
	Rounds int      `json:"rounds"`
	Share  float64  `json:"share"`
}

// HouseTake is what the house kept: both pools minus every credit applied.
func (r RoundRecord) HouseTake() int {
	take := r.PrizePool + r.SpectatorPool
	for _, p := range r.Payouts {
		take -= p.Amount
	}
	return take
}
