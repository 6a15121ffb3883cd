// Package payout turns a rumble winner into balance credits.
//
// Multipliers are carried in tenths (2.5x == 25) so every amount stays an
// integer and floors happen exactly once, at the end.
package payout

import (
	"github.com/Billy-Davies-2/glitch-pits/internal/models"
)

// DefaultHouseFeePercent is taken from the prize and spectator pools.
const DefaultHouseFeePercent = 5

// Tier maps a minimum stake to a multiplier.
type Tier struct {
	Min    int
	Tenths int
}

// Tiers are ordered from the highest minimum down.
var Tiers = []Tier{
	{Min: 1000, Tenths: 40},
	{Min: 500, Tenths: 30},
	{Min: 250, Tenths: 25},
	{Min: 100, Tenths: 20},
	{Min: 50, Tenths: 15},
}

// MultiplierTenths resolves the multiplier for a stake. Stakes below the
// lowest tier are not valid bets.
func MultiplierTenths(amount int) (int, bool) {
	for _, t := range Tiers {
		if amount >= t.Min {
			return t.Tenths, true
		}
	}
	return 0, false
}

// Multiplier is MultiplierTenths as a float for display.
func Multiplier(amount int) (float64, bool) {
	t, ok := MultiplierTenths(amount)
	return float64(t) / 10, ok
}

// Net applies the house fee to a pool, flooring.
func Net(pool, feePercent int) int {
	return pool * (100 - feePercent) / 100
}

// Round is everything settlement needs to know about a finished round.
type Round struct {
	Mode            models.GameMode
	Winner          models.Participant
	Participants    []models.Participant
	PrizePool       int
	SpectatorPool   int
	Bets            []models.SpectatorBet
	HouseFeePercent int
}

// Settlement lists the credits owed. Credits are not applied here.
type Settlement struct {
	WinnerCredit     int
	NetPrizePool     int
	NetSpectatorPool int
	Spectators       []models.PayoutLine
	// HouseTake is pools in minus credits out. It is negative when the house
	// pays a duel out of its own pocket.
	HouseTake int
}

// Lines returns every credit in order, winner first.
func (s Settlement) Lines(winnerID string) []models.PayoutLine {
	var out []models.PayoutLine
	if s.WinnerCredit > 0 {
		out = append(out, models.PayoutLine{RecipientID: winnerID, Kind: "winner", Amount: s.WinnerCredit})
	}
	return append(out, s.Spectators...)
}

// Settle computes the payouts for a finished round.
func Settle(r Round) Settlement {
	var s Settlement

	switch r.Mode {
	case models.ModeDuel:
		// Entry stake doubles when the human wins and burns otherwise.
		if r.Winner.ID != models.SentinelID {
			s.WinnerCredit = 2 * stakeOf(r.Participants, r.Winner.ID)
		}
	default:
		s.NetPrizePool = Net(r.PrizePool, r.HouseFeePercent)
		s.WinnerCredit = s.NetPrizePool
	}

	s.NetSpectatorPool = Net(r.SpectatorPool, r.HouseFeePercent)
	s.Spectators = settleSpectators(r.Bets, r.Winner.ID, s.NetSpectatorPool)

	paid := s.WinnerCredit
	for _, l := range s.Spectators {
		paid += l.Amount
	}
	s.HouseTake = r.PrizePool + r.SpectatorPool - paid
	return s
}

func stakeOf(participants []models.Participant, id string) int {
	for _, p := range participants {
		if p.ID == id {
			return p.BetAmount
		}
	}
	return 0
}

// settleSpectators pays bets on winnerID amount x multiplier, scaled down
// proportionally when the total owed exceeds the net pool.
func settleSpectators(bets []models.SpectatorBet, winnerID string, netPool int) []models.PayoutLine {
	var (
		winning   []models.SpectatorBet
		raw       []int
		totalOwed int
	)
	for _, b := range bets {
		if b.TargetID != winnerID {
			continue
		}
		tenths := b.Amount * multiplierTenthsOf(b)
		winning = append(winning, b)
		raw = append(raw, tenths)
		totalOwed += tenths
	}
	if len(winning) == 0 {
		return nil
	}

	scaled := totalOwed > netPool*10
	out := make([]models.PayoutLine, 0, len(winning))
	for i, b := range winning {
		amount := raw[i] / 10
		if scaled {
			amount = raw[i] * netPool / totalOwed
		}
		if amount <= 0 {
			continue
		}
		out = append(out, models.PayoutLine{RecipientID: b.BettorID, Kind: "spectator", Amount: amount})
	}
	return out
}

// multiplierTenthsOf trusts the multiplier fixed at bet time, falling back to
// the tier table for bets recorded without one.
func multiplierTenthsOf(b models.SpectatorBet) int {
	if b.Multiplier > 0 {
		return int(b.Multiplier*10 + 0.5)
	}
	t, _ := MultiplierTenths(b.Amount)
	return t
}
