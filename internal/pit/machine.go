package pit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Billy-Davies-2/glitch-pits/internal/logger"
	"github.com/Billy-Davies-2/glitch-pits/internal/models"
	"github.com/Billy-Davies-2/glitch-pits/internal/payout"
	"github.com/Billy-Davies-2/glitch-pits/internal/pubsub"
	"github.com/Billy-Davies-2/glitch-pits/internal/registry"
	"github.com/Billy-Davies-2/glitch-pits/internal/rumble"
)

const archiveTimeout = 5 * time.Second

var tracer = otel.Tracer("github.com/Billy-Davies-2/glitch-pits/internal/pit")

// Broadcaster fans events out to connections. Publish must not block.
type Broadcaster interface {
	Publish(pubsub.Event)
}

// RoundSink receives the record of every finished round.
type RoundSink interface {
	SaveRound(ctx context.Context, rec models.RoundRecord) error
}

// Config carries the rules of the pit.
type Config struct {
	ReplayInterval  time.Duration
	HouseFeePercent int
	MinStake        int
	MaxParticipants int
}

// DefaultConfig returns the standard rules.
func DefaultConfig() Config {
	return Config{
		ReplayInterval:  3 * time.Second,
		HouseFeePercent: payout.DefaultHouseFeePercent,
		MinStake:        50,
		MaxParticipants: 3,
	}
}

// Option customises a Machine.
type Option func(*Machine)

// WithClock replaces the wall clock and replay tickers.
func WithClock(c Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithSeedSource replaces the seed id generator.
func WithSeedSource(fn func(now time.Time) string) Option {
	return func(m *Machine) { m.newSeed = fn }
}

// WithSinks registers round archives and analytics.
func WithSinks(sinks ...RoundSink) Option {
	return func(m *Machine) { m.sinks = append(m.sinks, sinks...) }
}

// NewSeedID returns rumble-<unix ms>-<8 hex>.
func NewSeedID(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("rumble-%d-%s", now.UnixMilli(), id[:8])
}

// Machine owns the pit. Every operation runs to completion under one lock,
// including the broadcast of the resulting state.
type Machine struct {
	mu       sync.Mutex
	cfg      Config
	registry *registry.Registry
	engine   *rumble.Engine
	bus      Broadcaster
	clock    Clock
	newSeed  func(time.Time) string
	sinks    []RoundSink

	phase         models.Phase
	participants  []models.Participant
	prizePool     int
	spectatorPool int
	bets          []models.SpectatorBet // placement order
	winner        *models.Participant
	events        []models.RumbleEvent
	seedID        string
	mode          models.GameMode

	script     []models.RumbleEvent
	result     rumble.Result
	round      uint64
	stopReplay context.CancelFunc
	usedSeeds  map[string]struct{}
	board      *Leaderboard
}

// New creates an idle pit.
func New(cfg Config, reg *registry.Registry, engine *rumble.Engine, bus Broadcaster, opts ...Option) *Machine {
	m := &Machine{
		cfg:       cfg,
		registry:  reg,
		engine:    engine,
		bus:       bus,
		clock:     RealClock{},
		newSeed:   NewSeedID,
		phase:     models.PhaseIdle,
		usedSeeds: make(map[string]struct{}),
		board:     NewLeaderboard(LeaderboardSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Forge creates the caller's character.
func (m *Machine) Forge(id, name, clothes, weapon string) (models.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.registry.Forge(id, name, clothes, weapon)
	if err != nil {
		return c, registryErr(err)
	}

	m.publishTo(id, EventSpawned, Spawned{
		ID:        c.ID,
		Name:      c.Name,
		Balance:   c.Balance,
		Clothes:   c.Clothes,
		Weapon:    c.Weapon,
		LoreClass: c.LoreClass,
	})
	m.publish(EventGlitchLog, GlitchLog{Type: logForge, Message: c.Name + " entered the PITS."})
	m.publish(EventCharacterCount, CharacterCount{N: m.registry.Count()})
	m.publishState()
	logger.Info("Character forged", "id", id, "name", c.Name, "loreClass", c.LoreClass)
	return c, nil
}

// Upgrade buys one stat point for the caller.
func (m *Machine) Upgrade(id, stat string, cost int) (models.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.registry.ApplyUpgrade(id, stat, cost)
	if err != nil {
		return c, registryErr(err)
	}

	m.publishTo(id, EventBalanceUpdate, BalanceUpdate{Balance: c.Balance})
	m.publishTo(id, EventStatsUpdate, c.Stats)
	m.publish(EventGlitchLog, GlitchLog{Type: logUpgrade, Message: fmt.Sprintf("%s upgraded %s!", c.Name, stat)})
	return c, nil
}

// Open moves an idle pit to entries.
func (m *Machine) Open(callerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != models.PhaseIdle {
		return ErrWrongPhase
	}
	if m.registry.Count() == 0 {
		return ErrNoCharacters
	}

	m.clearRoundLocked()
	m.phase = models.PhaseEntries

	m.publish(EventGlitchLog, GlitchLog{
		Type:    logRumble,
		Message: "THE PIT IS OPEN! Enter with your character and bet amount. Winner takes all.",
	})
	m.publishState()
	logger.Info("Pit opened", "by", callerID)
	return nil
}

// Enter stakes amount and adds the caller as a participant.
func (m *Machine) Enter(callerID string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != models.PhaseEntries {
		return ErrWrongPhase
	}
	c, ok := m.registry.Get(callerID)
	if !ok {
		return ErrNotForged
	}
	if m.participantIndex(callerID) >= 0 {
		return ErrAlreadyEntered
	}
	if m.betIndex(callerID) >= 0 {
		return ErrAlreadyBet
	}
	if len(m.participants) >= m.cfg.MaxParticipants {
		return ErrPitFull
	}
	if amount < m.cfg.MinStake {
		return ErrStakeTooLow
	}

	balance, err := m.registry.Debit(callerID, amount)
	if err != nil {
		return registryErr(err)
	}

	m.participants = append(m.participants, models.Participant{
		ID:        c.ID,
		Name:      c.Name,
		LoreClass: c.LoreClass,
		Clothes:   c.Clothes,
		Weapon:    c.Weapon,
		BetAmount: amount,
		IsAlive:   true,
	})
	m.prizePool += amount

	m.publishTo(callerID, EventBalanceUpdate, BalanceUpdate{Balance: balance})
	m.publish(EventGlitchLog, GlitchLog{Type: logForge, Message: fmt.Sprintf("%s entered the PIT with %d PITS!", c.Name, amount)})
	m.publishState()
	return nil
}

// Bet wagers amount on a participant, or on the house when exactly one human is in.
func (m *Machine) Bet(callerID, targetID string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != models.PhaseEntries {
		return ErrWrongPhase
	}
	c, ok := m.registry.Get(callerID)
	if !ok {
		return ErrNotForged
	}
	if m.participantIndex(callerID) >= 0 {
		return ErrParticipantCannotBet
	}
	if m.betIndex(callerID) >= 0 {
		return ErrAlreadyBet
	}
	if !m.validTargetLocked(targetID) {
		return ErrUnknownTarget
	}
	multiplier, ok := payout.Multiplier(amount)
	if !ok || amount < m.cfg.MinStake {
		return ErrStakeTooLow
	}

	balance, err := m.registry.Debit(callerID, amount)
	if err != nil {
		return registryErr(err)
	}

	m.bets = append(m.bets, models.SpectatorBet{
		BettorID:   callerID,
		BettorName: c.Name,
		TargetID:   targetID,
		Amount:     amount,
		Multiplier: multiplier,
	})
	m.spectatorPool += amount

	m.publishTo(callerID, EventBalanceUpdate, BalanceUpdate{Balance: balance})
	m.publish(EventGlitchLog, GlitchLog{
		Type:    logBet,
		Message: fmt.Sprintf("%s bet %d PITS on %s at %.1fx.", c.Name, amount, m.nameOf(targetID), multiplier),
	})
	m.publishState()
	return nil
}

// Run locks the entries, simulates the rumble and starts the replay.
// Engine failures are returned as-is and leave the pit in entries.
func (m *Machine) Run(ctx context.Context, callerID string) error {
	_, span := tracer.Start(ctx, "pit.Run")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != models.PhaseEntries {
		return ErrWrongPhase
	}
	if len(m.participants) == 0 {
		return ErrNoParticipants
	}

	mode := models.ModeRumble
	field := make([]models.Participant, len(m.participants), len(m.participants)+1)
	copy(field, m.participants)
	if len(field) == 1 {
		mode = models.ModeDuel
		field = append(field, models.Sentinel())
	}

	seed := m.nextSeedLocked()
	span.SetAttributes(
		attribute.String("pit.seed_id", seed),
		attribute.String("pit.mode", string(mode)),
		attribute.Int("pit.participants", len(field)),
	)

	res, err := m.engine.Run(field, seed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rumble engine failed")
		logger.Error("Rumble engine rejected the field", "seed", seed, "participants", len(field), "error", err)
		return fmt.Errorf("run rumble: %w", err)
	}

	if mode == models.ModeRumble {
		m.refundBetsLocked(func(b models.SpectatorBet) bool { return b.TargetID == models.SentinelID })
	}

	for i := range field {
		field[i].IsAlive = true
	}
	m.participants = field
	m.mode = mode
	m.seedID = seed
	m.script = res.Events
	m.result = res
	m.events = nil
	m.phase = models.PhaseBattle

	m.publish(EventGlitchLog, GlitchLog{
		Type:    logRumble,
		Message: fmt.Sprintf("The PIT erupts! %d fighters. Total pot: %d PITS.", len(field), m.prizePool),
	})
	m.publishState()
	m.startReplayLocked()

	logger.Info("Rumble started", "seed", seed, "mode", mode, "participants", len(field), "events", len(res.Events), "by", callerID)
	return nil
}

// Tick reveals the next precomputed event. The tick revealing the last one
// settles the round. It reports whether the replay is over.
func (m *Machine) Tick(ctx context.Context) bool {
	return m.step(ctx, 0)
}

func (m *Machine) step(ctx context.Context, round uint64) bool {
	m.mu.Lock()
	if round != 0 && round != m.round {
		m.mu.Unlock()
		return true
	}
	rec, done := m.revealLocked()
	m.mu.Unlock()

	if rec != nil {
		m.archive(ctx, *rec)
	}
	return done
}

func (m *Machine) revealLocked() (*models.RoundRecord, bool) {
	if m.phase != models.PhaseBattle {
		return nil, true
	}

	if len(m.events) < len(m.script) {
		evt := m.script[len(m.events)]
		m.events = append(m.events, evt)
		if evt.VictimID != "" {
			if i := m.participantIndex(evt.VictimID); i >= 0 {
				m.participants[i].IsAlive = false
			}
		}
		m.publish(EventGlitchLog, GlitchLog{Type: logTypeFor(evt), Message: evt.Message})
		m.publish(EventRumbleEvent, evt)
	}

	if len(m.events) < len(m.script) {
		m.publishState()
		return nil, false
	}

	rec := m.finishLocked()
	return &rec, true
}

// finishLocked settles the round exactly once and stops the replay.
func (m *Machine) finishLocked() models.RoundRecord {
	winner := m.result.Winner
	winner.IsAlive = true
	m.winner = &winner

	s := payout.Settle(payout.Round{
		Mode:            m.mode,
		Winner:          winner,
		Participants:    m.participants,
		PrizePool:       m.prizePool,
		SpectatorPool:   m.spectatorPool,
		Bets:            m.bets,
		HouseFeePercent: m.cfg.HouseFeePercent,
	})

	var applied []models.PayoutLine
	for _, line := range s.Lines(winner.ID) {
		balance, err := m.registry.Credit(line.RecipientID, line.Amount)
		if err != nil {
			logger.Warn("Payout recipient is gone, credit burned", "seed", m.seedID, "recipient", line.RecipientID, "amount", line.Amount, "error", err)
			continue
		}
		applied = append(applied, line)
		m.publishTo(line.RecipientID, EventBalanceUpdate, BalanceUpdate{Balance: balance})
	}

	if winner.Synthetic {
		m.publish(EventGlitchLog, GlitchLog{
			Type:    logWinner,
			Message: fmt.Sprintf("%s WINS. The House keeps %d PITS.", winner.Name, m.prizePool),
		})
	} else {
		m.board.Add(models.LeaderboardEntry{
			Name:   winner.Name,
			Amount: s.WinnerCredit,
			SeedID: m.seedID,
			Date:   m.clock.Now().UTC(),
		})
		m.publishTo(winner.ID, EventYouWon, YouWon{Name: winner.Name, Amount: s.WinnerCredit})
		m.publish(EventGlitchLog, GlitchLog{
			Type:    logWinner,
			Message: fmt.Sprintf("%s WINS! Took %d PITS. Where are your gods now?", winner.Name, s.WinnerCredit),
		})
	}

	m.phase = models.PhaseFinished
	m.stopReplayLocked()
	m.publishState()
	m.publish(EventLeaderboard, LeaderboardUpdate{Entries: m.board.List()})

	logger.Info("Rumble finished", "seed", m.seedID, "mode", m.mode, "winner", winner.ID,
		"winnerCredit", s.WinnerCredit, "spectatorPayouts", len(s.Spectators), "houseTake", s.HouseTake)

	return models.RoundRecord{
		SeedID:           m.seedID,
		Mode:             m.mode,
		Participants:     cloneParticipants(m.participants),
		WinnerID:         winner.ID,
		WinnerName:       winner.Name,
		PrizePool:        m.prizePool,
		SpectatorPool:    m.spectatorPool,
		NetPrizePool:     s.NetPrizePool,
		NetSpectatorPool: s.NetSpectatorPool,
		Bets:             append([]models.SpectatorBet(nil), m.bets...),
		Payouts:          applied,
		Events:           append([]models.RumbleEvent(nil), m.events...),
		FinishedAt:       m.clock.Now().UTC(),
	}
}

// Reset returns a finished pit to idle.
func (m *Machine) Reset(callerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != models.PhaseFinished {
		return ErrWrongPhase
	}
	m.clearRoundLocked()
	m.phase = models.PhaseIdle
	m.publishState()
	logger.Debug("Pit reset", "by", callerID)
	return nil
}

// Disconnect removes the caller's character. While entries are open its stake
// or bet leaves the pools (burned) and bets on it are refunded. A round already
// in battle plays out unchanged.
func (m *Machine) Disconnect(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.registry.Get(id)
	if !ok {
		return
	}
	m.registry.Remove(id)

	changed := false
	if m.phase == models.PhaseEntries {
		if i := m.participantIndex(id); i >= 0 {
			m.prizePool -= m.participants[i].BetAmount
			m.participants = append(m.participants[:i], m.participants[i+1:]...)
			changed = true
			logger.Info("Participant left during entries, stake burned", "id", id, "name", c.Name)
		}
		if i := m.betIndex(id); i >= 0 {
			m.spectatorPool -= m.bets[i].Amount
			m.bets = append(m.bets[:i], m.bets[i+1:]...)
			changed = true
		}
		if m.refundBetsLocked(m.orphanedLocked) > 0 {
			changed = true
		}
	}

	m.publish(EventGlitchLog, GlitchLog{Type: logDisconnect, Message: c.Name + " disconnected."})
	m.publish(EventCharacterCount, CharacterCount{N: m.registry.Count()})
	if changed {
		m.publishState()
	}
}

// Snapshot returns a deep copy of the public state.
func (m *Machine) Snapshot() models.PitState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Leaderboard returns the most recent winners, newest first.
func (m *Machine) Leaderboard() []models.LeaderboardEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.board.List()
}

// CharacterCount returns the number of forged characters.
func (m *Machine) CharacterCount() int {
	return m.registry.Count()
}

// Character returns the caller's character.
func (m *Machine) Character(id string) (models.Character, bool) {
	return m.registry.Get(id)
}

// Close stops an in-flight replay. The round is lost.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == models.PhaseBattle {
		logger.Warn("Shutting down with a rumble in progress", "seed", m.seedID, "revealed", len(m.events), "total", len(m.script))
	}
	m.stopReplayLocked()
}

func (m *Machine) startReplayLocked() {
	m.stopReplayLocked()
	m.round++
	ctx, cancel := context.WithCancel(context.Background())
	m.stopReplay = cancel
	ticker := m.clock.NewTicker(m.cfg.ReplayInterval)
	go m.replay(ctx, ticker, m.round)
}

func (m *Machine) replay(ctx context.Context, ticker Ticker, round uint64) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			if m.step(ctx, round) {
				return
			}
		}
	}
}

func (m *Machine) stopReplayLocked() {
	if m.stopReplay != nil {
		m.stopReplay()
		m.stopReplay = nil
	}
}

func (m *Machine) archive(ctx context.Context, rec models.RoundRecord) {
	if len(m.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "pit.Archive")
	defer span.End()
	span.SetAttributes(attribute.String("pit.seed_id", rec.SeedID))

	for _, sink := range m.sinks {
		if err := sink.SaveRound(ctx, rec); err != nil {
			span.RecordError(err)
			logger.Error("Failed to archive round", "seed", rec.SeedID, "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
}

func (m *Machine) nextSeedLocked() string {
	base := m.newSeed(m.clock.Now())
	seed := base
	for n := 1; ; n++ {
		if _, used := m.usedSeeds[seed]; !used {
			break
		}
		seed = fmt.Sprintf("%s-%d", base, n)
	}
	m.usedSeeds[seed] = struct{}{}
	return seed
}

func (m *Machine) clearRoundLocked() {
	m.stopReplayLocked()
	m.participants = nil
	m.prizePool = 0
	m.spectatorPool = 0
	m.bets = nil
	m.winner = nil
	m.events = nil
	m.seedID = ""
	m.mode = models.ModeNone
	m.script = nil
	m.result = rumble.Result{}
}

// refundBetsLocked returns matching bets to their bettors and drops them from the pool.
func (m *Machine) refundBetsLocked(match func(models.SpectatorBet) bool) int {
	kept := m.bets[:0]
	refunded := 0
	for _, b := range m.bets {
		if !match(b) {
			kept = append(kept, b)
			continue
		}
		refunded++
		m.spectatorPool -= b.Amount
		balance, err := m.registry.Credit(b.BettorID, b.Amount)
		if err != nil {
			logger.Warn("Refund recipient is gone", "bettor", b.BettorID, "amount", b.Amount, "error", err)
			continue
		}
		m.publishTo(b.BettorID, EventBalanceUpdate, BalanceUpdate{Balance: balance})
		m.publish(EventGlitchLog, GlitchLog{Type: logBet, Message: fmt.Sprintf("%s's bet of %d PITS was refunded.", b.BettorName, b.Amount)})
	}
	m.bets = kept
	return refunded
}

// validTargetLocked accepts participants, and the house while exactly one human is in.
func (m *Machine) validTargetLocked(targetID string) bool {
	if targetID == models.SentinelID {
		return len(m.participants) == 1
	}
	return m.participantIndex(targetID) >= 0
}

// orphanedLocked matches bets whose target left. House bets stand until Run
// decides the mode, unless no human is left at all.
func (m *Machine) orphanedLocked(b models.SpectatorBet) bool {
	if b.TargetID == models.SentinelID {
		return len(m.participants) == 0
	}
	return m.participantIndex(b.TargetID) < 0
}

func (m *Machine) participantIndex(id string) int {
	for i, p := range m.participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (m *Machine) betIndex(bettorID string) int {
	for i, b := range m.bets {
		if b.BettorID == bettorID {
			return i
		}
	}
	return -1
}

func (m *Machine) nameOf(id string) string {
	if id == models.SentinelID {
		return models.SentinelName
	}
	if i := m.participantIndex(id); i >= 0 {
		return m.participants[i].Name
	}
	return id
}

func (m *Machine) snapshotLocked() models.PitState {
	state := models.PitState{
		Phase:         m.phase,
		Participants:  cloneParticipants(m.participants),
		PrizePool:     m.prizePool,
		SpectatorPool: m.spectatorPool,
		SpectatorBets: make(map[string]models.SpectatorBet, len(m.bets)),
		Events:        append([]models.RumbleEvent{}, m.events...),
		SeedID:        m.seedID,
		GameMode:      m.mode,
	}
	for _, b := range m.bets {
		state.SpectatorBets[b.BettorID] = b
	}
	if m.winner != nil {
		w := *m.winner
		state.Winner = &w
	}
	return state
}

func (m *Machine) publish(eventType string, payload any) {
	m.bus.Publish(pubsub.NewEvent(eventType, payload))
}

func (m *Machine) publishTo(target, eventType string, payload any) {
	m.bus.Publish(pubsub.NewEvent(eventType, payload).To(target))
}

func (m *Machine) publishState() {
	m.publish(EventRumbleState, m.snapshotLocked())
}

func cloneParticipants(in []models.Participant) []models.Participant {
	return append([]models.Participant{}, in...)
}

// registryErr maps registry failures onto pit rejections.
func registryErr(err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return ErrNotForged
	case errors.Is(err, registry.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, registry.ErrAlreadyForged):
		return ErrAlreadyForged
	case errors.Is(err, registry.ErrInvalidUpgrade), errors.Is(err, registry.ErrStatMaxed):
		return fmt.Errorf("%w: %v", ErrInvalidUpgrade, err)
	case errors.Is(err, registry.ErrInvalidAmount):
		return ErrStakeTooLow
	}
	return err
}
