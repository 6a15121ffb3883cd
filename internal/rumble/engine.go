package rumble

import (
	"errors"
	"fmt"

	"github.com/Billy-Davies-2/glitch-pits/internal/models"
)

const (
	arenaChance    = 0.10
	criticalChance = 0.20
)

var (
	ErrNotEnoughParticipants = errors.New("rumble needs at least two participants")
	ErrDuplicateParticipant  = errors.New("duplicate participant id")
	ErrEmptySeed             = errors.New("rumble seed is empty")
)

// Result is the full outcome of a rumble, computed up front and revealed later.
type Result struct {
	Winner       models.Participant
	Events       []models.RumbleEvent
	Participants []models.Participant // final alive flags, in input order
}

// Engine turns a participant list and a seed into an elimination sequence.
// Elimination is uniform: stats and stakes never change who dies.
type Engine struct {
	lore *Lore
}

// NewEngine returns an engine rendering lines from lore (defaults when nil).
func NewEngine(lore *Lore) *Engine {
	if lore == nil {
		lore = DefaultLore()
	}
	return &Engine{lore: lore}
}

// Run simulates the rumble. The same participants and seed always give the same Result.
func (e *Engine) Run(participants []models.Participant, seed string) (Result, error) {
	if seed == "" {
		return Result{}, ErrEmptySeed
	}
	if len(participants) < 2 {
		return Result{}, fmt.Errorf("%w: got %d", ErrNotEnoughParticipants, len(participants))
	}
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if seen[p.ID] {
			return Result{}, fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.ID)
		}
		seen[p.ID] = true
	}

	return e.simulate(participants, NewMulberry32(seed)), nil
}

func (e *Engine) simulate(participants []models.Participant, rng Source) Result {
	field := make([]models.Participant, len(participants))
	copy(field, participants)
	for i := range field {
		field[i].IsAlive = true
	}

	var events []models.RumbleEvent
	elapsed := 0
	emit := func(evt models.RumbleEvent) {
		evt.ElapsedSeconds = elapsed
		evt.Timestamp = FormatElapsed(elapsed)
		events = append(events, evt)
		elapsed++
	}

	for {
		alive := aliveIndexes(field)
		if len(alive) <= 1 {
			break
		}

		if len(alive) > 2 && rng.Float64() < arenaChance {
			emit(models.RumbleEvent{
				Type:    models.EventArena,
				Message: Render(pick(rng, e.lore.Arena), map[string]string{"count": fmt.Sprint(len(alive))}),
			})
			continue
		}

		victimPos := index(rng, len(alive))
		victim := &field[alive[victimPos]]
		victim.IsAlive = false

		remaining := make([]int, 0, len(alive)-1)
		for i, idx := range alive {
			if i != victimPos {
				remaining = append(remaining, idx)
			}
		}
		if len(remaining) == 0 {
			emit(models.RumbleEvent{
				Type:     models.EventSelf,
				VictimID: victim.ID,
				Victim:   victim.Name,
				Message:  Render(pick(rng, e.lore.Self), map[string]string{"name": victim.Name}),
			})
			continue
		}

		killer := field[pick(rng, remaining)]
		emit(e.classify(rng, killer, *victim))
	}

	var winner models.Participant
	for _, p := range field {
		if p.IsAlive {
			winner = p
			break
		}
	}
	return Result{Winner: winner, Events: events, Participants: field}
}

func (e *Engine) classify(rng Source, killer, victim models.Participant) models.RumbleEvent {
	evt := models.RumbleEvent{
		Type:     models.EventKill,
		KillerID: killer.ID,
		Killer:   killer.Name,
		VictimID: victim.ID,
		Victim:   victim.Name,
	}
	names := map[string]string{"killer": killer.Name, "victim": victim.Name}

	switch {
	case killer.ID == models.SentinelID && len(e.lore.SentinelKill) > 0:
		evt.Message = Render(pick(rng, e.lore.SentinelKill), names)
	case victim.ID == models.SentinelID && len(e.lore.SentinelDeath) > 0:
		evt.Message = Render(pick(rng, e.lore.SentinelDeath), names)
	case rng.Float64() < criticalChance:
		evt.Type = models.EventCritical
		evt.Message = Render(pick(rng, e.lore.Critical), names)
	default:
		evt.Message = Render(pick(rng, e.lore.Kill), names)
	}
	return evt
}

func aliveIndexes(field []models.Participant) []int {
	out := make([]int, 0, len(field))
	for i, p := range field {
		if p.IsAlive {
			out = append(out, i)
		}
	}
	return out
}
