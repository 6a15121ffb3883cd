package fuzz

import (
	"testing"
	"time"

	"github.com/Billy-Davies-2/glitch-pits/internal/dal"
	"github.com/Billy-Davies-2/glitch-pits/internal/logger"
	"github.com/Billy-Davies-2/glitch-pits/internal/pit"
	"github.com/Billy-Davies-2/glitch-pits/internal/pubsub"
	"github.com/Billy-Davies-2/glitch-pits/internal/registry"
	"github.com/Billy-Davies-2/glitch-pits/internal/rumble"
)

func init() {
	// Initialize logger for tests
	logger.Init()
}

type world struct {
	machine *pit.Machine
	rounds  *dal.MemoryDAL
	engine  *rumble.Engine
	bus     *pubsub.PubSub
}

func newWorld(t *testing.T) *world {
	w := &world{rounds: dal.NewMemoryDAL(), engine: rumble.NewEngine(nil), bus: pubsub.New()}
	w.machine = pit.New(pit.DefaultConfig(), registry.New(5000, 1000), w.engine, w.bus,
		pit.WithClock(pit.NewManualClock(time.Now())),
		pit.WithSinks(w.rounds))
	t.Cleanup(w.machine.Close)
	return w
}
