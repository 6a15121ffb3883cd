package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Billy-Davies-2/glitch-pits/internal/logger"
	"github.com/Billy-Davies-2/glitch-pits/internal/models"
	"github.com/Billy-Davies-2/glitch-pits/internal/pit"
	"github.com/Billy-Davies-2/glitch-pits/internal/pubsub"
)

const maxFrameBytes = 4 << 10

// Pit is the part of the state machine the gateway drives.
type Pit interface {
	Forge(id, name, clothes, weapon string) (models.Character, error)
	Upgrade(id, stat string, cost int) (models.Character, error)
	Open(callerID string) error
	Enter(callerID string, amount int) error
	Bet(callerID, targetID string, amount int) error
	Run(ctx context.Context, callerID string) error
	Reset(callerID string) error
	Disconnect(id string)
	Snapshot() models.PitState
	Leaderboard() []models.LeaderboardEntry
	CharacterCount() int
}

// Subscriber hands out event feeds.
type Subscriber interface {
	Subscribe() chan pubsub.Event
	Unsubscribe(chan pubsub.Event)
}

// Options tunes connection keepalive and origin checks.
type Options struct {
	AllowedOrigin string // "*" or empty allows any origin
	PingInterval  time.Duration
	PongWait      time.Duration
	WriteWait     time.Duration
}

func (o *Options) defaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
}

// Gateway serves the /ws endpoint. Each connection owns one character, keyed
// by a server-assigned connection id. The id is public: it appears as the
// participant id and spectatorBets key in rumbleState and is what clients
// send as warriorId. Clients never choose it.
type Gateway struct {
	pit      Pit
	bus      Subscriber
	opts     Options
	upgrader websocket.Upgrader
	conns    atomic.Int64
}

// New creates a gateway driving p and streaming events from bus.
func New(p Pit, bus Subscriber, opts Options) *Gateway {
	opts.defaults()
	g := &Gateway{pit: p, bus: bus, opts: opts}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// Connections returns the number of open WebSocket connections.
func (g *Gateway) Connections() int {
	return int(g.conns.Load())
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if g.opts.AllowedOrigin == "" || g.opts.AllowedOrigin == "*" || origin == "" {
		return true
	}
	return origin == g.opts.AllowedOrigin
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	connID := uuid.NewString()
	log := logger.With("conn", connID)
	g.conns.Add(1)
	log.Debug("Client connected", "remote", r.RemoteAddr, "connections", g.Connections())

	events := g.bus.Subscribe()
	defer func() {
		g.bus.Unsubscribe(events)
		g.pit.Disconnect(connID)
		conn.Close()
		g.conns.Add(-1)
		log.Debug("Client disconnected", "connections", g.Connections())
	}()

	// Subscribed first so nothing published after this snapshot is missed.
	if err := g.greet(conn); err != nil {
		log.Debug("Failed to send initial state", "error", err)
		return
	}

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		g.writeLoop(conn, connID, events, done)
	}()

	g.readLoop(r.Context(), conn, connID)
	close(done)
	<-writerDone
}

func (g *Gateway) greet(conn *websocket.Conn) error {
	initial := []pubsub.Event{
		pubsub.NewEvent(pit.EventRumbleState, g.pit.Snapshot()),
		pubsub.NewEvent(pit.EventCharacterCount, pit.CharacterCount{N: g.pit.CharacterCount()}),
		pubsub.NewEvent(pit.EventLeaderboard, pit.LeaderboardUpdate{Entries: g.pit.Leaderboard()}),
	}
	for _, evt := range initial {
		if err := g.write(conn, evt); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, connID string) {
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(g.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.opts.PongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("WebSocket read error", "conn", connID, "error", err)
			}
			return
		}
		g.handleFrame(ctx, connID, frame)
	}
}

// handleFrame decodes and dispatches one inbound frame. Nothing is ever
// written back on failure.
func (g *Gateway) handleFrame(ctx context.Context, connID string, frame []byte) {
	env, err := DecodeEnvelope(frame)
	if err == nil {
		err = g.dispatch(ctx, connID, env)
	}

	switch {
	case err == nil:
	case pit.IsRejected(err):
		logger.Debug("Action rejected", "conn", connID, "type", env.T, "reason", err)
	case errors.Is(err, ErrMalformed):
		logger.Warn("Dropping malformed message", "conn", connID, "type", env.T, "error", err)
	default:
		logger.Error("Action failed", "conn", connID, "type", env.T, "error", err)
	}
}

func (g *Gateway) dispatch(ctx context.Context, connID string, env Envelope) error {
	switch env.T {
	case MsgForge:
		req, err := decode[ForgeRequest](env)
		if err != nil {
			return err
		}
		_, err = g.pit.Forge(connID, req.Name, req.Clothes, req.Weapon)
		return err

	case MsgOpenPit:
		if _, err := DecodePayload[Empty](env); err != nil {
			return err
		}
		return g.pit.Open(connID)

	case MsgEnterPit:
		req, err := decode[EnterPitRequest](env)
		if err != nil {
			return err
		}
		return g.pit.Enter(connID, req.Amount)

	case MsgBetOnWarrior:
		req, err := decode[BetRequest](env)
		if err != nil {
			return err
		}
		return g.pit.Bet(connID, req.WarriorID, req.Amount)

	case MsgUpgrade:
		req, err := decode[UpgradeRequest](env)
		if err != nil {
			return err
		}
		_, err = g.pit.Upgrade(connID, req.Stat, req.Cost)
		return err

	case MsgRunRumble:
		if _, err := DecodePayload[Empty](env); err != nil {
			return err
		}
		return g.pit.Run(ctx, connID)

	case MsgResetRumble:
		if _, err := DecodePayload[Empty](env); err != nil {
			return err
		}
		return g.pit.Reset(connID)
	}
	return fmt.Errorf("%w: unknown type %q", ErrMalformed, env.T)
}

type validator interface {
	validate() error
}

func decode[T validator](env Envelope) (T, error) {
	req, err := DecodePayload[T](env)
	if err != nil {
		return req, err
	}
	return req, req.validate()
}

// writeLoop is the only writer on conn once the greeting is sent.
func (g *Gateway) writeLoop(conn *websocket.Conn, connID string, events <-chan pubsub.Event, done <-chan struct{}) {
	ping := time.NewTicker(g.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(g.opts.WriteWait))
			return
		case evt, ok := <-events:
			if !ok {
				conn.Close()
				return
			}
			if !evt.Broadcast() && evt.Target != connID {
				continue
			}
			if err := g.write(conn, evt); err != nil {
				logger.Debug("WebSocket write failed", "conn", connID, "error", err)
				conn.Close()
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(g.opts.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (g *Gateway) write(conn *websocket.Conn, evt pubsub.Event) error {
	frame, err := Encode(evt.Type, evt.Payload)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(g.opts.WriteWait))
	return conn.WriteMessage(websocket.TextMessage, frame)
}
