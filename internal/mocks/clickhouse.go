package mocks

import (
	"context"
	"sync"

	"github.com/Billy-Davies-2/glitch-pits/internal/clickhouse"
	"github.com/Billy-Davies-2/glitch-pits/internal/logger"
	"github.com/Billy-Davies-2/glitch-pits/internal/models"
)

type rateKey struct {
	mode   models.GameMode
	winner string
}

// MockClickHouseClient aggregates win rates in memory for local development
type MockClickHouseClient struct {
	mu     sync.Mutex
	counts map[rateKey]int
}

// NewMockClickHouseClient creates a mock ClickHouse client
func NewMockClickHouseClient() *MockClickHouseClient {
	logger.Info("Using MOCK ClickHouse client for local development")
	return &MockClickHouseClient{counts: make(map[rateKey]int)}
}

func (m *MockClickHouseClient) SaveRound(_ context.Context, rec models.RoundRecord) error {
	winner := clickhouse.WinnerPlayer
	if rec.WinnerID == models.SentinelID {
		winner = clickhouse.WinnerHouse
	}

	m.mu.Lock()
	m.counts[rateKey{rec.Mode, winner}]++
	m.mu.Unlock()

	logger.Debug("Mock ClickHouse: recorded round", "seed", rec.SeedID, "mode", rec.Mode, "winner", winner, "houseTake", rec.HouseTake())
	return nil
}

func (m *MockClickHouseClient) WinRates(context.Context) ([]models.WinRate, error) {
	m.mu.Lock()
	rates := make([]models.WinRate, 0, len(m.counts))
	for k, n := range m.counts {
		rates = append(rates, models.WinRate{Mode: k.mode, Winner: k.winner, Rounds: n})
	}
	m.mu.Unlock()
	return clickhouse.ComputeShares(rates), nil
}

func (m *MockClickHouseClient) Ping(context.Context) error { return nil }

// Close is a no-op for mock client
func (m *MockClickHouseClient) Close() error {
	return nil
}
