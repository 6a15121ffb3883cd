package clickhouse

import (
	"context"
	"fmt"
	"sort"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Billy-Davies-2/glitch-pits/internal/models"
)

const (
	WinnerHouse  = "house"
	WinnerPlayer = "player"
)

// Client stores one row per finished round and aggregates win rates.
type Client struct {
	conn driver.Conn
}

// NewClient connects to ClickHouse and creates the rounds table.
func NewClient(ctx context.Context, addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	c := &Client{conn: conn}
	if err := c.initSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) initSchema(ctx context.Context) error {
	err := c.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pit_rounds (
			seed_id        String,
			mode           LowCardinality(String),
			winner_id      String,
			house_won      UInt8,
			participants   UInt8,
			prize_pool     Int64,
			spectator_pool Int64,
			house_take     Int64,
			events         UInt16,
			finished_at    DateTime64(3)
		)
		ENGINE = MergeTree
		ORDER BY (finished_at, seed_id)
	`)
	if err != nil {
		return fmt.Errorf("failed to create pit_rounds: %w", err)
	}
	return nil
}

// SaveRound appends the round to pit_rounds.
func (c *Client) SaveRound(ctx context.Context, rec models.RoundRecord) error {
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO pit_rounds")
	if err != nil {
		return fmt.Errorf("prepare pit_rounds batch: %w", err)
	}

	houseWon := uint8(0)
	if rec.WinnerID == models.SentinelID {
		houseWon = 1
	}
	err = batch.Append(
		rec.SeedID,
		string(rec.Mode),
		rec.WinnerID,
		houseWon,
		uint8(len(rec.Participants)),
		int64(rec.PrizePool),
		int64(rec.SpectatorPool),
		int64(rec.HouseTake()),
		uint16(len(rec.Events)),
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("append round %s: %w", rec.SeedID, err)
	}
	return batch.Send()
}

// WinRates returns, per game mode, how often the house and the players won.
func (c *Client) WinRates(ctx context.Context) ([]models.WinRate, error) {
	rows, err := c.conn.Query(ctx, `
		SELECT
			mode,
			if(house_won = 1, 'house', 'player') AS winner,
			count() AS rounds
		FROM pit_rounds
		GROUP BY mode, winner
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []models.WinRate
	for rows.Next() {
		var (
			mode, winner string
			rounds       uint64
		)
		if err := rows.Scan(&mode, &winner, &rounds); err != nil {
			return nil, err
		}
		rates = append(rates, models.WinRate{Mode: models.GameMode(mode), Winner: winner, Rounds: int(rounds)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ComputeShares(rates), nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ComputeShares fills each rate's share of its mode's rounds and orders the
// result by mode, then winner.
func ComputeShares(rates []models.WinRate) []models.WinRate {
	totals := make(map[models.GameMode]int)
	for _, r := range rates {
		totals[r.Mode] += r.Rounds
	}

	out := make([]models.WinRate, len(rates))
	for i, r := range rates {
		if t := totals[r.Mode]; t > 0 {
			r.Share = float64(r.Rounds) / float64(t)
		}
		out[i] = r
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mode != out[j].Mode {
			return out[i].Mode < out[j].Mode
		}
		return out[i].Winner < out[j].Winner
	})
	return out
}
