package dal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Billy-Davies-2/glitch-pits/internal/logger"
	"github.com/Billy-Davies-2/glitch-pits/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresDAL implements RoundDAL using PostgreSQL
type PostgresDAL struct {
	db *sql.DB
}

// NewPostgresDAL connects to PostgreSQL, retrying while the server becomes
// resolvable, and creates the schema.
func NewPostgresDAL(ctx context.Context, connString string) (*PostgresDAL, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	// CloudNativePG default max_connections is 100
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute) // recycle across failovers
	db.SetConnMaxIdleTime(1 * time.Minute)

	maxRetries := 5
	retryDelay := 5 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			break
		}

		logger.Warn("Postgres not ready", "attempt", i+1, "error", lastErr)
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				db.Close()
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	if lastErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres after %d retries: %w", maxRetries, lastErr)
	}

	dal := &PostgresDAL{db: db}
	if err := dal.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return dal, nil
}

func (p *PostgresDAL) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rounds (
		seed_id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		winner_id TEXT NOT NULL,
		winner_name TEXT NOT NULL,
		prize_pool INTEGER NOT NULL,
		spectator_pool INTEGER NOT NULL,
		net_prize_pool INTEGER NOT NULL,
		net_spectator_pool INTEGER NOT NULL,
		participants JSONB NOT NULL,
		bets JSONB NOT NULL DEFAULT '[]'::jsonb,
		payouts JSONB NOT NULL DEFAULT '[]'::jsonb,
		events JSONB NOT NULL,
		finished_at BIGINT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_rounds_finished_at ON rounds(finished_at DESC);
	CREATE INDEX IF NOT EXISTS idx_rounds_winner_id ON rounds(winner_id);
	`

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create rounds schema: %w", err)
	}
	return nil
}

func (p *PostgresDAL) SaveRound(ctx context.Context, rec models.RoundRecord) error {
	row, err := encodeRound(rec)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO rounds (`+roundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, row.args()...)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return ErrDuplicateRound
	}
	if err != nil {
		return fmt.Errorf("insert round %s: %w", rec.SeedID, err)
	}
	return nil
}

func (p *PostgresDAL) GetRound(ctx context.Context, seedID string) (models.RoundRecord, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE seed_id = $1`, seedID)
	rec, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNotFound
	}
	return rec, err
}

func (p *PostgresDAL) ListRounds(ctx context.Context, limit int) ([]models.RoundRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+roundColumns+`
		FROM rounds
		ORDER BY finished_at DESC, created_at DESC
		LIMIT $1
	`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.RoundRecord{}
	for rows.Next() {
		rec, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *PostgresDAL) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDAL) Close() error {
	return p.db.Close()
}
