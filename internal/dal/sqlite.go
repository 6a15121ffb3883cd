package dal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/Billy-Davies-2/glitch-pits/internal/models"
)

// SQLiteDAL implements RoundDAL using SQLite
type SQLiteDAL struct {
	db *sql.DB
}

// NewSQLiteDAL opens (or creates) the archive at dbPath.
func NewSQLiteDAL(dbPath string) (*SQLiteDAL, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// a single writer avoids SQLITE_BUSY under concurrent archive calls
	db.SetMaxOpenConns(1)

	dal := &SQLiteDAL{db: db}
	if err := dal.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return dal, nil
}

func (s *SQLiteDAL) initSchema() error {
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
		participants TEXT NOT NULL,
		bets TEXT NOT NULL,
		payouts TEXT NOT NULL,
		events TEXT NOT NULL,
		finished_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rounds_finished_at ON rounds(finished_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create rounds schema: %w", err)
	}
	return nil
}

func (s *SQLiteDAL) SaveRound(ctx context.Context, rec models.RoundRecord) error {
	row, err := encodeRound(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rounds (`+roundColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.args()...)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return ErrDuplicateRound
	}
	if err != nil {
		return fmt.Errorf("insert round %s: %w", rec.SeedID, err)
	}
	return nil
}

func (s *SQLiteDAL) GetRound(ctx context.Context, seedID string) (models.RoundRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE seed_id = ?`, seedID)
	rec, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteDAL) ListRounds(ctx context.Context, limit int) ([]models.RoundRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roundColumns+`
		FROM rounds
		ORDER BY finished_at DESC, rowid DESC
		LIMIT ?
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

func (s *SQLiteDAL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDAL) Close() error {
	return s.db.Close()
}
