package dal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Billy-Davies-2/glitch-pits/internal/models"
)

// roundColumns lists the archive columns in the order every SQL backend uses.
const roundColumns = `seed_id, mode, winner_id, winner_name, prize_pool, spectator_pool,
	net_prize_pool, net_spectator_pool, participants, bets, payouts, events, finished_at`

// roundRow is a record flattened for SQL: nested slices become JSON documents
// and the finish time becomes unix milliseconds.
type roundRow struct {
	SeedID           string
	Mode             string
	WinnerID         string
	WinnerName       string
	PrizePool        int
	SpectatorPool    int
	NetPrizePool     int
	NetSpectatorPool int
	Participants     []byte
	Bets             []byte
	Payouts          []byte
	Events           []byte
	FinishedAt       int64
}

type scanner interface {
	Scan(dest ...any) error
}

func encodeRound(rec models.RoundRecord) (roundRow, error) {
	row := roundRow{
		SeedID:           rec.SeedID,
		Mode:             string(rec.Mode),
		WinnerID:         rec.WinnerID,
		WinnerName:       rec.WinnerName,
		PrizePool:        rec.PrizePool,
		SpectatorPool:    rec.SpectatorPool,
		NetPrizePool:     rec.NetPrizePool,
		NetSpectatorPool: rec.NetSpectatorPool,
		FinishedAt:       rec.FinishedAt.UnixMilli(),
	}

	var err error
	if row.Participants, err = marshalList(rec.Participants); err != nil {
		return row, fmt.Errorf("encode participants: %w", err)
	}
	if row.Bets, err = marshalList(rec.Bets); err != nil {
		return row, fmt.Errorf("encode bets: %w", err)
	}
	if row.Payouts, err = marshalList(rec.Payouts); err != nil {
		return row, fmt.Errorf("encode payouts: %w", err)
	}
	if row.Events, err = marshalList(rec.Events); err != nil {
		return row, fmt.Errorf("encode events: %w", err)
	}
	return row, nil
}

// args returns the row as positional parameters matching roundColumns.
func (r roundRow) args() []any {
	return []any{
		r.SeedID, r.Mode, r.WinnerID, r.WinnerName, r.PrizePool, r.SpectatorPool,
		r.NetPrizePool, r.NetSpectatorPool,
		string(r.Participants), string(r.Bets), string(r.Payouts), string(r.Events),
		r.FinishedAt,
	}
}

func scanRound(s scanner) (models.RoundRecord, error) {
	var r roundRow
	err := s.Scan(&r.SeedID, &r.Mode, &r.WinnerID, &r.WinnerName, &r.PrizePool, &r.SpectatorPool,
		&r.NetPrizePool, &r.NetSpectatorPool, &r.Participants, &r.Bets, &r.Payouts, &r.Events, &r.FinishedAt)
	if err != nil {
		return models.RoundRecord{}, err
	}
	return r.decode()
}

func (r roundRow) decode() (models.RoundRecord, error) {
	rec := models.RoundRecord{
		SeedID:           r.SeedID,
		Mode:             models.GameMode(r.Mode),
		WinnerID:         r.WinnerID,
		WinnerName:       r.WinnerName,
		PrizePool:        r.PrizePool,
		SpectatorPool:    r.SpectatorPool,
		NetPrizePool:     r.NetPrizePool,
		NetSpectatorPool: r.NetSpectatorPool,
		FinishedAt:       time.UnixMilli(r.FinishedAt).UTC(),
	}
	if err := json.Unmarshal(r.Participants, &rec.Participants); err != nil {
		return rec, fmt.Errorf("decode participants of %s: %w", r.SeedID, err)
	}
	if err := json.Unmarshal(r.Bets, &rec.Bets); err != nil {
		return rec, fmt.Errorf("decode bets of %s: %w", r.SeedID, err)
	}
	if err := json.Unmarshal(r.Payouts, &rec.Payouts); err != nil {
		return rec, fmt.Errorf("decode payouts of %s: %w", r.SeedID, err)
	}
	if err := json.Unmarshal(r.Events, &rec.Events); err != nil {
		return rec, fmt.Errorf("decode events of %s: %w", r.SeedID, err)
	}
	return rec, nil
}

// marshalList encodes nil slices as [] so the JSON columns are never null.
func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}
