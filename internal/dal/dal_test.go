package dal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/Billy-Davies-2/glitch-pits/internal/models"
)

func sampleRound(seed string, finished time.Time) models.RoundRecord {
	return models.RoundRecord{
		SeedID: seed,
		Mode:   models.ModeRumble,
		Participants: []models.Participant{
			{ID: "p1", Name: "Alpha", BetAmount: 100},
			{ID: "p2", Name: "Beta", BetAmount: 200},
		},
		WinnerID:         "p1",
		WinnerName:       "Alpha",
		PrizePool:        300,
		SpectatorPool:    100,
		NetPrizePool:     285,
		NetSpectatorPool: 95,
		Bets:             []models.SpectatorBet{{BettorID: "s1", BettorName: "Gamma", TargetID: "p1", Amount: 100, Multiplier: 2}},
		Payouts: []models.PayoutLine{
			{RecipientID: "p1", Kind: "winner", Amount: 285},
			{RecipientID: "s1", Kind: "spectator", Amount: 95},
		},
		Events: []models.RumbleEvent{
			{Type: models.EventKill, KillerID: "p1", Killer: "Alpha", VictimID: "p2", Victim: "Beta", Message: "Alpha deleted Beta", Timestamp: "00:00"},
		},
		FinishedAt: finished.UTC().Truncate(time.Millisecond),
	}
}

// exerciseRoundDAL runs the behaviour every archive backend shares.
func exerciseRoundDAL(t *testing.T, d RoundDAL) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := d.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	rec := sampleRound("rumble-1", base)
	if err := d.SaveRound(ctx, rec); err != nil {
		t.Fatalf("SaveRound: %v", err)
	}
	if err := d.SaveRound(ctx, rec); !errors.Is(err, ErrDuplicateRound) {
		t.Fatalf("second SaveRound: %v, want ErrDuplicateRound", err)
	}

	got, err := d.GetRound(ctx, "rumble-1")
	if err != nil {
		t.Fatalf("GetRound: %v", err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("GetRound mismatch:\n got %+v\nwant %+v", got, rec)
	}

	if _, err := d.GetRound(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRound(missing): %v", err)
	}

	duel := sampleRound("rumble-2", base.Add(time.Minute))
	duel.Mode = models.ModeDuel
	duel.Bets = nil
	duel.Payouts = nil
	if err := d.SaveRound(ctx, duel); err != nil {
		t.Fatalf("SaveRound(duel): %v", err)
	}
	got, err = d.GetRound(ctx, "rumble-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Bets) != 0 || len(got.Payouts) != 0 || got.Mode != models.ModeDuel {
		t.Fatalf("duel record = %+v", got)
	}

	for i := 3; i <= 5; i++ {
		if err := d.SaveRound(ctx, sampleRound(fmt.Sprintf("rumble-%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	list, err := d.ListRounds(ctx, 3)
	if err != nil {
		t.Fatalf("ListRounds: %v", err)
	}
	var seeds []string
	for _, r := range list {
		seeds = append(seeds, r.SeedID)
	}
	if want := []string{"rumble-5", "rumble-4", "rumble-3"}; !reflect.DeepEqual(seeds, want) {
		t.Fatalf("ListRounds(3) = %v, want %v", seeds, want)
	}

	all, err := d.ListRounds(ctx, 0)
	if err != nil || len(all) != 5 {
		t.Fatalf("ListRounds(0) = %d records, %v", len(all), err)
	}
}

func TestMemoryDAL(t *testing.T) {
	exerciseRoundDAL(t, NewMemoryDAL())
}

func TestMemoryDALReturnsCopies(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDAL()
	rec := sampleRound("r", time.Now())
	if err := d.SaveRound(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Events[0].Message = "rewritten"

	got, _ := d.GetRound(ctx, "r")
	if got.Events[0].Message != "Alpha deleted Beta" {
		t.Fatal("archive shares memory with the caller")
	}
}

func TestSQLiteDAL(t *testing.T) {
	d, err := NewSQLiteDAL(filepath.Join(t.TempDir(), "rounds.sqlite"))
	if err != nil {
		t.Fatalf("NewSQLiteDAL: %v", err)
	}
	defer d.Close()
	exerciseRoundDAL(t, d)
}

func TestSQLiteDALReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rounds.sqlite")
	d, err := NewSQLiteDAL(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SaveRound(context.Background(), sampleRound("kept", time.Now())); err != nil {
		t.Fatal(err)
	}
	d.Close()

	d, err = NewSQLiteDAL(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()
	if _, err := d.GetRound(context.Background(), "kept"); err != nil {
		t.Fatalf("round lost across reopen: %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{-1, DefaultListLimit},
		{0, DefaultListLimit},
		{7, 7},
		{MaxListLimit, MaxListLimit},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDecodeRejectsCorruptColumns(t *testing.T) {
	row, err := encodeRound(sampleRound("bad", time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	row.Events = []byte("{not json")
	if _, err := row.decode(); err == nil {
		t.Fatal("expected decode error")
	}
}
