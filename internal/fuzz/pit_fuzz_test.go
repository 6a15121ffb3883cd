package fuzz

import (
	"context"
	"testing"
)

// FuzzPitEntries drives entries and bets with arbitrary amounts and checks
// that credits are neither created nor lost before the battle, and that no
// balance goes negative after it.
func FuzzPitEntries(f *testing.F) {
	// Seed corpus
	f.Add(100, 200, 100, "a")
	f.Add(0, -5, 1, "b")
	f.Add(4000, 4001, 4000, "c")
	f.Add(1<<31, 50, -1<<31, "sentinel")
	f.Add(50, 0, 50, "")

	f.Fuzz(func(t *testing.T, stakeA, stakeB, bet int, target string) {
		w := newWorld(t)
		m := w.machine
		ctx := context.Background()

		ids := []string{"a", "b", "c"}
		for _, id := range ids {
			if _, err := m.Forge(id, id, "", ""); err != nil {
				t.Fatal(err)
			}
		}
		total := 0
		for _, id := range ids {
			c, _ := m.Character(id)
			total += c.Balance
		}

		_ = m.Open("a")
		_ = m.Enter("a", stakeA)
		_ = m.Enter("b", stakeB)
		_ = m.Bet("c", target, bet)

		s := m.Snapshot()
		held := s.PrizePool + s.SpectatorPool
		stakes := 0
		for _, p := range s.Participants {
			if !p.Synthetic {
				stakes += p.BetAmount
			}
		}
		if stakes != s.PrizePool {
			t.Fatalf("prize pool %d, stakes %d", s.PrizePool, stakes)
		}
		for _, id := range ids {
			c, _ := m.Character(id)
			if c.Balance < 0 {
				t.Fatalf("%s balance %d", id, c.Balance)
			}
			held += c.Balance
		}
		if held != total {
			t.Fatalf("credits before battle = %d, want %d", held, total)
		}

		if err := m.Run(ctx, "a"); err != nil {
			return
		}
		for i := 0; i < 200 && !m.Tick(ctx); i++ {
		}
		for _, id := range ids {
			c, _ := m.Character(id)
			if c.Balance < 0 {
				t.Fatalf("%s balance %d after settlement", id, c.Balance)
			}
		}
	})
}
