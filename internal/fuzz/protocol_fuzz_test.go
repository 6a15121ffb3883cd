package fuzz

import (
	"testing"

	"github.com/Billy-Davies-2/glitch-pits/internal/gateway"
)

// FuzzDecodeEnvelope fuzzes inbound WebSocket frames
func FuzzDecodeEnvelope(f *testing.F) {
	// Seed corpus
	f.Add([]byte(`{"t":"forge","p":{"name":"Alpha","clothes":"hoodie","weapon":"axe"}}`))
	f.Add([]byte(`{"t":"enterPit","p":{"amount":500}}`))
	f.Add([]byte(`{"t":"betOnWarrior","p":{"warriorId":"abc","amount":-1}}`))
	f.Add([]byte(`{"t":"runRumble"}`))
	f.Add([]byte(`{"t":"upgrade","p":{"stat":"hp","cost":1e99}}`))
	f.Add([]byte(`{"t":1}`))
	f.Add([]byte(`null`))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, frame []byte) {
		env, err := gateway.DecodeEnvelope(frame)
		if err != nil {
			return
		}

		// Should not panic on any payload shape
		_, _ = gateway.DecodePayload[gateway.ForgeRequest](env)
		_, _ = gateway.DecodePayload[gateway.EnterPitRequest](env)
		_, _ = gateway.DecodePayload[gateway.BetRequest](env)
		_, _ = gateway.DecodePayload[gateway.UpgradeRequest](env)
		_, _ = gateway.DecodePayload[gateway.Empty](env)

		// an accepted envelope survives a round trip
		b, err := gateway.Encode(env.T, env.P)
		if err != nil {
			t.Fatalf("Encode(%q): %v", env.T, err)
		}
		again, err := gateway.DecodeEnvelope(b)
		if err != nil {
			t.Fatalf("re-decode %s: %v", b, err)
		}
		if again.T != env.T {
			t.Fatalf("type changed: %q -> %q", env.T, again.T)
		}
	})
}
