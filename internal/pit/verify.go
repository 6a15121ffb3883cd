package pit

import (
	"fmt"

	"github.com/Billy-Davies-2/glitch-pits/internal/models"
	"github.com/Billy-Davies-2/glitch-pits/internal/rumble"
)

// Verification is the outcome of replaying an archived round.
type Verification struct {
	SeedID           string `json:"seedId"`
	Valid            bool   `json:"valid"`
	RecordedWinnerID string `json:"recordedWinnerId"`
	ComputedWinnerID string `json:"computedWinnerId"`
	Events           int    `json:"events"`
	Mismatch         string `json:"mismatch,omitempty"`
}

// Verify reruns the engine on the archived field and seed and checks that it
// reproduces the recorded winner and every recorded event.
func Verify(engine *rumble.Engine, rec models.RoundRecord) (Verification, error) {
	v := Verification{SeedID: rec.SeedID, RecordedWinnerID: rec.WinnerID}

	res, err := engine.Run(rec.Participants, rec.SeedID)
	if err != nil {
		return v, fmt.Errorf("replay %s: %w", rec.SeedID, err)
	}
	v.ComputedWinnerID = res.Winner.ID
	v.Events = len(res.Events)

	switch {
	case res.Winner.ID != rec.WinnerID:
		v.Mismatch = fmt.Sprintf("winner %s, recorded %s", res.Winner.ID, rec.WinnerID)
	case len(res.Events) != len(rec.Events):
		v.Mismatch = fmt.Sprintf("%d events, recorded %d", len(res.Events), len(rec.Events))
	default:
		for i := range res.Events {
			if res.Events[i] != rec.Events[i] {
				v.Mismatch = fmt.Sprintf("event %d differs", i)
				break
			}
		}
	}
	v.Valid = v.Mismatch == ""
	return v, nil
}
