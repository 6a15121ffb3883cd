package dal

import (
	"context"
	"errors"

	"github.com/Billy-Davies-2/glitch-pits/internal/models"
)

var (
	ErrNotFound       = errors.New("round not found")
	ErrDuplicateRound = errors.New("round already archived")
)

// RoundDAL archives finished rounds. A record is written once and never updated.
type RoundDAL interface {
	SaveRound(ctx context.Context, rec models.RoundRecord) error
	GetRound(ctx context.Context, seedID string) (models.RoundRecord, error)
	// ListRounds returns the most recently finished rounds first.
	ListRounds(ctx context.Context, limit int) ([]models.RoundRecord, error)
	Ping(ctx context.Context) error
	Close() error
}
