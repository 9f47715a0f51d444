package store

import (
	"context"
	"errors"

	"github.com/nulzo/content-gateway/internal/store/model"
)

var ErrNotFound = errors.New("record not found")

// Repository is the main contract for the data layer.
type Repository interface {
	Generations() GenerationRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type GenerationRepository interface {
	// Log stores one handled generation.
	Log(ctx context.Context, log *model.GenerationLog) error
	// GetByID returns a single generation log, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.GenerationLog, error)
	// GetDailyStats returns aggregated stats grouped by day, newest first.
	GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error)
}
