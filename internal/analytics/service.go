package analytics

import (
	"context"
	"errors"

	"github.com/nulzo/content-gateway/internal/store"
	"github.com/nulzo/content-gateway/internal/store/model"
)

var ErrNotFound = errors.New("generation not found")

type Service interface {
	GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error)
	GetGeneration(ctx context.Context, id string) (*model.GenerationLog, error)
}

type service struct {
	repo store.Repository
}

func NewService(repo store.Repository) Service {
	return &service{
		repo: repo,
	}
}

func (s *service) GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error) {
	if days <= 0 {
		days = 7 // default to last week
	}
	return s.repo.Generations().GetDailyStats(ctx, days)
}

func (s *service) GetGeneration(ctx context.Context, id string) (*model.GenerationLog, error) {
	log, err := s.repo.Generations().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return log, err
}
