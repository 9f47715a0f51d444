package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nulzo/content-gateway/internal/store"
	"github.com/nulzo/content-gateway/internal/store/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRepo(t *testing.T) store.Repository {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	repo, err := NewSQLiteStorage(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestGenerations_LogAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	in := &model.GenerationLog{
		ID:              "gen-1",
		Route:           "chat",
		ProviderID:      "together",
		Model:           "togethercomputer/llama-2-70b-chat",
		Attempts:        2,
		FellBack:        true,
		FailedProviders: "groq",
		StatusCode:      200,
		LatencyMS:       812,
		PromptChars:     14,
		OutputChars:     320,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Generations().Log(ctx, in))

	out, err := repo.Generations().GetByID(ctx, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, in.Route, out.Route)
	assert.Equal(t, in.ProviderID, out.ProviderID)
	assert.True(t, out.FellBack)
	assert.Equal(t, []string{"groq"}, out.Failed())
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
}

func TestGenerations_GetByID_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Generations().GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGenerations_DailyStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	logs := []*model.GenerationLog{
		{ID: "a", Route: "chat", ProviderID: "groq", Attempts: 1, StatusCode: 200, LatencyMS: 100, CreatedAt: now},
		{ID: "b", Route: "chat", ProviderID: "together", Attempts: 2, FellBack: true, FailedProviders: "groq", StatusCode: 200, LatencyMS: 300, CreatedAt: now},
		{ID: "c", Route: "content", Attempts: 2, FellBack: true, FailedProviders: "groq,together", StatusCode: 500, LatencyMS: 200, CreatedAt: now},
		{ID: "old", Route: "chat", ProviderID: "groq", Attempts: 1, StatusCode: 200, LatencyMS: 50, CreatedAt: now.AddDate(0, 0, -30)},
	}
	for _, l := range logs {
		require.NoError(t, repo.Generations().Log(ctx, l))
	}

	stats, err := repo.Generations().GetDailyStats(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	day := stats[0]
	assert.Equal(t, now.Format("2006-01-02"), day.Date)
	assert.Equal(t, 3, day.TotalRequests)
	assert.Equal(t, 1, day.Failed)
	assert.Equal(t, 1, day.FallbackServed)
	assert.InDelta(t, 200.0, day.AverageLatency, 0.001)
}

func TestWithTx_RollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(tx store.Repository) error {
		require.NoError(t, tx.Generations().Log(ctx, &model.GenerationLog{ID: "tx-1", Route: "chat", StatusCode: 200, CreatedAt: time.Now().UTC()}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.Generations().GetByID(ctx, "tx-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
