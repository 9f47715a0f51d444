package gateway

import (
	"context"
	"sync"

	"github.com/nulzo/content-gateway/internal/llm"
	"github.com/nulzo/content-gateway/internal/store/model"
	"github.com/stretchr/testify/mock"
)

type mockCompleter struct {
	mock.Mock
	name      string
	serverKey bool
}

func (m *mockCompleter) Name() string                 { return m.name }
func (m *mockCompleter) Type() string                 { return "mock" }
func (m *mockCompleter) HasServerKey() bool           { return m.serverKey }
func (m *mockCompleter) Health(context.Context) error { return nil }

func (m *mockCompleter) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.Completion, error) {
	args := m.Called(ctx, req)
	c, _ := args.Get(0).(*llm.Completion)
	return c, args.Error(1)
}

type mockImager struct {
	mock.Mock
	name      string
	serverKey bool
}

func (m *mockImager) Name() string                 { return m.name }
func (m *mockImager) Type() string                 { return "mock-image" }
func (m *mockImager) HasServerKey() bool           { return m.serverKey }
func (m *mockImager) Health(context.Context) error { return nil }

func (m *mockImager) GenerateImage(ctx context.Context, req *llm.ImageRequest) (*llm.Image, error) {
	args := m.Called(ctx, req)
	img, _ := args.Get(0).(*llm.Image)
	return img, args.Error(1)
}

// recordingIngestor keeps every log synchronously.
type recordingIngestor struct {
	mu   sync.Mutex
	logs []*model.GenerationLog
}

func (r *recordingIngestor) Log(l *model.GenerationLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
}
func (r *recordingIngestor) Start(context.Context) {}
func (r *recordingIngestor) Stop()                 {}

func (r *recordingIngestor) last() *model.GenerationLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.logs) == 0 {
		return nil
	}
	return r.logs[len(r.logs)-1]
}
