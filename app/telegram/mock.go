package telegram

import (
	"context"
	"log/slog"
	"sync"
)

// Mock is a stand-in transport for local runs without a bot token. It logs
// every message instead of publishing it.
type Mock struct {
	mu     sync.Mutex
	nextID int64
}

var _ Transport = (*Mock)(nil)

func NewMock() *Mock {
	return &Mock{nextID: 1}
}

func (m *Mock) Create(_ context.Context, text string) (int64, error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.mu.Unlock()

	slog.Info("Mock transport: message created", "message_id", id, "length", len(text))
	return id, nil
}

func (m *Mock) Edit(_ context.Context, nativeID int64, text string) error {
	slog.Info("Mock transport: message edited", "message_id", nativeID, "length", len(text))
	return nil
}

func (m *Mock) SendDigest(ctx context.Context, text string) (int64, error) {
	id, _ := m.Create(ctx, text)
	slog.Info("Mock transport: digest pinned", "message_id", id)
	return id, nil
}

func (m *Mock) CollectReactions(_ context.Context) (map[int64]int, error) {
	return map[int64]int{}, nil
}
