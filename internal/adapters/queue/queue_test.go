package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *recordingSender) Send(_ context.Context, to, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to)
	return nil
}

func (s *recordingSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func testConfig(t *testing.T) Config {
	return Config{
		DBPath:          filepath.Join(t.TempDir(), "tasks", "tasks.db"),
		Workers:         1,
		ReleaseAfter:    time.Minute,
		CleanupInterval: time.Hour,
	}
}

func TestMailProcessor(t *testing.T) {
	sender := &recordingSender{}
	process := MailProcessor(sender, zap.NewNop())

	require.NoError(t, process(context.Background(), MailTask{To: "alice@example.com", Subject: "s", Body: "b"}))
	assert.Equal(t, []string{"alice@example.com"}, sender.recipients())

	sender.err = errors.New("relay down")
	err := process(context.Background(), MailTask{To: "bob@example.com"})
	assert.ErrorIs(t, err, sender.err)

	err = MailProcessor(nil, zap.NewNop())(context.Background(), MailTask{To: "bob@example.com"})
	assert.Error(t, err)
}

func TestMailTask_Config(t *testing.T) {
	cfg := MailTask{}.Config()

	assert.Equal(t, "bulk_mail", cfg.Name)
	assert.EqualValues(t, 3, cfg.MaxAttempts)
	require.NotNil(t, cfg.Retention)
	assert.True(t, cfg.Retention.OnlyFailed)
}

func TestClient_DeliversQueuedMail(t *testing.T) {
	sender := &recordingSender{}

	client, err := NewClient(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	client.Register(NewMailQueue(sender, zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)

	enqueuer := NewMailEnqueuer(client)
	require.NoError(t, enqueuer.EnqueueMail(ctx, "alice@example.com", "Hello", "<p>hi</p>"))
	require.NoError(t, enqueuer.EnqueueMail(ctx, "bob@example.com", "Hello", "<p>hi</p>"))

	require.Eventually(t, func() bool {
		return len(sender.recipients()) == 2
	}, 5*time.Second, 20*time.Millisecond)
	assert.ElementsMatch(t, []string{"alice@example.com", "bob@example.com"}, sender.recipients())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.True(t, client.Stop(stopCtx))

	// stopping twice is harmless
	assert.True(t, client.Stop(stopCtx))
}
