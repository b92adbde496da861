package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/valuebot/internal/domain"
)

type captureSender struct {
	mu       sync.Mutex
	titles   []string
	messages []string
}

func (c *captureSender) Send(ctx context.Context, title, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
	c.messages = append(c.messages, message)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.titles)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAnnounceDelivers(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	n.Announce(context.Background(), domain.AuditBetDispatched, map[string]any{
		"key":   "football|ev1|total|ft||over|2.5",
		"stake": 15.0,
	})

	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, "Bet dispatched", sender.titles[0])
	assert.Contains(t, sender.messages[0], "stake: 15.00")
	assert.Contains(t, sender.messages[0], "key: football|ev1|total|ft||over|2.5")
}

func TestNotifyFiltersEvents(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, []string{domain.AuditBetDispatched}, testLogger())

	require.NoError(t, n.Notify(context.Background(), domain.AuditValueBetFound, "t", "m"))
	assert.Zero(t, sender.count(), "filtered event must not deliver")

	require.NoError(t, n.Notify(context.Background(), domain.AuditBetDispatched, "t", "m"))
	assert.Equal(t, 1, sender.count())
}
