package schedule

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hirojw/hirobot/internal/bus"
)

// collector gathers outbound messages dispatched on the bus.
type collector struct {
	mu   sync.Mutex
	msgs []bus.OutboundMessage
}

func (c *collector) add(msg bus.OutboundMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) snapshot() []bus.OutboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bus.OutboundMessage, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *collector) waitFor(t *testing.T, n int) []bus.OutboundMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if msgs := c.snapshot(); len(msgs) >= n {
			return msgs
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages, have %d", n, len(c.snapshot()))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func newTestPoller(t *testing.T, blob Blob, now time.Time) (*Poller, *collector, func()) {
	t.Helper()
	msgBus := bus.NewMessageBus(32)
	col := &collector{}
	msgBus.Subscribe("telegram", col.add)

	ctx, cancel := context.WithCancel(context.Background())
	go msgBus.DispatchOutbound(ctx)

	p := NewPoller(PollerConfig{
		Registry:    NewRegistry(blob),
		Bus:         msgBus,
		Channel:     "telegram",
		AdminChatID: "111",
		Clock:       func() time.Time { return now },
	})
	return p, col, cancel
}

// The concrete scenario: one entry at 10:00:00+08:00, polled at 10:00:01.
func TestTickDeliversDueEntryOnce(t *testing.T) {
	scheduled := time.Date(2025, 1, 1, 10, 0, 0, 0, sgt)
	now := time.Date(2025, 1, 1, 10, 0, 1, 0, sgt)
	e := testEntry(t, "hi", scheduled)
	blob := &memBlob{entries: []Entry{e}}

	p, col, cancel := newTestPoller(t, blob, now)
	defer cancel()

	p.Tick(context.Background())

	msgs := col.waitFor(t, 2)
	if len(msgs) != 2 {
		t.Fatalf("expected exactly 2 sends, got %d", len(msgs))
	}
	if msgs[0].ChatID != "222" || msgs[0].Content != "hi" {
		t.Errorf("recipient delivery wrong: %+v", msgs[0])
	}
	if msgs[1].ChatID != "111" {
		t.Errorf("confirmation should go to the admin: %+v", msgs[1])
	}
	if !strings.Contains(msgs[1].Content, "hi") {
		t.Errorf("confirmation missing message text: %q", msgs[1].Content)
	}
	if !strings.Contains(msgs[1].Content, RenderTime(scheduled)) {
		t.Errorf("confirmation missing rendered time: %q", msgs[1].Content)
	}

	if len(blob.entries) != 0 {
		t.Errorf("store should be empty after delivery, has %d", len(blob.entries))
	}

	// A second tick must not deliver again.
	p.Tick(context.Background())
	time.Sleep(50 * time.Millisecond)
	if msgs := col.snapshot(); len(msgs) != 2 {
		t.Errorf("entry delivered twice: %d sends", len(msgs))
	}
}

func TestTickLeavesFutureEntryAlone(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, sgt)
	e := testEntry(t, "later", now.Add(time.Hour))
	blob := &memBlob{entries: []Entry{e}}

	p, col, cancel := newTestPoller(t, blob, now)
	defer cancel()

	p.Tick(context.Background())
	time.Sleep(50 * time.Millisecond)

	if msgs := col.snapshot(); len(msgs) != 0 {
		t.Errorf("nothing should be sent, got %d", len(msgs))
	}
	if len(blob.entries) != 1 || blob.entries[0].ID != e.ID {
		t.Errorf("store changed: %+v", blob.entries)
	}
}

func TestTickDeliversInOrder(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, sgt)
	first := testEntry(t, "first", now.Add(-2*time.Minute))
	second := testEntry(t, "second", now.Add(-time.Minute))
	blob := &memBlob{entries: []Entry{first, second}}

	p, col, cancel := newTestPoller(t, blob, now)
	defer cancel()

	p.Tick(context.Background())

	msgs := col.waitFor(t, 4)
	var recipientSends []string
	for _, m := range msgs {
		if m.ChatID == "222" {
			recipientSends = append(recipientSends, m.Content)
		}
	}
	if len(recipientSends) != 2 || recipientSends[0] != "first" || recipientSends[1] != "second" {
		t.Errorf("deliveries out of order: %v", recipientSends)
	}
}

func TestTickStoreFailureDeliversNothing(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, sgt)
	blob := &memBlob{entries: []Entry{testEntry(t, "due", now.Add(-time.Minute))}, failSave: true}

	p, col, cancel := newTestPoller(t, blob, now)
	defer cancel()

	p.Tick(context.Background())
	time.Sleep(50 * time.Millisecond)

	if msgs := col.snapshot(); len(msgs) != 0 {
		t.Errorf("nothing should be delivered if the claim cannot be persisted, got %d", len(msgs))
	}
}

func TestStartStop(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, sgt)
	p, _, cancel := newTestPoller(t, &memBlob{}, now)
	defer cancel()

	p.Start(context.Background())
	p.Start(context.Background()) // second Start is a no-op
	p.Stop()
	p.Stop() // idempotent
}
