package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hirojw/hirobot/internal/bus"
)

// Manager owns the active channels and routes outbound messages to them.
type Manager struct {
	bus    *bus.MessageBus
	mu     sync.Mutex
	byName map[string]Channel
	runCtx context.Context
}

func NewManager(msgBus *bus.MessageBus) *Manager {
	m := &Manager{
		bus:    msgBus,
		byName: make(map[string]Channel),
		runCtx: context.Background(),
	}
	msgBus.Subscribe("", m.dispatch)
	return m
}

// AddChannel creates a channel from config and registers it under its name.
func (m *Manager) AddChannel(name string, cfgJSON json.RawMessage) error {
	factory, ok := GetFactory(name)
	if !ok {
		return fmt.Errorf("no factory registered for channel %q", name)
	}
	ch, err := factory(cfgJSON, m.bus)
	if err != nil {
		return fmt.Errorf("failed to create channel %q: %w", name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byName[ch.Name()]; dup {
		return fmt.Errorf("channel %q already added", ch.Name())
	}
	m.byName[ch.Name()] = ch
	return nil
}

// StartAll starts every channel. ctx also scopes all subsequent sends, so
// cancelling it releases anything blocked in a Send.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	m.runCtx = ctx
	chs := m.snapshot()
	m.mu.Unlock()

	for _, ch := range chs {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("failed to start channel %q: %w", ch.Name(), err)
		}
	}
	return nil
}

// StopAll stops every channel, returning the first error.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	chs := m.snapshot()
	m.mu.Unlock()

	var firstErr error
	for _, ch := range chs {
		if err := ch.Stop(); err != nil {
			slog.Error("failed to stop channel", "channel", ch.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// dispatch routes one outbound message to its channel. Send failures are
// logged, never retried.
func (m *Manager) dispatch(msg bus.OutboundMessage) {
	m.mu.Lock()
	ch := m.byName[msg.Channel]
	ctx := m.runCtx
	m.mu.Unlock()

	if ch == nil {
		slog.Warn("no channel for outbound message", "channel", msg.Channel)
		return
	}
	if err := ch.Send(ctx, msg); err != nil {
		slog.Error("failed to send message", "channel", msg.Channel, "chatID", msg.ChatID, "error", err)
	}
}

// snapshot copies the channel set; callers must hold mu.
func (m *Manager) snapshot() []Channel {
	chs := make([]Channel, 0, len(m.byName))
	for _, ch := range m.byName {
		chs = append(chs, ch)
	}
	return chs
}
