package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hirojw/hirobot/internal/bus"
)

// Poller scans the registry on a fixed interval and delivers due entries
// to their recipient, confirming each delivery to the admin.
type Poller struct {
	registry     *Registry
	bus          *bus.MessageBus
	channel      string
	adminChatID  string
	interval     time.Duration
	initialDelay time.Duration
	confirmPause time.Duration
	clock        func() time.Time
	mu           sync.Mutex
	stopCh       chan struct{}
	running      bool
}

type PollerConfig struct {
	Registry     *Registry
	Bus          *bus.MessageBus
	Channel      string
	AdminChatID  string
	Interval     time.Duration
	InitialDelay time.Duration
	ConfirmPause time.Duration
	Clock        func() time.Time // defaults to time.Now
}

func NewPoller(cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Poller{
		registry:     cfg.Registry,
		bus:          cfg.Bus,
		channel:      cfg.Channel,
		adminChatID:  cfg.AdminChatID,
		interval:     interval,
		initialDelay: cfg.InitialDelay,
		confirmPause: cfg.ConfirmPause,
		clock:        clock,
		stopCh:       make(chan struct{}),
	}
}

// Start launches the poll loop: one tick after the initial delay, then one
// per interval. Returns immediately; the loop runs until Stop or ctx.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	go func() {
		select {
		case <-time.After(p.initialDelay):
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}

		p.Tick(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Tick(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the poll loop. A tick that has already claimed entries keeps
// delivering them; entries claimed but undelivered at process exit are lost.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stopCh)
}

// Tick runs one scan: claim due entries under the store lock, then deliver
// each and confirm to the admin with the lock released. Send failures are
// logged and never re-queued.
func (p *Poller) Tick(ctx context.Context) {
	now := p.clock()
	due, err := p.registry.TakeDue(ctx, now)
	if err != nil {
		slog.Error("schedule poll failed", "error", err)
		return
	}

	for _, entry := range due {
		slog.Info("delivering scheduled message", "id", entry.ID, "scheduled", entry.Time)
		p.bus.PublishOutbound(bus.OutboundMessage{
			Channel: p.channel,
			ChatID:  entry.RecipientID,
			Content: entry.Message,
			Type:    "text",
		})

		// Short breather before the admin confirmation, so the two sends
		// don't land in the same instant. The store lock is not held here.
		select {
		case <-time.After(p.confirmPause):
		case <-ctx.Done():
			return
		}

		p.bus.PublishOutbound(bus.OutboundMessage{
			Channel: p.channel,
			ChatID:  p.adminChatID,
			Content: fmt.Sprintf("✅ Delivered scheduled message (%s):\n%s", RenderTime(entry.Time), entry.Message),
			Type:    "text",
		})
	}
}
