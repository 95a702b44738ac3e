package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hirojw/hirobot/internal/bus"
	"github.com/hirojw/hirobot/internal/persona"
	"github.com/hirojw/hirobot/internal/providers"
	"github.com/hirojw/hirobot/internal/schedule"
	"github.com/hirojw/hirobot/internal/session"
)

const defaultLogTail = 20

// Loop consumes inbound events and dispatches them: button presses to the
// schedule router, admin commands to their handlers, open edit sessions to
// the schedule session consumer, and everything else to the persona chat.
type Loop struct {
	bus         *bus.MessageBus
	provider    providers.Provider
	transcripts *session.Manager
	registry    *schedule.Registry
	editing     *schedule.Sessions
	router      *schedule.Router
	persona     *persona.Persona
	memory      *persona.MemoryStore

	channel       string
	adminChatID   string // doubles as the admin sender ID (direct chat)
	recipientChat string
	loc           *time.Location
	clock         func() time.Time

	model         string
	maxTokens     int
	temperature   float64
	historyWindow int
	chatTimeout   time.Duration

	mu          sync.Mutex
	recordAdmin bool
}

// LoopConfig holds all dependencies and settings for Loop.
type LoopConfig struct {
	Bus         *bus.MessageBus
	Provider    providers.Provider
	Transcripts *session.Manager
	Registry    *schedule.Registry
	Editing     *schedule.Sessions
	Router      *schedule.Router
	Persona     *persona.Persona
	Memory      *persona.MemoryStore

	Channel       string
	AdminChatID   string
	RecipientChat string
	Location      *time.Location
	Clock         func() time.Time

	Model         string
	MaxTokens     int
	Temperature   float64
	HistoryWindow int
	ChatTimeout   time.Duration

	RecordAdminTurns bool
}

func NewLoop(cfg LoopConfig) *Loop {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	chatTimeout := cfg.ChatTimeout
	if chatTimeout == 0 {
		chatTimeout = 60 * time.Second
	}
	historyWindow := cfg.HistoryWindow
	if historyWindow <= 0 {
		historyWindow = 30
	}
	return &Loop{
		bus:           cfg.Bus,
		provider:      cfg.Provider,
		transcripts:   cfg.Transcripts,
		registry:      cfg.Registry,
		editing:       cfg.Editing,
		router:        cfg.Router,
		persona:       cfg.Persona,
		memory:        cfg.Memory,
		channel:       cfg.Channel,
		adminChatID:   cfg.AdminChatID,
		recipientChat: cfg.RecipientChat,
		loc:           cfg.Location,
		clock:         clock,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		historyWindow: historyWindow,
		chatTimeout:   chatTimeout,
		recordAdmin:   cfg.RecordAdminTurns,
	}
}

// Run consumes inbound events until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		evt, err := l.bus.ConsumeInbound(ctx)
		if err != nil {
			return err
		}
		go l.Handle(ctx, evt)
	}
}

// Handle dispatches one inbound event.
func (l *Loop) Handle(ctx context.Context, evt bus.InboundEvent) {
	switch {
	case evt.IsCallback():
		l.router.HandleCallback(ctx, evt)
	case strings.HasPrefix(evt.Content, "/"):
		l.handleCommand(ctx, evt)
	default:
		l.handleText(ctx, evt)
	}
}

func (l *Loop) handleText(ctx context.Context, evt bus.InboundEvent) {
	if evt.Content == "" {
		return
	}

	// An open edit session captures the admin's next plain message.
	if evt.SenderID == l.adminChatID {
		if handled, reply := l.editing.Consume(ctx, evt.SenderID, evt.Content); handled {
			l.reply(evt, reply, nil)
			return
		}
	}

	l.converse(ctx, evt)
}

func (l *Loop) handleCommand(ctx context.Context, evt bus.InboundEvent) {
	fields := strings.Fields(evt.Content)
	if len(fields) == 0 {
		return
	}
	// "/schedule@hirobot" style commands arrive in group chats
	name, _, _ := strings.Cut(fields[0], "@")

	if name == "/start" {
		l.reply(evt, fmt.Sprintf("Hehe hii 👋 I'm %s's bot! 💕", l.persona.Name), nil)
		return
	}

	if evt.SenderID != l.adminChatID {
		l.reply(evt, "🚫 Sorry, only my admin can use this command!", nil)
		return
	}

	switch name {
	case "/help":
		l.reply(evt, helpText, [][]bus.Button{
			{{Label: "🔄 Refresh", Data: "list:refresh"}},
			{{Label: "🗓 List Schedules", Data: "list:refresh"}},
		})
	case "/schedule":
		l.createSchedule(ctx, evt)
	case "/schedule_list":
		entries := l.registry.Entries(ctx)
		l.reply(evt, schedule.ListText(entries), schedule.ListKeyboard(entries))
	case "/schedule_clear":
		if err := l.registry.DeleteAll(ctx); err != nil {
			l.reply(evt, fmt.Sprintf("Couldn't clear the schedules: %v", err), nil)
			return
		}
		l.reply(evt, "🗑 All schedules cleared.", nil)
	case "/memory":
		l.toggleMemory(evt, fields[1:])
	case "/remember":
		l.rememberFact(evt)
	case "/logs":
		l.sendLogs(evt, fields[1:])
	default:
		l.reply(evt, l.persona.Confused(), nil)
	}
}

const helpText = `🛠 Available Commands:
/schedule YYYY-MM-DD HH:MM message — queue a message
/schedule_list — show all scheduled messages
/schedule_clear — delete all scheduled messages
/memory on|off — record my chats with you in memory
/remember fact — note a long-term fact
/logs [n] — show recent conversation
/help — show this help menu`

func (l *Loop) createSchedule(ctx context.Context, evt bus.InboundEvent) {
	parts := strings.SplitN(strings.TrimSpace(evt.Content), " ", 4)
	if len(parts) < 4 {
		l.reply(evt, "Usage: /schedule YYYY-MM-DD HH:MM message", nil)
		return
	}
	dateStr, timeStr, message := parts[1], parts[2], strings.TrimSpace(parts[3])
	if message == "" {
		l.reply(evt, "The scheduled message can't be empty.", nil)
		return
	}

	at, err := schedule.ParseDateTime(dateStr, timeStr, l.loc)
	if err != nil {
		l.reply(evt, "I couldn't read that time. Use YYYY-MM-DD HH:MM, YYYY-MM-DD H:MMAM/PM or YYYY-MM-DD HAM/PM.", nil)
		return
	}
	if err := schedule.EnsureFuture(at, l.clock().In(l.loc)); err != nil {
		l.reply(evt, fmt.Sprintf("That time has already passed (%s). Pick a future one.", schedule.RenderTime(at)), nil)
		return
	}

	entry, err := schedule.NewEntry(at, l.recipientChat, message)
	if err != nil {
		l.reply(evt, fmt.Sprintf("Couldn't create the schedule: %v", err), nil)
		return
	}
	if err := l.registry.Add(ctx, entry); err != nil {
		l.reply(evt, fmt.Sprintf("Couldn't save the schedule: %v", err), nil)
		return
	}
	l.reply(evt, fmt.Sprintf("🗓 Scheduled for %s.", schedule.RenderTime(at)), nil)
}

func (l *Loop) toggleMemory(evt bus.InboundEvent, args []string) {
	if len(args) == 0 {
		l.reply(evt, fmt.Sprintf("Memory recording for our chats is %s.", onOff(l.RecordAdminTurns())), nil)
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		l.SetRecordAdminTurns(true)
		l.reply(evt, "🧠 Our chats now go into memory.", nil)
	case "off":
		l.SetRecordAdminTurns(false)
		l.reply(evt, "🤐 Our chats stay out of memory.", nil)
	default:
		l.reply(evt, "Usage: /memory on|off", nil)
	}
}

func (l *Loop) rememberFact(evt bus.InboundEvent) {
	_, fact, _ := strings.Cut(strings.TrimSpace(evt.Content), " ")
	fact = strings.TrimSpace(fact)
	if fact == "" {
		l.reply(evt, "Usage: /remember fact", nil)
		return
	}
	if err := l.memory.Append(fact); err != nil {
		l.reply(evt, fmt.Sprintf("Couldn't note that down: %v", err), nil)
		return
	}
	l.reply(evt, "🧠 Noted!", nil)
}

func (l *Loop) sendLogs(evt bus.InboundEvent, args []string) {
	n := defaultLogTail
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			l.reply(evt, "Usage: /logs [n]", nil)
			return
		}
		n = parsed
	}
	transcript := l.transcripts.GetOrCreate(l.channel + ":" + l.recipientChat)
	l.reply(evt, transcript.FormatTail(n), nil)
}

// converse runs one persona reply turn.
func (l *Loop) converse(ctx context.Context, evt bus.InboundEvent) {
	l.bus.PublishOutbound(bus.OutboundMessage{
		Channel: l.channel,
		ChatID:  evt.ChatID,
		Type:    "typing",
	})

	transcript := l.transcripts.GetOrCreate(evt.SessionKey())
	history := transcript.Window(l.historyWindow)
	messages := make([]providers.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, providers.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, providers.Message{Role: "user", Content: evt.Content})

	chatCtx, cancel := context.WithTimeout(ctx, l.chatTimeout)
	defer cancel()

	resp, err := l.provider.Chat(chatCtx, providers.ChatRequest{
		Model:        l.model,
		Messages:     messages,
		MaxTokens:    l.maxTokens,
		Temperature:  l.temperature,
		SystemPrompt: l.persona.SystemPrompt(l.memory.Read()),
	})
	if err != nil {
		slog.Error("persona chat failed", "session", evt.SessionKey(), "error", err)
		l.reply(evt, l.persona.Fallback(), nil)
		return
	}

	reply := l.persona.Decorate(resp.Content)

	if l.shouldRecord(evt) {
		transcript.Append(session.Message{Role: "user", Content: evt.Content})
		transcript.Append(session.Message{Role: "assistant", Content: reply})
		if err := l.transcripts.Save(transcript); err != nil {
			slog.Error("failed to save transcript", "session", evt.SessionKey(), "error", err)
		}
	}

	l.reply(evt, reply, nil)
}

// shouldRecord applies the admin memory toggle; the recipient's turns are
// always recorded.
func (l *Loop) shouldRecord(evt bus.InboundEvent) bool {
	if evt.SenderID != l.adminChatID {
		return true
	}
	return l.RecordAdminTurns()
}

func (l *Loop) RecordAdminTurns() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recordAdmin
}

func (l *Loop) SetRecordAdminTurns(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordAdmin = v
}

func (l *Loop) reply(evt bus.InboundEvent, text string, buttons [][]bus.Button) {
	l.bus.PublishOutbound(bus.OutboundMessage{
		Channel: l.channel,
		ChatID:  evt.ChatID,
		Content: text,
		Type:    "text",
		Buttons: buttons,
	})
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
