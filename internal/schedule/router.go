package schedule

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hirojw/hirobot/internal/bus"
)

// Router turns inline-button presses into schedule mutations and menu
// re-renders. Only the fixed admin identity may drive it; presses from
// anyone else are dropped without a reply.
type Router struct {
	registry    *Registry
	sessions    *Sessions
	bus         *bus.MessageBus
	channel     string
	adminSender string
}

func NewRouter(registry *Registry, sessions *Sessions, msgBus *bus.MessageBus, channel, adminSender string) *Router {
	return &Router{
		registry:    registry,
		sessions:    sessions,
		bus:         msgBus,
		channel:     channel,
		adminSender: adminSender,
	}
}

// HandleCallback routes one button press. The menu message that carried the
// button is edited in place where the platform allows it.
func (r *Router) HandleCallback(ctx context.Context, evt bus.InboundEvent) {
	if evt.SenderID != r.adminSender {
		slog.Warn("callback from non-admin ignored", "senderID", evt.SenderID)
		return
	}

	action, arg := splitCallback(evt.CallbackData)
	switch action {
	case "list":
		// "list:refresh" and "list:back" both re-render the list.
		r.sendList(ctx, evt)
	case "view":
		r.sendDetail(ctx, evt, arg)
	case "edit_time":
		r.openEdit(ctx, evt, arg, EditTime, "Send the new date and time, e.g. \"2025-12-31 9:30PM\".")
	case "edit_msg":
		r.openEdit(ctx, evt, arg, EditMessage, "Send the new message text.")
	case "delete":
		r.deleteEntry(ctx, evt, arg)
	default:
		r.reply(evt, "🤔 Unknown action. Try again.", nil)
	}
}

func splitCallback(data string) (action, arg string) {
	action, arg, _ = strings.Cut(data, ":")
	return action, arg
}

func (r *Router) sendList(ctx context.Context, evt bus.InboundEvent) {
	entries := r.registry.Entries(ctx)
	r.reply(evt, ListText(entries), ListKeyboard(entries))
}

func (r *Router) sendDetail(ctx context.Context, evt bus.InboundEvent, id string) {
	entry, err := r.registry.Get(ctx, id)
	if err != nil {
		r.staleOrError(ctx, evt, err)
		return
	}
	r.reply(evt, DetailText(entry), DetailKeyboard(entry))
}

func (r *Router) openEdit(ctx context.Context, evt bus.InboundEvent, id string, mode EditMode, prompt string) {
	// Optimistic open: the entry may have vanished since the menu rendered,
	// which Consume detects by ID when the admin's input arrives.
	if _, err := r.registry.Get(ctx, id); err != nil {
		r.staleOrError(ctx, evt, err)
		return
	}
	r.sessions.Open(evt.SenderID, mode, id)
	r.reply(evt, prompt, nil)
}

func (r *Router) deleteEntry(ctx context.Context, evt bus.InboundEvent, id string) {
	if err := r.registry.Delete(ctx, id); err != nil {
		r.staleOrError(ctx, evt, err)
		return
	}
	entries := r.registry.Entries(ctx)
	r.reply(evt, "🗑 Deleted.\n\n"+ListText(entries), ListKeyboard(entries))
}

func (r *Router) staleOrError(ctx context.Context, evt bus.InboundEvent, err error) {
	if errors.Is(err, ErrNotFound) {
		entries := r.registry.Entries(ctx)
		r.reply(evt, "That schedule no longer exists.\n\n"+ListText(entries), ListKeyboard(entries))
		return
	}
	slog.Error("schedule menu action failed", "error", err)
	r.reply(evt, "Something went wrong, please try again.", nil)
}

func (r *Router) reply(evt bus.InboundEvent, text string, buttons [][]bus.Button) {
	r.bus.PublishOutbound(bus.OutboundMessage{
		Channel:       r.channel,
		ChatID:        evt.ChatID,
		Content:       text,
		Type:          "text",
		Buttons:       buttons,
		EditMessageID: evt.MessageID,
	})
}
