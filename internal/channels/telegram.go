package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hirojw/hirobot/internal/bus"
)

func init() {
	Register("telegram", newTelegramChannel)
}

const (
	// Long-poll window for GetUpdates, in seconds.
	telegramPollTimeout = 60
	// Bound on every Bot API HTTP call. The same client carries the
	// GetUpdates long poll, so this must exceed its window.
	defaultTelegramTimeout = 90 * time.Second
)

type telegramConfig struct {
	Token          string   `json:"token"`
	AllowedUsers   []string `json:"allowedUsers"`
	TimeoutSeconds int      `json:"timeoutSeconds"`
}

// newBotClient returns the HTTP client backing all Bot API calls. Timeouts
// at or below the long-poll window fall back to the default rather than
// breaking GetUpdates.
func newBotClient(timeoutSeconds int) *http.Client {
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= telegramPollTimeout*time.Second {
		timeout = defaultTelegramTimeout
	}
	return &http.Client{Timeout: timeout}
}

type TelegramChannel struct {
	bot          *tgbotapi.BotAPI
	bus          *bus.MessageBus
	allowedUsers map[string]bool
	stopCh       chan struct{}
}

func newTelegramChannel(cfg json.RawMessage, msgBus *bus.MessageBus) (Channel, error) {
	var tcfg telegramConfig
	if err := json.Unmarshal(cfg, &tcfg); err != nil {
		return nil, fmt.Errorf("failed to parse telegram config: %w", err)
	}
	bot, err := tgbotapi.NewBotAPIWithClient(tcfg.Token, tgbotapi.APIEndpoint, newBotClient(tcfg.TimeoutSeconds))
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	allowed := make(map[string]bool, len(tcfg.AllowedUsers))
	for _, u := range tcfg.AllowedUsers {
		allowed[u] = true
	}
	return &TelegramChannel{
		bot:          bot,
		bus:          msgBus,
		allowedUsers: allowed,
		stopCh:       make(chan struct{}),
	}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegramPollTimeout
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				c.handleUpdate(update)
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case <-c.stopCh:
				c.bot.StopReceivingUpdates()
				return
			}
		}
	}()
	return nil
}

func (c *TelegramChannel) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		senderID := strconv.FormatInt(cb.From.ID, 10)
		if !c.IsAllowed(senderID) {
			slog.Warn("telegram: callback from disallowed user", "senderID", senderID)
			return
		}
		// Acknowledge so the client drops its loading spinner.
		if _, err := c.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			slog.Warn("telegram: failed to answer callback", "error", err)
		}

		evt := bus.InboundEvent{
			Channel:      "telegram",
			SenderID:     senderID,
			CallbackID:   cb.ID,
			CallbackData: cb.Data,
		}
		if cb.Message != nil {
			evt.ChatID = strconv.FormatInt(cb.Message.Chat.ID, 10)
			evt.MessageID = strconv.Itoa(cb.Message.MessageID)
		}
		c.bus.PublishInbound(evt)

	case update.Message != nil:
		msg := update.Message
		senderID := strconv.FormatInt(msg.From.ID, 10)
		if !c.IsAllowed(senderID) {
			slog.Warn("telegram: message from disallowed user", "senderID", senderID)
			return
		}
		c.bus.PublishInbound(bus.InboundEvent{
			Channel:   "telegram",
			SenderID:  senderID,
			ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
			Content:   msg.Text,
			MessageID: strconv.Itoa(msg.MessageID),
		})
	}
}

func (c *TelegramChannel) Stop() error {
	close(c.stopCh)
	return nil
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chatID %q: %w", msg.ChatID, err)
	}
	// The Bot API calls below don't take ctx; the client timeout set in
	// newBotClient bounds them.

	if msg.Type == "typing" {
		_, err = c.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
		return err
	}

	// Button-press replies edit the menu message in place when possible.
	if msg.EditMessageID != "" {
		messageID, convErr := strconv.Atoi(msg.EditMessageID)
		if convErr == nil {
			if len(msg.Buttons) > 0 {
				edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, msg.Content, toInlineKeyboard(msg.Buttons))
				_, err = c.bot.Send(edit)
			} else {
				edit := tgbotapi.NewEditMessageText(chatID, messageID, msg.Content)
				_, err = c.bot.Send(edit)
			}
			return err
		}
	}

	m := tgbotapi.NewMessage(chatID, msg.Content)
	if len(msg.Buttons) > 0 {
		m.ReplyMarkup = toInlineKeyboard(msg.Buttons)
	}
	_, err = c.bot.Send(m)
	return err
}

func (c *TelegramChannel) IsAllowed(senderID string) bool {
	if len(c.allowedUsers) == 0 {
		return true
	}
	return c.allowedUsers[senderID]
}

func toInlineKeyboard(rows [][]bus.Button) tgbotapi.InlineKeyboardMarkup {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}
