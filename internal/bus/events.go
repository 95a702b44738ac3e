package bus

import "fmt"

// InboundEvent is anything received from the chat platform: a plain text
// message, a command, or an inline-button press.
type InboundEvent struct {
	Channel      string // source channel name (e.g. "telegram")
	SenderID     string // sender identifier
	ChatID       string // chat/conversation identifier
	Content      string // text content (empty for pure button presses)
	CallbackID   string // platform callback identifier, set for button presses
	CallbackData string // encoded action string, set for button presses
	MessageID    string // platform message the event originated from
}

// IsCallback reports whether the event is an inline-button press.
func (e InboundEvent) IsCallback() bool {
	return e.CallbackID != ""
}

// SessionKey returns the transcript routing key, "channel:chatID".
func (e InboundEvent) SessionKey() string {
	return fmt.Sprintf("%s:%s", e.Channel, e.ChatID)
}

// Button is one inline keyboard button.
type Button struct {
	Label string
	Data  string // callback data delivered back as InboundEvent.CallbackData
}

// OutboundMessage is a message to be sent (or edited in place) on a channel.
type OutboundMessage struct {
	Channel       string     // target channel
	ChatID        string     // target chat
	Content       string     // text content
	Type          string     // "text", "typing", "error"
	Buttons       [][]Button // optional inline keyboard rows
	EditMessageID string     // when set, edit this message instead of sending a new one
}
