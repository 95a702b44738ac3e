package persona

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
)

const defaultPromptTemplate = `You are %s, texting your favourite person on Telegram.
Reply exactly as %s would: short, warm, playful, a little teasing, with
casual Singlish sprinkled in ("lah", "liao", "hehe"). Never mention being
a bot, an AI, or a language model. Stay in character no matter what.`

// Default emoji sprinkled onto replies.
var defaultEmoji = []string{"💕", "😅", "👋", "🥰", "😁", "✨"}

// Persona renders the system prompt and decorates model replies so they
// read like the impersonated person.
type Persona struct {
	Name       string
	promptFile string
	emojiLevel float64
	emoji      []string
	rng        *rand.Rand
}

type Config struct {
	Name       string
	PromptFile string  // optional file overriding the built-in prompt
	EmojiLevel float64 // 0..1 chance of appending an emoji to a reply
	Seed       int64   // 0 means non-deterministic
}

func New(cfg Config) *Persona {
	name := cfg.Name
	if name == "" {
		name = "Hiro"
	}
	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Persona{
		Name:       name,
		promptFile: cfg.PromptFile,
		emojiLevel: cfg.EmojiLevel,
		emoji:      defaultEmoji,
		rng:        rng,
	}
}

// SystemPrompt builds the full system prompt: persona instructions plus
// the long-term memory notes when there are any.
func (p *Persona) SystemPrompt(memory string) string {
	prompt := p.basePrompt()
	if memory = strings.TrimSpace(memory); memory != "" {
		prompt += "\n\nThings you remember about them:\n" + memory
	}
	return prompt
}

func (p *Persona) basePrompt() string {
	if p.promptFile != "" {
		if data, err := os.ReadFile(p.promptFile); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return fmt.Sprintf(defaultPromptTemplate, p.Name, p.Name)
}

// Decorate appends a persona emoji to a reply with the configured chance,
// skipping replies that already end in one.
func (p *Persona) Decorate(reply string) string {
	reply = strings.TrimSpace(reply)
	if reply == "" || p.emojiLevel <= 0 {
		return reply
	}
	if p.endsWithEmoji(reply) {
		return reply
	}
	if p.rng.Float64() >= p.emojiLevel {
		return reply
	}
	return reply + " " + p.emoji[p.rng.Intn(len(p.emoji))]
}

func (p *Persona) endsWithEmoji(s string) bool {
	for _, e := range p.emoji {
		if strings.HasSuffix(s, e) {
			return true
		}
	}
	return false
}

// Fallback is sent when the model call fails.
func (p *Persona) Fallback() string {
	return "Hehe my head a bit blur right now 😅 say that again later?"
}

// Confused is sent for commands the bot does not recognize.
func (p *Persona) Confused() string {
	return "Hehe I blur liao 😅 I don't quite get what you mean… maybe try /help? 💕"
}
