package config

// Config is the top-level configuration
type Config struct {
	Providers ProvidersConfig `json:"providers"`
	Persona   PersonaConfig   `json:"persona"`
	Telegram  TelegramConfig  `json:"telegram"`
	Store     StoreConfig     `json:"store"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Memory    MemoryConfig    `json:"memory"`
}

// ProvidersConfig holds API keys and settings for LLM providers
type ProvidersConfig struct {
	Default   string         `json:"default"` // "openai" or "anthropic"
	OpenAI    ProviderConfig `json:"openai"`
	Anthropic ProviderConfig `json:"anthropic"`
}

type ProviderConfig struct {
	APIKey       string `json:"apiKey"`
	BaseURL      string `json:"baseUrl"`
	DefaultModel string `json:"defaultModel"`
}

// PersonaConfig describes who the bot pretends to be.
type PersonaConfig struct {
	Name             string  `json:"name"`
	SystemPromptFile string  `json:"systemPromptFile"`
	EmojiLevel       float64 `json:"emojiLevel"` // 0..1, chance of decorating a reply
	MaxTokens        int     `json:"maxTokens"`
	Temperature      float64 `json:"temperature"`
	HistoryWindow    int     `json:"historyWindow"` // transcript turns fed to the model
}

type TelegramConfig struct {
	Token           string `json:"token"`
	AdminChatID     string `json:"adminChatId"`
	RecipientChatID string `json:"recipientChatId"`
	TimeoutSeconds  int    `json:"timeoutSeconds"` // bound on Bot API calls
}

// StoreConfig selects the schedule blob backend. When URL is empty the
// schedules are kept in a local JSON file under DataDir.
type StoreConfig struct {
	URL            string `json:"url"`    // remote bin endpoint, e.g. https://api.jsonbin.io/v3/b/<id>
	APIKey         string `json:"apiKey"` // sent as X-Master-Key
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type SchedulerConfig struct {
	PollIntervalSeconds int    `json:"pollIntervalSeconds"`
	InitialDelaySeconds int    `json:"initialDelaySeconds"`
	ConfirmPauseSeconds int    `json:"confirmPauseSeconds"`
	Timezone            string `json:"timezone"`
}

type MemoryConfig struct {
	DataDir            string `json:"dataDir"`
	AdminTurnsRecorded bool   `json:"adminTurnsRecorded"` // initial state of the /memory toggle
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Default: "openai",
			OpenAI:  ProviderConfig{DefaultModel: "gpt-4o-mini"},
		},
		Persona: PersonaConfig{
			Name:          "Hiro",
			EmojiLevel:    0.7,
			MaxTokens:     512,
			Temperature:   0.9,
			HistoryWindow: 30,
		},
		Telegram: TelegramConfig{
			TimeoutSeconds: 90,
		},
		Store: StoreConfig{
			TimeoutSeconds: 10,
		},
		Scheduler: SchedulerConfig{
			PollIntervalSeconds: 30,
			InitialDelaySeconds: 10,
			ConfirmPauseSeconds: 3,
			Timezone:            "Asia/Singapore",
		},
		Memory: MemoryConfig{
			DataDir:            "~/.hirobot/data",
			AdminTurnsRecorded: false,
		},
	}
}
