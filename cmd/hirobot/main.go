package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hirojw/hirobot/internal/agent"
	"github.com/hirojw/hirobot/internal/bus"
	"github.com/hirojw/hirobot/internal/channels"
	"github.com/hirojw/hirobot/internal/config"
	"github.com/hirojw/hirobot/internal/persona"
	"github.com/hirojw/hirobot/internal/providers"
	"github.com/hirojw/hirobot/internal/schedule"
	"github.com/hirojw/hirobot/internal/session"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hirobot",
		Short: "Personal Telegram bot with scheduled messages",
	}
	cmd.PersistentFlags().String("config", "", "config file path (defaults to ~/.hirobot/config.json)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("hirobot", version)
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	loc := schedule.Location(cfg.Scheduler.Timezone)

	if err := os.MkdirAll(cfg.Memory.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	var blob schedule.Blob
	if cfg.Store.URL != "" {
		blob = schedule.NewRemoteBlob(cfg.Store.URL, cfg.Store.APIKey,
			time.Duration(cfg.Store.TimeoutSeconds)*time.Second)
	} else {
		blob = schedule.NewFileBlob(filepath.Join(cfg.Memory.DataDir, "schedules.json"))
	}
	registry := schedule.NewRegistry(blob)

	provider, model, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	msgBus := bus.NewMessageBus(100)
	editing := schedule.NewSessions(registry, loc, time.Now)
	router := schedule.NewRouter(registry, editing, msgBus, "telegram", cfg.Telegram.AdminChatID)

	who := persona.New(persona.Config{
		Name:       cfg.Persona.Name,
		PromptFile: cfg.Persona.SystemPromptFile,
		EmojiLevel: cfg.Persona.EmojiLevel,
	})
	memory := persona.NewMemoryStore(cfg.Memory.DataDir)
	transcripts := session.NewManager(filepath.Join(cfg.Memory.DataDir, "transcripts"))

	loop := agent.NewLoop(agent.LoopConfig{
		Bus:              msgBus,
		Provider:         provider,
		Transcripts:      transcripts,
		Registry:         registry,
		Editing:          editing,
		Router:           router,
		Persona:          who,
		Memory:           memory,
		Channel:          "telegram",
		AdminChatID:      cfg.Telegram.AdminChatID,
		RecipientChat:    cfg.Telegram.RecipientChatID,
		Location:         loc,
		Model:            model,
		MaxTokens:        cfg.Persona.MaxTokens,
		Temperature:      cfg.Persona.Temperature,
		HistoryWindow:    cfg.Persona.HistoryWindow,
		RecordAdminTurns: cfg.Memory.AdminTurnsRecorded,
	})

	poller := schedule.NewPoller(schedule.PollerConfig{
		Registry:     registry,
		Bus:          msgBus,
		Channel:      "telegram",
		AdminChatID:  cfg.Telegram.AdminChatID,
		Interval:     time.Duration(cfg.Scheduler.PollIntervalSeconds) * time.Second,
		InitialDelay: time.Duration(cfg.Scheduler.InitialDelaySeconds) * time.Second,
		ConfirmPause: time.Duration(cfg.Scheduler.ConfirmPauseSeconds) * time.Second,
	})

	manager := channels.NewManager(msgBus)
	tcfg, err := json.Marshal(map[string]any{
		"token":          cfg.Telegram.Token,
		"allowedUsers":   []string{cfg.Telegram.AdminChatID, cfg.Telegram.RecipientChatID},
		"timeoutSeconds": cfg.Telegram.TimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("failed to build telegram config: %w", err)
	}
	if err := manager.AddChannel("telegram", tcfg); err != nil {
		return err
	}

	if err := manager.StartAll(ctx); err != nil {
		return err
	}
	defer func() {
		if err := manager.StopAll(); err != nil {
			slog.Error("failed to stop channels", "error", err)
		}
	}()

	poller.Start(ctx)
	defer poller.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgBus.DispatchOutbound(gctx)
		return nil
	})
	g.Go(func() error {
		err := loop.Run(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})

	slog.Info("hirobot started",
		"persona", cfg.Persona.Name,
		"provider", cfg.Providers.Default,
		"timezone", cfg.Scheduler.Timezone)

	return g.Wait()
}

func buildProvider(cfg *config.Config) (providers.Provider, string, error) {
	switch cfg.Providers.Default {
	case "openai":
		p := cfg.Providers.OpenAI
		return providers.NewOpenAICompatProvider(p.APIKey, p.BaseURL, p.DefaultModel), p.DefaultModel, nil
	case "anthropic":
		p := cfg.Providers.Anthropic
		return providers.NewAnthropicProvider(p.APIKey, p.DefaultModel), p.DefaultModel, nil
	default:
		return nil, "", fmt.Errorf("unknown provider: %s", cfg.Providers.Default)
	}
}
