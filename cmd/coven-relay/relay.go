// ABOUTME: Wiring for the relay command: store, agent, gateway and frontends
// ABOUTME: Runs every enabled frontend until shutdown or the first failure

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/coven-relay/internal/agent"
	"github.com/2389/coven-relay/internal/config"
	"github.com/2389/coven-relay/internal/conversation"
	"github.com/2389/coven-relay/internal/dedupe"
	"github.com/2389/coven-relay/internal/frontend/matrix"
	"github.com/2389/coven-relay/internal/frontend/telegram"
	"github.com/2389/coven-relay/internal/relay"
	"github.com/2389/coven-relay/internal/session"
)

// frontend is a running transport.
type frontend interface {
	Run(ctx context.Context) error
}

func runRelay(ctx context.Context, opts options) error {
	printBanner()

	envLoaded, err := loadEnvFile(opts.envFile)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", opts.configPath, err)
	}

	logger := setupLogger(cfg.Logging)
	printSummary(opts, cfg, envLoaded)

	store, closeStore, err := openStore(cfg.Sessions, logger)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer closeStore()

	invoker := agent.NewClaude(agent.ClaudeConfig{
		Binary:       cfg.Agent.Binary,
		Workspace:    cfg.Agent.Workspace,
		AllowedTools: cfg.Agent.AllowedTools,
		Timeout:      cfg.Agent.Timeout,
	}, logger)
	gateway := conversation.New(store, invoker, logger)

	seen := dedupe.New(dedupe.DefaultTTL, dedupe.DefaultSize)
	defer seen.Close()

	frontends, err := buildFrontends(ctx, cfg, gateway, seen, logger)
	if err != nil {
		return err
	}

	logger.Info("starting coven-relay",
		"config", opts.configPath,
		"workspace", cfg.Agent.Workspace,
		"sessions", cfg.Sessions.Path,
		"frontends", len(frontends),
	)
	return runFrontends(ctx, frontends, logger)
}

// openStore builds the configured session backend and its cleanup.
func openStore(cfg config.SessionsConfig, logger *slog.Logger) (session.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := session.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close session store", "error", err)
			}
		}, nil
	case config.BackendFile, "":
		return session.NewFileStore(cfg.Path), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

func buildFrontends(ctx context.Context, cfg *config.Config, gateway *conversation.Gateway, seen *dedupe.Cache, logger *slog.Logger) ([]frontend, error) {
	var frontends []frontend

	if cfg.Telegram.Enabled() {
		dispatcher := relay.New(gateway, cfg.Telegram.AllowedUsers, logger.With("frontend", "telegram"))
		bot, err := telegram.New(telegram.Config{
			Token:       cfg.Telegram.BotToken,
			APIURL:      cfg.Telegram.APIURL,
			PollTimeout: cfg.Telegram.PollTimeout,
		}, dispatcher, seen, logger)
		if err != nil {
			return nil, fmt.Errorf("creating telegram bot: %w", err)
		}
		frontends = append(frontends, bot)
	}

	if cfg.Matrix.Enabled {
		dispatcher := relay.New(gateway, cfg.Matrix.AllowedUsers, logger.With("frontend", "matrix"))
		bridge, err := matrix.New(matrix.Config{
			Homeserver:      cfg.Matrix.Homeserver,
			Username:        cfg.Matrix.Username,
			Password:        cfg.Matrix.Password,
			AllowedRooms:    cfg.Matrix.AllowedRooms,
			CommandPrefix:   cfg.Matrix.CommandPrefix,
			TypingIndicator: cfg.Matrix.TypingIndicator,
		}, dispatcher, seen, logger)
		if err != nil {
			return nil, fmt.Errorf("creating matrix bridge: %w", err)
		}
		if err := bridge.Login(ctx); err != nil {
			return nil, fmt.Errorf("matrix login: %w", err)
		}
		frontends = append(frontends, bridge)
	}

	return frontends, nil
}

// runFrontends runs every frontend until ctx ends. The first failure stops
// the others and is returned.
func runFrontends(ctx context.Context, frontends []frontend, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for _, f := range frontends {
		wg.Add(1)
		go func(f frontend) {
			defer wg.Done()
			if err := f.Run(ctx); err != nil {
				logger.Error("frontend stopped", "error", err)
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(f)
	}
	wg.Wait()

	logger.Info("coven-relay stopped")
	return firstErr
}

func printSummary(opts options, cfg *config.Config, envLoaded bool) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	line := func(label, value string) {
		green.Print("    ▶ ")
		fmt.Printf("%-11s %s\n", label+":", value)
	}

	line("Config", opts.configPath)
	if envLoaded {
		line("Env file", opts.envFile)
	}
	line("Workspace", cfg.Agent.Workspace)
	line("Agent", cfg.Agent.Binary)
	line("Sessions", fmt.Sprintf("%s (%s)", cfg.Sessions.Path, cfg.Sessions.Backend))

	if cfg.Telegram.Enabled() {
		green.Print("    ▶ ")
		fmt.Printf("%-11s ", "Telegram:")
		if len(cfg.Telegram.AllowedUsers) == 0 {
			yellow.Println("everyone (set allowed_users to restrict)")
		} else {
			fmt.Println(strings.Join(cfg.Telegram.AllowedUsers, ", "))
		}
	}
	if cfg.Matrix.Enabled {
		line("Matrix", fmt.Sprintf("%s as %s", cfg.Matrix.Homeserver, cfg.Matrix.Username))
		if cfg.Matrix.CommandPrefix != "" {
			gray.Printf("                prefix %q\n", cfg.Matrix.CommandPrefix)
		}
	}
	fmt.Println()
}
