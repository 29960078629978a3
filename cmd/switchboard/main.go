// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Command switchboard runs a single agent endpoint: the discovery card, the
// JSON-RPC task interface, and push notification delivery, backed by a
// pluggable agent invoker.
//
// Usage:
//
//	switchboard serve --host localhost --port 10000
//	switchboard version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/switchboard-ai/switchboard"
	"github.com/switchboard-ai/switchboard/server"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the agent server."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info" env:"SWITCHBOARD_LOG_LEVEL"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("switchboard version %s\n", switchboard.Version)
	return nil
}

// ServeCmd starts the agent server.
type ServeCmd struct {
	Host    string        `help:"Host to bind." default:"localhost" env:"SWITCHBOARD_HOST"`
	Port    int           `help:"Port to bind." default:"10000" env:"SWITCHBOARD_PORT"`
	Name    string        `help:"Agent name served on the discovery card." default:"Switchboard Echo Agent" env:"SWITCHBOARD_AGENT_NAME"`
	NoPush  bool          `name:"no-push" help:"Disable push notification support."`
	Timeout time.Duration `help:"Per-invocation timeout." default:"5m" env:"SWITCHBOARD_INVOKE_TIMEOUT"`
}

func (c *ServeCmd) Run(logger *slog.Logger) error {
	var auth *server.PushNotificationAuth
	if !c.NoPush {
		var err error
		auth, err = server.NewPushNotificationAuth(logger)
		if err != nil {
			return fmt.Errorf("failed to set up push notification auth: %w", err)
		}
	}

	baseURL := fmt.Sprintf("http://%s:%d/", c.Host, c.Port)
	card := &switchboard.AgentCard{
		Name:        c.Name,
		Description: "Routes task requests to a scripted echo collaborator.",
		URL:         baseURL,
		Version:     switchboard.Version,
		Capabilities: switchboard.AgentCapabilities{
			Streaming:         true,
			PushNotifications: !c.NoPush,
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []switchboard.AgentSkill{{
			ID:          "echo",
			Name:        "Echo",
			Description: "Repeats the request text back, streamed word by word.",
			Tags:        []string{"demo"},
			Examples:    []string{"say hello"},
		}},
	}

	manager, err := server.NewAgentTaskManager(server.AgentTaskManagerConfig{
		Store:         server.NewInMemoryTaskStore(),
		Invoker:       &echoInvoker{},
		Auth:          auth,
		Logger:        logger,
		InvokeTimeout: c.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to build task manager: %w", err)
	}

	srv, err := server.NewServer(server.Config{
		AgentCard:   card,
		TaskManager: manager,
		Auth:        auth,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("agent server listening", "addr", addr, "agent", card.Name)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// echoInvoker is the built-in demo collaborator. It repeats the query back,
// word by word when streaming.
type echoInvoker struct{}

func (e *echoInvoker) Invoke(ctx context.Context, query, sessionID string) (*server.InvokeResult, error) {
	if strings.TrimSpace(query) == "" {
		return &server.InvokeResult{RequireUserInput: true, Content: "Say something and I will echo it back."}, nil
	}
	return &server.InvokeResult{IsTaskComplete: true, Content: query}, nil
}

func (e *echoInvoker) Stream(ctx context.Context, query, sessionID string) (<-chan server.InvokeResult, error) {
	out := make(chan server.InvokeResult)
	go func() {
		defer close(out)
		words := strings.Fields(query)
		if len(words) == 0 {
			out <- server.InvokeResult{RequireUserInput: true, Content: "Say something and I will echo it back."}
			return
		}
		for _, word := range words[:len(words)-1] {
			select {
			case out <- server.InvokeResult{Content: word}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- server.InvokeResult{IsTaskComplete: true, Content: query}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func (e *echoInvoker) SupportedContentTypes() []string {
	return []string{"text", "text/plain"}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	// A missing .env file is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("switchboard"),
		kong.Description("Multi-agent message routing endpoint."),
		kong.UsageOnError(),
	)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cli.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx.Bind(logger)
	if err := ctx.Run(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
