package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/cognitive-os/core/config"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to the config file (defaults to ./cognitive.yaml when present)")
		initConfig = flag.String("init-config", "", "write a default config to the given path and exit")
	)
	flag.Parse()

	if *initConfig != "" {
		if err := config.WriteFile(*initConfig, config.Default()); err != nil {
			return err
		}
		fmt.Println("wrote", *initConfig)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := setupOTel(ctx, cfg.Tracing, cfg.Path(cfg.Tracing.LogFile))
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "telemetry shutdown:", err)
		}
	}()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Warn("failed to close lesson player cleanly", "error", err)
		}
	}()

	logger.Info("lesson player started", "plan", string(a.gate.Plan()), "data_dir", cfg.DataDir)
	_, err = tea.NewProgram(newModel(ctx, a), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("lesson player failed: %w", err)
	}
	return nil
}
