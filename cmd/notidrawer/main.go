package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/twhuang/notidrawer/internal/app"
	"github.com/twhuang/notidrawer/internal/logging"
	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "notidrawer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := model.DefaultConfigPath()
	if env := os.Getenv("NOTIDRAWER_CONFIG"); env != "" {
		configPath = env
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	dataDir := model.DefaultDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// The terminal owns stdout; logs go to a rotating file.
	logger, err := logging.New(logging.Options{
		FilePath: filepath.Join(dataDir, "notidrawer.log"),
		Level:    os.Getenv("NOTIDRAWER_LOG_LEVEL"),
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	s, err := store.NewSQLiteStore(filepath.Join(dataDir, "notidrawer.db"))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = s.Close() }()

	logger.Infow("starting", "config", configPath, "data_dir", dataDir)

	program := tea.NewProgram(
		app.New(s, cfg, configPath, logger),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}

	return nil
}
