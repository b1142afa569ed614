package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockticker/internal/config"
	"stockticker/internal/live"
	"stockticker/internal/render"
	"stockticker/internal/session"
	"stockticker/internal/util"
	"stockticker/pkg/stockticker"
)

func main() {
	cfgFlag := flag.String("config", "", "path to config file (default $STOCKTICKER_CONFIG or "+config.DefaultPath+")")
	apiURL := flag.String("api", "", "API base URL, overrides the config file")
	flag.Parse()

	cfg, err := config.Load(config.Path(*cfgFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if *apiURL != "" {
		cfg.Client.APIBaseURL = *apiURL
	}

	// The terminal belongs to the UI; logs always go to a file.
	logCfg := cfg.Logging
	if logCfg.File == "" {
		logCfg.File = filepath.Join(os.TempDir(), fmt.Sprintf("ticker-client-%s.log", time.Now().Format("2006-01-02")))
	}
	logger := util.NewLogger(logCfg)
	util.SetDefault(logger)

	var store session.Store
	badgerStore, err := session.OpenBadger(cfg.Client.SessionDir)
	if err != nil {
		logger.Warn("session store unavailable, sessions will not persist", "dir", cfg.Client.SessionDir, "error", err)
		store = session.NewMemoryStore()
	} else {
		store = badgerStore
	}
	defer store.Close()

	scr := newScreen()
	coord := render.NewCoordinator(scr, scr, render.Options{ChartDelay: cfg.Client.ChartDelay}, logger.With("component", "render"))
	ctrl := live.NewController(live.Config{
		Client:   stockticker.NewClient(cfg.Client.APIBaseURL, cfg.Client.RequestTimeout),
		Store:    store,
		Renderer: coord,
		Notifier: scr,
		Clock: session.ClockConfig{
			Interval:      cfg.Client.RefreshInterval,
			CountdownFrom: cfg.Client.CountdownFrom,
		},
		RequestTimeout: cfg.Client.RequestTimeout,
		Logger:         logger.With("component", "live"),
	})
	defer ctrl.Close()

	resumed, err := ctrl.Resume()
	if err != nil {
		logger.Warn("resuming session", "error", err)
	}
	logger.Info("client started", "api", cfg.Client.APIBaseURL, "resumed", resumed)

	p := tea.NewProgram(newModel(ctrl, scr, resumed, logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
