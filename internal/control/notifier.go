package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/dashnotifier/internal/core/config"
	"github.com/vietddude/dashnotifier/internal/core/detector"
	"github.com/vietddude/dashnotifier/internal/core/format"
	"github.com/vietddude/dashnotifier/internal/core/registry"
	"github.com/vietddude/dashnotifier/internal/indexing/health"
	"github.com/vietddude/dashnotifier/internal/indexing/poller"
	"github.com/vietddude/dashnotifier/internal/infra/provider/blockchair"
	"github.com/vietddude/dashnotifier/internal/infra/storage"
	"github.com/vietddude/dashnotifier/internal/infra/telegram"
)

// Notifier is the main application struct that manages the service lifecycle.
type Notifier struct {
	cfg          *config.AppConfig
	store        *storage.Store
	transport    ChatTransport
	poller       *poller.Poller
	healthServer *health.Server
	log          *slog.Logger

	wg sync.WaitGroup
}

// Components are the collaborators assembled by NewNotifier. Tests build
// them directly with fakes.
type Components struct {
	Store     *storage.Store
	Client    *blockchair.Client
	Transport ChatTransport
	Sender    poller.Notifier
}

// NewNotifier creates a Notifier with all dependencies initialized.
func NewNotifier(ctx context.Context, cfg *config.AppConfig) (*Notifier, error) {
	// 1. Initialize Storage
	backend, err := OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	store := storage.Open(ctx, backend)
	slog.Info("Using storage", "driver", cfg.Storage.Driver)

	// 2. Chat transport
	bot, err := telegram.New(telegram.Config{
		Token:        cfg.Telegram.Token,
		Debug:        cfg.Telegram.Debug,
		SendTimeout:  cfg.Telegram.SendTimeout,
		PollTimeout:  cfg.Telegram.PollTimeout,
		SendAttempts: cfg.Poller.SendAttempts,
	})
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to init telegram: %w", err)
	}
	slog.Info("Telegram bot ready", "username", bot.Username())

	// 3. Provider
	client := blockchair.New(blockchair.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
	})

	return Assemble(cfg, Components{
		Store:     store,
		Client:    client,
		Transport: bot,
		Sender:    bot,
	})
}

// Assemble wires the core components around already constructed infrastructure.
func Assemble(cfg *config.AppConfig, c Components) (*Notifier, error) {
	mode, err := detector.ParseMode(cfg.Poller.Detection)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Format.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	formatter := format.New(format.Config{
		ExplorerURL: cfg.Format.ExplorerURL,
		Location:    loc,
		Ticker:      cfg.Format.Ticker,
	})

	reg := registry.New(c.Store)
	NewHandlers(reg).Bind(c.Transport)

	p := poller.New(
		poller.Config{
			Interval:     cfg.Poller.Interval,
			InitialDelay: cfg.Poller.InitialDelay,
			Workers:      cfg.Poller.Workers,
			TxLimit:      cfg.Provider.TxLimit,
			NotifiedCap:  cfg.Storage.NotifiedCap,
			IncomingOnly: cfg.Poller.IncomingOnly,
			MaxBackoff:   cfg.Provider.MaxBackoff,
		},
		c.Store,
		c.Client,
		detector.New(mode, cfg.Poller.MaxPerCycle),
		formatter,
		c.Sender,
	)

	healthMon := health.NewMonitor(p, c.Client.Monitor(), cfg.Poller.Interval)

	return &Notifier{
		cfg:          cfg,
		store:        c.Store,
		transport:    c.Transport,
		poller:       p,
		healthServer: health.NewServer(healthMon, cfg.Server.Port),
		log:          slog.Default(),
	}, nil
}

// Start launches the health server, the chat loop and the poller.
func (n *Notifier) Start(ctx context.Context) error {
	go func() {
		if err := n.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.log.Error("Health server failed", "error", err)
		}
	}()

	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		if err := n.transport.Run(ctx); err != nil {
			n.log.Error("Chat transport failed", "error", err)
		}
	}()
	go func() {
		defer n.wg.Done()
		if err := n.poller.Start(ctx); err != nil {
			n.log.Error("Poller failed", "error", err)
		}
	}()

	n.log.Info("Notifier started",
		"interval", n.cfg.Poller.Interval,
		"detection", n.cfg.Poller.Detection,
		"port", n.cfg.Server.Port,
	)
	return nil
}

// Stop waits for the in-flight cycle, shuts the HTTP server and flushes state.
// The caller cancels the context passed to Start first.
func (n *Notifier) Stop(ctx context.Context) error {
	n.log.Info("Stopping Notifier...")

	_ = n.poller.Stop()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		n.log.Warn("Timed out waiting for workers")
	}

	var errs []error
	if err := n.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("health server: %w", err))
	}
	if err := n.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("state: %w", err))
	}

	if len(errs) == 0 {
		n.log.Info("Notifier stopped")
	}
	return errors.Join(errs...)
}
