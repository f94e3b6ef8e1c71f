// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package app wires the gateway components together and owns the process
// lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/votrix/tapo-energy-gateway/chat"
	"github.com/votrix/tapo-energy-gateway/config"
	"github.com/votrix/tapo-energy-gateway/devices"
	"github.com/votrix/tapo-energy-gateway/energy"
	"github.com/votrix/tapo-energy-gateway/pkg/logger"
	"github.com/votrix/tapo-energy-gateway/server"
	"github.com/votrix/tapo-energy-gateway/storage"
	"github.com/votrix/tapo-energy-gateway/tapo"
)

const (
	signalChannelSize = 1
	shutdownTimeout   = 5 * time.Second

	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

// App represents the main application
type App struct {
	cfg           *config.Config
	server        *http.Server
	srv           *server.Server
	cache         *storage.SnapshotCache
	directory     *devices.MemoryDirectory
	configWatcher *config.Watcher
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// New creates a new application instance
func New(cfg *config.Config, configWatcher *config.Watcher) (*App, error) {
	app := &App{
		cfg:           cfg,
		configWatcher: configWatcher,
	}

	if err := app.initializeComponents(); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeComponents builds the device directory, reader, resolver, cache
// and HTTP server from the loaded configuration.
func (a *App) initializeComponents() error {
	a.directory = devices.NewMemoryDirectory()
	for _, dc := range a.cfg.Devices {
		a.directory.Add(&devices.Device{
			ID:      dc.ID,
			OwnerID: dc.OwnerID,
			Title:   dc.Title,
			IP:      dc.IP,
		})
	}
	logger.Info().Int("count", len(a.cfg.Devices)).Msg("Device directory loaded")

	a.cache = storage.NewSnapshotCache()

	reader := tapo.NewClient(a.cfg.Tapo.ReadTimeout)
	creds := energy.Credentials{
		Username: a.cfg.Tapo.Username,
		Password: a.cfg.Tapo.Password,
	}
	if creds.Username == "" || creds.Password == "" {
		logger.Warn().Msg("TAPO_USER/TAPO_PASS not configured; live reads will fail until set")
	}
	if a.cfg.Ingest.Secret == "" {
		logger.Warn().Msg("INGEST_SECRET not configured; the ingestion endpoint will reject all requests")
	}

	resolver := energy.NewResolver(
		a.directory,
		reader,
		a.cache,
		creds,
		a.cfg.Cache.LiveTTL,
		a.cfg.Server.StrictOwnership,
	)

	var chatModel chat.Model
	if a.cfg.Chat.GeminiAPIKey != "" {
		chatModel = chat.NewGeminiClient(a.cfg.Chat.GeminiAPIKey, a.cfg.Chat.Model)
		logger.Info().Str("model", a.cfg.Chat.Model).Msg("Chat model enabled")
	} else {
		logger.Info().Msg("Chat disabled (no Gemini API key configured)")
	}

	a.srv = server.New(a.directory, resolver, a.cache, chatModel, a.cfg)
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.srv.RegisterRoutes(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run(configChan <-chan *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	a.ctx = ctx
	a.cancel = cancel
	defer a.cancel()

	a.configWatcher.Start(ctx)
	defer a.configWatcher.Stop()

	a.startCacheSweeper(ctx)
	a.startHTTPServer()
	a.setupSignalHandler()
	a.startConfigWatcher(configChan)

	<-ctx.Done()
	logger.Info().Msg("Shutting down")
	a.performCleanup()
}

// startHTTPServer starts the gateway's HTTP server
func (a *App) startHTTPServer() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Info().Str("addr", a.server.Addr).Msg("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server failed")
			a.cancel()
		}
	}()
}

// startCacheSweeper starts the background expiry sweep for the snapshot cache
func (a *App) startCacheSweeper(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.cache.Run(ctx, a.cfg.Cache.SweepInterval)
	}()
}

// setupSignalHandler sets up graceful shutdown on interrupt signals
func (a *App) setupSignalHandler() {
	sigChan := make(chan os.Signal, signalChannelSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		a.performGracefulShutdown()
	}()
}

// performGracefulShutdown handles graceful shutdown of all components
func (a *App) performGracefulShutdown() {
	logger.Info().Msg("Initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server stopped")
	}

	a.configWatcher.Stop()
	a.cancel()
}

// performCleanup waits for goroutines to finish
func (a *App) performCleanup() {
	logger.Info().Msg("Waiting for goroutines to finish...")
	a.wg.Wait()
	logger.Info().Msg("All goroutines finished, exiting")
}

// UpdateConfig applies a reloaded configuration to the running components.
// The server port and the device directory require a restart; everything
// else takes effect immediately.
func (a *App) UpdateConfig(newCfg *config.Config) {
	a.cfg = newCfg
	a.srv.UpdateConfig(newCfg)
	logger.Info().Msg("Application configuration updated")
}

// startConfigWatcher starts a goroutine to listen for config file changes and reloads
func (a *App) startConfigWatcher(configChan <-chan *config.Config) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-a.ctx.Done():
				logger.Info().Msg("Config watcher goroutine shutting down")
				return
			case newCfg := <-configChan:
				a.UpdateConfig(newCfg)
			}
		}
	}()
}

// DumpApplicationState dumps current application state to logs
func (a *App) DumpApplicationState() {
	logger.Info().Msg("=== APPLICATION STATE DUMP (SIGUSR1) ===")

	logger.Info().
		Int("registered_devices", len(a.cfg.Devices)).
		Int("cached_snapshots", a.cache.Len()).
		Bool("allow_live_reads", a.cfg.Server.AllowLiveReads).
		Msg("Gateway state")

	for _, dev := range a.cfg.Devices {
		logger.Info().
			Int64("device_id", dev.ID).
			Int64("owner_id", dev.OwnerID).
			Str("title", dev.Title).
			Str("ip", dev.IP).
			Msg("Registered device")
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	logger.Info().
		Uint64("alloc_mb", m.Alloc/1024/1024).
		Uint64("total_alloc_mb", m.TotalAlloc/1024/1024).
		Uint32("num_gc", m.NumGC).
		Int("num_goroutines", runtime.NumGoroutine()).
		Msg("Runtime statistics")

	logger.Info().Msg("=== END STATE DUMP ===")
}

// DumpGoroutineStackTraces dumps all goroutine stack traces to logs
func DumpGoroutineStackTraces() {
	logger.Info().Msg("=== GOROUTINE STACK TRACES (SIGUSR2) ===")
	logger.Info().Int("num_goroutines", runtime.NumGoroutine()).Msg("Current goroutine count")

	buf := make([]byte, 1024*1024) // 1MB buffer
	stackLen := runtime.Stack(buf, true)
	logger.Info().Str("stack_traces", string(buf[:stackLen])).Msg("Full stack trace")

	logger.Info().Msg("=== END STACK TRACES ===")
}
