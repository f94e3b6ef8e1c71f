// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package main

import (
	"flag"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/votrix/tapo-energy-gateway/app"
	"github.com/votrix/tapo-energy-gateway/config"
	"github.com/votrix/tapo-energy-gateway/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	validateConfig := flag.Bool("validate-config", false, "Validate configuration file and exit")
	flag.Parse()

	if *validateConfig {
		os.Exit(performConfigValidation(*configPath))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Initialize("error")
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(cfg.Logging.Level)

	logger.Info().Msg("Starting Tapo Energy Gateway")
	logger.Info().
		Int("port", cfg.Server.Port).
		Bool("allow_live_reads", cfg.Server.AllowLiveReads).
		Dur("live_ttl", cfg.Cache.LiveTTL).
		Dur("ingest_ttl", cfg.Cache.IngestTTL).
		Msg("Configuration loaded")

	configChan := make(chan *config.Config)
	configWatcher := config.NewWatcher(*configPath, configChan)

	application, err := app.New(cfg, configWatcher)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create application")
	}

	setupDebugSignalHandlers(application)

	application.Run(configChan)
}

// performConfigValidation validates the configuration file and returns exit code
func performConfigValidation(configPath string) int {
	logger.Initialize("info")
	logger.Info().Str("path", configPath).Msg("Validating configuration file")

	if err := config.ValidateWithSchema(configPath); err != nil {
		logger.Error().Err(err).Msg("Configuration schema validation failed")
		fmt.Fprintf(os.Stderr, "\n❌ Configuration validation FAILED\n")
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Configuration validation failed")
		fmt.Fprintf(os.Stderr, "\n❌ Configuration validation FAILED\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		return 1
	}

	fmt.Println("\n✅ Configuration validation PASSED")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Port: %d\n", cfg.Server.Port)
	fmt.Printf("  Allow Live Reads: %t\n", cfg.Server.AllowLiveReads)
	fmt.Printf("  Strict Ownership: %t\n", cfg.Server.StrictOwnership)
	fmt.Printf("  Read Timeout: %s\n", cfg.Tapo.ReadTimeout)
	fmt.Printf("  Live TTL: %s\n", cfg.Cache.LiveTTL)
	fmt.Printf("  Ingest TTL: %s\n", cfg.Cache.IngestTTL)
	fmt.Printf("  Sweep Interval: %s\n", cfg.Cache.SweepInterval)
	fmt.Printf("  Registered Devices: %d\n", len(cfg.Devices))
	fmt.Printf("  Log Level: %s\n", cfg.Logging.Level)

	if cfg.Tapo.Username != "" && cfg.Tapo.Password != "" {
		fmt.Println("  Tapo Credentials: Configured")
	} else {
		fmt.Println("  Tapo Credentials: Missing (live reads will fail)")
	}
	if cfg.Ingest.Secret != "" {
		fmt.Println("  Ingest Secret: Configured")
	} else {
		fmt.Println("  Ingest Secret: Missing (ingestion disabled)")
	}
	if cfg.Chat.GeminiAPIKey != "" {
		fmt.Printf("  Chat: Enabled (%s)\n", cfg.Chat.Model)
	} else {
		fmt.Println("  Chat: Disabled")
	}

	fmt.Println("\nAll validation checks passed. Configuration is ready for use.")
	return 0
}
