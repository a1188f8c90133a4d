package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/DuyanhLexq/TikTokAPI/internal/config"
	"github.com/DuyanhLexq/TikTokAPI/internal/monitor"
	"github.com/DuyanhLexq/TikTokAPI/internal/scraper"
	"github.com/DuyanhLexq/TikTokAPI/internal/server"
	"github.com/DuyanhLexq/TikTokAPI/internal/storage"
	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Load configuration
	configManager := config.NewManager()
	cfg, err := configManager.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}
	defer configManager.Close()
	logger := configManager.GetLogger()

	// Initialize storage
	var store models.Storage
	if cfg.Database.Enabled {
		sqlite, err := storage.NewSQLite(cfg.Database.Path)
		if err != nil {
			logger.Fatal().Err(err).Msg("Error initializing storage")
		}
		store = sqlite
	}

	mon := monitor.NewMonitor(prometheus.DefaultRegisterer)
	mon.SetLogger(logger)
	mon.Start(15 * time.Second)
	defer mon.Stop()

	mgr, err := scraper.NewManager(cfg, scraper.Options{Storage: store, Monitor: mon})
	if err != nil {
		logger.Fatal().Err(err).Msg("Error creating scraper")
	}
	defer mgr.Close()
	mgr.SetLogger(logger)

	// Create and run server
	srv, err := server.NewServer(cfg, mgr, mon, prometheus.DefaultGatherer)
	if err != nil {
		logger.Fatal().Err(err).Msg("Error creating server")
	}
	srv.SetLogger(logger)

	if err := srv.Run(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Error running server")
	}
}
