package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/DuyanhLexq/TikTokAPI/internal/config"
	"github.com/DuyanhLexq/TikTokAPI/internal/storage"
	"github.com/DuyanhLexq/TikTokAPI/internal/tui"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	configManager := config.NewManager()
	cfg, err := configManager.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}
	defer configManager.Close()

	store, err := storage.NewSQLite(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening storage")
	}
	defer store.Close()

	p := tea.NewProgram(tui.NewModel(store), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error().Err(err).Msg("Error running TUI")
	}
}
