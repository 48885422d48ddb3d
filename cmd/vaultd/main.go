package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/stablevault/internal/config"
	"github.com/elys-network/stablevault/internal/keeper"
	"github.com/elys-network/stablevault/internal/logger"
	"github.com/elys-network/stablevault/internal/state"
	"github.com/elys-network/stablevault/internal/web"
)

const SHUTDOWN_TIMEOUT = 10 * time.Second

// main is the entry point for the vault daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var extra []io.Writer
	if config.LogFile != "" {
		w, err := logger.FileWriter(config.LogFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", config.LogFile).Msg("Failed to open log file")
		}
		extra = append(extra, w)
	}
	logger.Initialize(os.Getenv("LOG_LEVEL"), extra...)
	log.Info().Msg("Vault daemon starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persist := config.PersistenceEnabled()
	if persist {
		dbCfg := state.DBConfig{
			Host: config.DBHost, Port: config.DBPort,
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
	} else {
		log.Warn().Msg("DB_NAME not set, cycles and events will not be persisted")
	}

	// --- 2. Build the vault deployment ---
	bootstrap, err := config.LoadBootstrap(config.BootstrapFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load bootstrap file")
	}
	a, err := buildApp(ctx, bootstrap, wiringOptions{
		Governor:               config.GovernorAddress,
		PriceAPIURL:            config.PriceAPIURL,
		PriceAPIKey:            config.PriceAPIKey,
		PublicHarvestPerMinute: config.PublicHarvestPerMinute,
		Persist:                persist,
		ProcessMetrics:         true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build vault deployment")
	}

	// --- 3. Keeper and web server ---
	k, err := newKeeper(a, config.GovernorAddress, persist)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create keeper")
	}

	webServer := newWebServer(a, persist, config.WebPort)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting vault API")
		if err := webServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Web server failed")
			stop()
		}
	}()

	// --- 4. Keeper loop, until a signal arrives ---
	log.Info().Str("interval", config.KeeperInterval.String()).Msg("Starting keeper loop")
	k.RunLoop(ctx, config.KeeperInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
	log.Info().Msg("Vault daemon stopped")
}

func newKeeper(a *app, operator string, persist bool) (*keeper.Keeper, error) {
	cfg := keeper.Config{
		Vault:       a.vault,
		Operator:    operator,
		Observer:    a.indicators,
		BeforeCycle: a.accrue,
	}
	if a.harvester != nil {
		cfg.Harvester = a.harvester
	}
	if persist {
		cfg.Store = state.CycleStore{}
	}
	return keeper.NewKeeper(cfg)
}

func newWebServer(a *app, persist bool, port string) *web.WebServer {
	cfg := web.Config{
		Port:     port,
		Vault:    a.vault,
		Gatherer: a.registry,
	}
	if a.harvester != nil {
		cfg.Harvester = a.harvester
	}
	if persist {
		cfg.History = state.Archive{}
	}
	return web.NewWebServer(cfg)
}
