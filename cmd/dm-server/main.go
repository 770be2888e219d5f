package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/swuota-server/swuota-server/internal/api"
	"github.com/swuota-server/swuota-server/internal/config"
	"github.com/swuota-server/swuota-server/internal/dm"
	"github.com/swuota-server/swuota-server/internal/events"
	"github.com/swuota-server/swuota-server/internal/storage"
	"github.com/swuota-server/swuota-server/pkg/syncml"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/dm-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Event store: Postgres when configured, in-memory otherwise
	var store storage.Store
	if cfg.Database.DSN != "" {
		pg, err := storage.NewPostgresStore(cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		pg.Configure(cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
		store = pg
		log.Info().Msg("Connected to database")
	} else {
		store = storage.NewMemoryStore(0)
		log.Info().Msg("No database configured, using in-memory event store")
	}
	defer store.Close()

	recorders := []events.Recorder{events.NewStoreRecorder(store)}

	// Optional NATS event publishing
	if cfg.NATS.URL != "" {
		log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")

		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Server.Name),
			nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
			nats.ReconnectWait(cfg.NATS.ReconnectInterval),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn().Err(err).Msg("Disconnected from NATS")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Msg("Reconnected to NATS")
			}),
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without NATS support")
		} else {
			defer nc.Close()
			log.Info().Msg("Connected to NATS")
			recorders = append(recorders, events.NewNATSRecorder(nc))
		}
	} else {
		log.Info().Msg("NATS not configured, running in standalone mode")
	}

	recorder := events.NewMultiRecorder(recorders...)

	// Wire codec
	var codec syncml.Codec
	switch cfg.DM.Codec {
	case "xml":
		codec = syncml.XMLCodec{}
		log.Warn().Msg("Using plain XML codec, devices speaking WBXML will be rejected")
	default:
		codec = syncml.NewWBXMLCodec(cfg.DM.WBXMLDecodeTool, cfg.DM.WBXMLEncodeTool)
	}

	// Session engine
	registry := dm.NewRegistry(cfg.UserMap(), cfg.DM.Prompts, recorder, cfg.DM.SessionTTL, cfg.DM.SweepInterval)
	engine := dm.NewEngine(codec, registry)

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Idle session eviction (no-op when session_ttl is zero)
	wg.Add(1)
	go func() {
		defer wg.Done()
		registry.Run(ctx)
	}()

	// HTTP server
	server := api.NewServer(cfg, engine, store)

	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.DM.Host, cfg.DM.Port)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("DM server failed")
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server gracefully")
	}

	wg.Wait()

	log.Info().Msg("DM server stopped")
}
