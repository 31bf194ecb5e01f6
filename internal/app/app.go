// Package app wires configuration, logging, and the hub into a runnable
// server process.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	server "dicetable/server"
	"dicetable/server/internal/canvas"
	"dicetable/server/internal/dice"
	servernet "dicetable/server/internal/net"
	"dicetable/server/internal/observability"
	"dicetable/server/internal/roll"
	"dicetable/server/internal/telemetry"
	"dicetable/server/logging"
	loggingSinks "dicetable/server/logging/sinks"
)

// Config is parsed from the environment. The Logger and Roller fields exist
// for tests and embedders; production runs leave them nil.
type Config struct {
	Addr             string        `env:"DICETABLE_ADDR" envDefault:":8080"`
	AnnounceDelay    time.Duration `env:"DICETABLE_ANNOUNCE_DELAY" envDefault:"100ms"`
	ActivityCapacity int           `env:"DICETABLE_ACTIVITY_CAPACITY" envDefault:"500"`
	EventHistory     int           `env:"DICETABLE_EVENT_HISTORY" envDefault:"256"`
	SyncMode         string        `env:"DICETABLE_SYNC_MODE" envDefault:"full"`
	PhysicsSync      bool          `env:"DICETABLE_PHYSICS_SYNC" envDefault:"true"`
	Highlighting     bool          `env:"DICETABLE_HIGHLIGHTING" envDefault:"true"`
	LogJSONPath      string        `env:"DICETABLE_LOG_JSON"`
	EnablePprof      bool          `env:"DICETABLE_ENABLE_PPROF"`

	Logger telemetry.Logger     `env:"-"`
	Roller server.RollProcessor `env:"-"`
}

// LoadConfig reads the environment into a Config.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Run assembles the server and blocks on the listener.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	// Broken face tables are a build defect; refuse to start.
	if err := dice.ValidateAll(); err != nil {
		return fmt.Errorf("dice table validation failed: %w", err)
	}

	logConfig := logging.DefaultConfig()
	namedSinks := []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsole(os.Stdout, logConfig.Console)},
	}
	if cfg.LogJSONPath != "" {
		file, err := os.OpenFile(cfg.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open json log %s: %w", cfg.LogJSONPath, err)
		}
		defer file.Close()
		logConfig.EnabledSinks = append(logConfig.EnabledSinks, "json")
		logConfig.JSON.FilePath = cfg.LogJSONPath
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "json",
			Sink: loggingSinks.NewJSON(file, logConfig.JSON.FlushInterval),
		})
	}

	router, err := logging.NewRouter(logging.SystemClock{}, logConfig, namedSinks)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	roller := cfg.Roller
	if roller == nil {
		roller = roll.NewRoller(0)
	}

	hubCfg := server.DefaultHubConfig()
	hubCfg.AnnounceDelay = cfg.AnnounceDelay
	hubCfg.ActivityCapacity = cfg.ActivityCapacity
	hubCfg.Sync = canvas.SyncConfig{
		Mode:               canvas.SyncMode(cfg.SyncMode),
		EnablePhysicsSync:  cfg.PhysicsSync,
		EnableHighlighting: cfg.Highlighting,
		MaxEventHistory:    cfg.EventHistory,
	}
	hubCfg.Roller = roller
	hubCfg.Logger = logger
	hubCfg.Publisher = router

	hub := server.NewHub(hubCfg)
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		Logger:        logger,
		Observability: observability.Config{EnablePprof: cfg.EnablePprof},
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
