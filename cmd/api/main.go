package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mcp-weather/backend/internal/config"
	"github.com/zhouzirui/mcp-weather/backend/internal/handler"
	"github.com/zhouzirui/mcp-weather/backend/internal/model/tool"
	"github.com/zhouzirui/mcp-weather/backend/internal/service/ai"
	"github.com/zhouzirui/mcp-weather/backend/internal/service/gateway"
	"github.com/zhouzirui/mcp-weather/backend/internal/service/session"
	"github.com/zhouzirui/mcp-weather/backend/internal/service/weather"
	"github.com/zhouzirui/mcp-weather/backend/pkg/logger"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n\n%s\n", os.Args[0], config.Usage())
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if envErr != nil {
		log.WithError(envErr).Warn("failed to load .env file, continuing with system environment variables only")
	}

	sessions := session.NewStore(session.Config{
		TTL:        cfg.Session.TTL,
		MaxEntries: cfg.Session.MaxEntries,
	})
	if cfg.Session.SweepInterval > 0 {
		go sessions.Run(ctx, cfg.Session.SweepInterval)
		log.WithField("interval", cfg.Session.SweepInterval).Info("background session sweep enabled")
	}

	if cfg.Weather.APIKey == "" {
		log.Warn("OPENWEATHER_API_KEY is not set, weather lookups will report an error")
	}
	provider := weather.NewClient(cfg.Weather)

	gw := gateway.New(sessions, provider, weather.Units(cfg.Weather.Units), log)

	if cfg.AI.NarratorEnabled {
		if !cfg.AI.Enabled() {
			log.Warn("NARRATOR_ENABLED is set but Ark credentials are missing, narration disabled")
		} else if narrator, err := ai.NewService(ctx, cfg.AI, log); err != nil {
			log.WithError(err).Warn("failed to initialize narrator, continuing with plain reports")
		} else {
			gw.SetNarrator(narrator)
			log.Info("narrator initialized")
		}
	}

	router := handler.NewRouter(cfg.Metrics, gw, tool.NewMemoryCatalog(tool.Seed()), log)

	startServer(ctx, cfg.Server, router, log)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log logrus.FieldLogger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.WithField("addr", addr).Infof("%s listening", config.ServiceName)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
