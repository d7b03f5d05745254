package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/andreyestevam/collaborative-whiteboard/api"
	"github.com/andreyestevam/collaborative-whiteboard/config"
	"github.com/andreyestevam/collaborative-whiteboard/history"
	"github.com/andreyestevam/collaborative-whiteboard/hub"
	"github.com/andreyestevam/collaborative-whiteboard/logging"
	"github.com/andreyestevam/collaborative-whiteboard/metrics"
	"github.com/andreyestevam/collaborative-whiteboard/protocol"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logCloser := logging.Setup(cfg.Logging)
	defer logCloser.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	broadcaster := hub.New(m)
	handler := protocol.NewHandler(broadcaster, m)
	states := history.NewManager(broadcaster, cfg.History.MaxDepth, m)

	if logging.ParseLevel(cfg.Logging.Level) == slog.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Hub:       broadcaster,
		History:   states,
		Handler:   handler,
		WebSocket: cfg.WebSocket,
		Gatherer:  reg,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "port", cfg.Server.Port, "websocket", cfg.WebSocket.Path)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}
