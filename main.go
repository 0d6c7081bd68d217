package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signpad-server/config"
	"signpad-server/core"
	"signpad-server/handlers/api/pads"
	"signpad-server/handlers/websocket"
	padregistry "signpad-server/pads"
	"signpad-server/stores"
	"signpad-server/ui"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func corsOptions(extraOrigins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: append([]string{"tauri://localhost"}, extraOrigins...),
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "" {
				return false
			}

			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}

			switch parsed.Scheme {
			case "http", "https":
				switch parsed.Hostname() {
				case "localhost", "127.0.0.1", "::1":
					return true
				}
			case "tauri":
				return parsed.Hostname() == "localhost"
			}

			for _, allowed := range extraOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		ExposedHeaders:   []string{"Content-Disposition", pads.PersistedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func setupRouter(registry *padregistry.Registry, notifier pads.Notifier, cfg config.Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(cfg.CORS.AllowedOrigins)))

	r.Get("/", ui.HandleIndex())
	r.Route("/api/pads", func(r chi.Router) {
		pads.Routes(r, registry, websocket.GetActivePads, notifier)
	})

	return r
}

func waitForShutdown(srv *http.Server, ioo *socketio.Server, closers ...io.Closer) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ioo.Close(nil)
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close storage")
		}
	}
}

func main() {
	logLevel := flag.String("loglevel", "", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", "", "Set the server listen address")
	configPath := flag.String("config", "", "Path to an optional TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)

	store, err := stores.GetStore(context.Background(), cfg.Storage)
	if err != nil {
		logrus.WithField("event", "open storage").Fatal(err)
	}
	var index core.PadRegistry
	if registry, ok := store.(core.PadRegistry); ok {
		index = registry
	}
	var closers []io.Closer
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}

	registry := padregistry.NewRegistry(store, index)

	ioo := websocket.SetupSocketIO(registry)
	r := setupRouter(registry, websocket.NewBroadcaster(ioo), cfg)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithField("addr", cfg.Listen).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, ioo, closers...)
}
