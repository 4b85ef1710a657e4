package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xrbridge/xrbridge/server/internal/api"
	"github.com/xrbridge/xrbridge/server/internal/auth"
	"github.com/xrbridge/xrbridge/server/internal/config"
	"github.com/xrbridge/xrbridge/server/internal/metrics"
	"github.com/xrbridge/xrbridge/server/internal/oscout"
	"github.com/xrbridge/xrbridge/server/internal/store"
	"github.com/xrbridge/xrbridge/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the operator/display UI static files from this directory; leave empty to disable")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("xrbridge-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Server.Log.SlogLevel())

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"delivery", cfg.Server.WS.Delivery,
		"user_ttl", cfg.Server.Users.TTL,
		"osc", cfg.Server.OSC.Enabled,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Shared state with optional background user eviction.
	st := store.New(cfg.Server.Users.TTL)
	go st.Run(ctx)

	m := metrics.New(st)
	st.OnArm(m.Armed)

	// WebSocket sessions. In push mode every arm wakes all sessions.
	hub := ws.New(st, m, ws.Options{
		Delivery:        cfg.Server.WS.Delivery,
		PongWait:        cfg.Server.WS.PongWait,
		WriteTimeout:    cfg.Server.WS.WriteTimeout,
		MaxMessageBytes: cfg.Server.WS.MaxMessageBytes,
		SendBuffer:      cfg.Server.WS.SendBuffer,
	})
	st.OnArm(hub.Wake)
	go hub.Run(ctx)

	if cfg.Server.OSC.Enabled {
		fwd := oscout.New(cfg.Server.OSC.Host, cfg.Server.OSC.Port)
		st.OnArm(fwd.Observe)
		go fwd.Run(ctx)
		slog.Info("forwarding events over OSC", "host", cfg.Server.OSC.Host, "port", cfg.Server.OSC.Port)
	}

	guard := auth.New(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)

	// Hot reload: log level and auth settings apply immediately; everything
	// else needs a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			level.Set(updated.Server.Log.SlogLevel())
			guard.Update(
				updated.Server.Auth.Mode,
				updated.Server.Auth.EffectiveHeader(),
				updated.Server.Auth.Key(),
			)
			slog.Info("config hot-reloaded",
				"log_level", updated.Server.Log.Level,
				"auth_mode", updated.Server.Auth.Mode,
			)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// Optional: serve the pre-built UI from a local directory for any path the
	// API does not claim. Unknown files fall back to index.html.
	var static http.Handler
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		static = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpMux := http.NewServeMux()
	httpMux.Handle("/ws", hub)
	httpMux.Handle("/metrics", m.Handler())
	httpMux.Handle("/", api.New(st, api.Options{
		Auth:     guard.Middleware,
		Sessions: hub,
		NotFound: static,
	}))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("xrbridge-server shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
