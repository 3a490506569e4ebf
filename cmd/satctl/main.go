package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/preslaff/satellite-mission-control-simulation-system/internal/api"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/auth"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/catalog"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/hub"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/observability"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/sgp4"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("SATCTL_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), logger)
	if err != nil {
		logger.Error("tracing initialization failed", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	catalogCfg, warmGroups := loadCatalogConfig(logger)
	cat := catalog.NewCache(catalogCfg, logger)

	// Restore persisted element-set groups so a restart inside the freshness
	// window serves from memory without hitting the network.
	if err := cat.LoadFromDisk(); err != nil {
		logger.Warn("catalog disk load failed, starting empty", "error", err)
	} else if groups := cat.Groups(); len(groups) > 0 {
		logger.Info("catalog restored from disk", "groups", groups)
	}

	// Warm configured groups in the background; the API serves stale or
	// fetches on demand until these complete.
	go func() {
		for _, group := range warmGroups {
			if _, err := cat.FetchGroup(ctx, group, 0); err != nil {
				logger.Warn("catalog warmup failed", "group", group, "error", err)
			}
		}
	}()

	props := sgp4.NewCache(logger)
	broadcast := hub.New(loadHubConfig(logger), hub.NewCatalogSource(cat, props), logger)
	streamHandler := stream.NewHandler(broadcast, loadStreamConfig(logger), logger)

	srv := api.NewServer(addr, api.Deps{
		Catalog: cat,
		Props:   props,
		Stream:  streamHandler,
		Ready:   func() bool { return true },
	}, logger, authCfg)

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	// Let in-flight catalog persistence writes land before exiting.
	cat.Close()

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SATCTL_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SATCTL_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SATCTL_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SATCTL_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadCatalogConfig(logger *slog.Logger) (catalog.Config, []string) {
	cfg := catalog.Config{
		CacheDir: "/tmp/satctl/catalog",
	}

	if v := os.Getenv("SATCTL_CATALOG_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("SATCTL_CATALOG_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("SATCTL_CATALOG_FRESHNESS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 1 {
			logger.Warn("invalid SATCTL_CATALOG_FRESHNESS value, using default", "value", v, "default", 7200)
		} else {
			cfg.Freshness = time.Duration(seconds) * time.Second
		}
	}

	if v := os.Getenv("SATCTL_CATALOG_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATCTL_CATALOG_ATTEMPTS value, using default", "value", v, "default", 3)
		} else {
			cfg.Attempts = n
		}
	}

	warmGroups := []string{"stations"}
	if v := os.Getenv("SATCTL_CATALOG_WARM_GROUPS"); v != "" {
		warmGroups = warmGroups[:0]
		for _, g := range strings.Split(v, ",") {
			g = strings.TrimSpace(g)
			if g != "" {
				warmGroups = append(warmGroups, g)
			}
		}
	}

	logger.Info("catalog config",
		"base_url", cfg.BaseURL,
		"cache_dir", cfg.CacheDir,
		"warm_groups", warmGroups,
	)

	return cfg, warmGroups
}

func loadHubConfig(logger *slog.Logger) hub.Config {
	cfg := hub.Config{}

	if v := os.Getenv("SATCTL_HUB_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATCTL_HUB_INTERVAL value, using default", "value", v, "default", 1)
		} else {
			cfg.Interval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SATCTL_HUB_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATCTL_HUB_BUFFER value, using default", "value", v, "default", 8)
		} else {
			cfg.Buffer = n
		}
	}

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		MaxTrackedPerConn:  100,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("SATCTL_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATCTL_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("SATCTL_STREAM_MAX_TRACKED"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATCTL_STREAM_MAX_TRACKED value, using default", "value", v, "default", 100)
		} else {
			cfg.MaxTrackedPerConn = n
		}
	}

	if v := os.Getenv("SATCTL_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATCTL_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SATCTL_STREAM_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SATCTL_STREAM_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_tracked_per_conn", cfg.MaxTrackedPerConn,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}
