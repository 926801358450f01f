package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/shelfauth"
	"github.com/MrEthical07/shelfauth/directory"
	"github.com/MrEthical07/shelfauth/httpapi"
	"github.com/MrEthical07/shelfauth/kv"
	promexport "github.com/MrEthical07/shelfauth/metrics/export/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the shelfauth HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings(viper.GetViper())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, st, log.Logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "address to listen on")
	_ = viper.BindPFlag(keyServerAddr, serveCmd.Flags().Lookup("addr"))
}

func serve(ctx context.Context, st settings, logger zerolog.Logger) error {
	for _, w := range st.Engine.Lint() {
		logger.Warn().Str("code", w.Code).Msg(w.Message)
	}

	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	b := shelfauth.New().
		WithConfig(st.Engine).
		WithLogger(logger)

	var memStore *kv.MemoryStore
	if st.Engine.Cache.Backend == shelfauth.CacheBackendMemory {
		memStore = kv.NewMemoryStore()
		b = b.WithStore(memStore)
	} else {
		client, closeRedis, err := openRedis(ctx, st, logger)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, closeRedis)
		b = b.WithRedis(client)
	}

	dir, closeDir, err := openDirectory(st.DirectoryDSN)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, closeDir)
	b = b.WithDirectory(dir)

	if st.Engine.Audit.Enabled {
		b = b.WithAuditSink(shelfauth.NewLoggerSink(logger.With().Str("component", "audit").Logger()))
	}

	engine, err := b.BuildContext(ctx)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	cleanups = append(cleanups, engine.Close)

	report := engine.SecurityReport()
	logger.Info().
		Bool("production", report.ProductionMode).
		Str("signing", report.SigningAlgorithm).
		Str("identity", report.IdentityMode).
		Str("cache", report.CacheBackend).
		Bool("login_throttle", report.LoginThrottleActive).
		Bool("catalog_budget", report.CatalogBudgetActive).
		Bool("audit", report.AuditActive).
		Msg("security.posture")
	for _, w := range report.Warnings() {
		logger.Warn().Str("warning", w).Msg("security.posture")
	}

	api := httpapi.New(engine, httpapi.Options{
		Logger:            logger,
		MetricsHandler:    promexport.NewExporter(engine).Handler(),
		TrustProxyHeaders: st.TrustProxy,
	})

	server := &http.Server{
		Addr:              st.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", st.Addr).Str("env", string(st.Engine.Environment)).Msg("server.starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server crashed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("server.shutting_down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), st.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if memStore != nil {
		g.Go(func() error {
			sweepLoop(gctx, memStore, st.Engine.Cache.SweepInterval, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server.exited")
	return nil
}

// openRedis connects to redis.addr. With no address outside production it
// starts an in-process server instead.
func openRedis(ctx context.Context, st settings, logger zerolog.Logger) (redis.UniversalClient, func(), error) {
	addr := st.RedisAddr
	var mr *miniredis.Miniredis
	if addr == "" {
		if st.Engine.Environment == shelfauth.EnvProduction {
			return nil, nil, errors.New("redis.addr is required in production")
		}
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start in-process redis: %w", err)
		}
		addr = mr.Addr()
		logger.Warn().Str("addr", addr).Msg("redis.in_process: sessions are lost on restart")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    strings.Split(addr, ","),
		Password: st.RedisPassword,
		DB:       st.RedisDB,
	})
	closeFn := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, closeFn, nil
}

// openDirectory opens the sqlite directory at dsn. "memory" keeps principals
// in process.
func openDirectory(dsn string) (directory.Directory, func(), error) {
	if dsn == "" || dsn == "memory" {
		return directory.NewMemory(), func() {}, nil
	}
	dir, err := directory.OpenSQLite(dsn)
	if err != nil {
		return nil, nil, err
	}
	return dir, func() { _ = dir.Close() }, nil
}

func sweepLoop(ctx context.Context, store *kv.MemoryStore, every time.Duration, logger zerolog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				logger.Debug().Int("removed", n).Int("remaining", store.Len()).Msg("cache.swept")
			}
		}
	}
}
