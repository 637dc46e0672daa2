package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Collab/internal/adapters/http"
	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/config"
	"github.com/dkeye/Collab/internal/directory"
	"github.com/dkeye/Collab/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()

	cmd := &cobra.Command{
		Use:          "collab-server",
		Short:        "Realtime collaborative editing rooms over WebSocket and WebRTC",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 8080, "HTTP listen port")
	flags.String("mode", "release", "gin mode (debug, release)")
	flags.String("config-env", "", "config file suffix, config/config.<env>.yaml")
	_ = v.BindPFlag("port", flags.Lookup("port"))
	_ = v.BindPFlag("mode", flags.Lookup("mode"))
	_ = v.BindPFlag("config_env", flags.Lookup("config-env"))

	return cmd
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Mode == "debug" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func openDirectory(ctx context.Context, cfg *config.Config) (directory.Directory, func(), error) {
	if cfg.RedisAddr == "" {
		return directory.NewMemory(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("room directory on redis")
	return directory.NewRedis(client, directory.DefaultRedisKey), func() { _ = client.Close() }, nil
}

func run(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	defaults, err := domain.LoadOptions(cfg.OptionsPath)
	if err != nil {
		return err
	}

	dir, closeDir, err := openDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDir()
	pub := directory.NewPublisher(dir)

	policy, err := app.PolicyFor(cfg.Backpressure)
	if err != nil {
		return err
	}

	o := orch.New(defaults)
	o.Policy = policy
	o.IDs = app.NewIDGenerator(cfg.IDBudget)
	o.Loop = orch.NewDispatcher(0)
	o.Directory = pub
	o.Lookup = dir

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router.SetupRouter(ctx, cfg, o, dir),
	}

	// the publisher outlives the loop so the final withdrawals get written
	pubCtx, stopPub := context.WithCancel(context.Background())
	defer stopPub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stopPub()
		err := o.Loop.Run(gctx)
		n := o.WithdrawAll()
		log.Info().Int("rooms", n).Msg("withdrew rooms from directory")
		return err
	})
	g.Go(func() error { return pub.Run(pubCtx) })
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Collab server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("Server exited gracefully")
	return err
}
