package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chronolot/chronolot/internal/auth"
	"github.com/chronolot/chronolot/internal/config"
	"github.com/chronolot/chronolot/internal/custody"
	"github.com/chronolot/chronolot/internal/entries"
	"github.com/chronolot/chronolot/internal/gateway"
	"github.com/chronolot/chronolot/internal/logger"
	"github.com/chronolot/chronolot/internal/raffle"
	"github.com/chronolot/chronolot/internal/registry"
	"github.com/chronolot/chronolot/internal/resolver"
	"github.com/chronolot/chronolot/internal/settlement"
	"github.com/chronolot/chronolot/internal/treasury"
	"github.com/chronolot/chronolot/pkg/clock"
	"github.com/chronolot/chronolot/pkg/messaging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Debug)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	var events *messaging.Client
	if cfg.NATSURL != "" {
		events, err = messaging.NewClient(messaging.Config{
			URL:            cfg.NATSURL,
			Name:           "raffled",
			ReconnectWait:  time.Second,
			MaxReconnects:  10,
			ConnectTimeout: 5 * time.Second,
		})
		if err != nil {
			zlog.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer events.Drain()
	} else {
		zlog.Warn("NATS_URL not set, events disabled")
	}

	bank, closeBank := buildBank(cfg, zlog)
	defer closeBank()

	store := raffle.NewStore()
	guard := auth.NewGuard(cfg.OperatorID)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	clk := clock.System{}

	trs, err := treasury.New(guard, bank, events, zlog.Named("treasury"), cfg.FeeBps)
	if err != nil {
		zlog.Fatal("invalid fee configuration", zap.Error(err))
	}

	reg := registry.New(store, clk, events, zlog.Named("registry"))
	led := entries.New(store, bank, events, zlog.Named("entries"))
	res := resolver.New(cfg.MaxScanSteps)
	eng := settlement.New(store, guard, trs, bank, res, clk, events, zlog.Named("settlement"))

	gw := gateway.New(gateway.Config{
		RedisURL: cfg.RedisURL,
		Debug:    cfg.Debug,
	}, reg, led, eng, trs, tokens, events, zlog.Named("gateway"))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: gw.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		zlog.Info("raffled listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		zlog.Fatal("raffled stopped", zap.Error(err))
	}
	zlog.Info("raffled shut down cleanly")
}

// buildBank selects the ValueTransfer backend: the Postgres custody ledger
// when DATABASE_URL is set, otherwise the in-memory bank.
func buildBank(cfg *config.Config, zlog *zap.Logger) (custody.ValueTransfer, func()) {
	if cfg.DatabaseURL == "" {
		zlog.Warn("DATABASE_URL not set, using in-memory custody bank")
		return custody.NewBank(), func() {}
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("failed to open database", zap.Error(err))
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ledger := custody.NewPostgresLedger(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ledger.Migrate(ctx); err != nil {
		zlog.Fatal("failed to migrate custody schema", zap.Error(err))
	}

	return ledger, func() { db.Close() }
}
