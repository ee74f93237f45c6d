package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/beacon-ingest/poller"
	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
	"github.com/radieske/provably-fair-dice/internal/shared/cache"
	"github.com/radieske/provably-fair-dice/internal/shared/config"
	"github.com/radieske/provably-fair-dice/internal/shared/logger"
	"github.com/radieske/provably-fair-dice/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	var src poller.Source
	if cfg.ChainSource == "simulated" {
		// chain local para desenvolvimento sem RPC
		src = poller.NewSimulator(cfg.ServiceName, time.Duration(cfg.BeaconPollMs)*time.Millisecond)
	} else {
		src = beacon.NewRPC(cfg.SolanaRPCURL)
	}
	store := beacon.NewRedisStore(rdb, time.Duration(cfg.BeaconTTLSecs)*time.Second)

	m := metrics.NewDice(prometheus.DefaultRegisterer, "dice_beacon")

	p := &poller.Poller{
		Log:         log,
		Source:      src,
		Sink:        store,
		Interval:    time.Duration(cfg.BeaconPollMs) * time.Millisecond,
		Backfill:    uint64(cfg.BeaconBackfill),
		OnPublished: func(slot uint64) { m.BeaconTip.Set(float64(slot)) },
		OnError:     m.OnError,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, map[string]metrics.HealthFunc{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		"chain": func(ctx context.Context) error {
			_, err := src.FinalizedSlot(ctx)
			return err
		},
	})
	defer metricsSrv.Close()

	log.Info("beacon-ingest started", zap.String("chain", cfg.ChainSource), zap.Int("poll_ms", cfg.BeaconPollMs))
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("poller stopped with error", zap.Error(err))
	}
	log.Info("beacon-ingest stopped")
}
