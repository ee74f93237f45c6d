package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
	"github.com/radieske/provably-fair-dice/internal/dice/emitter"
	"github.com/radieske/provably-fair-dice/internal/dice/game"
	"github.com/radieske/provably-fair-dice/internal/dice/ledger"
	"github.com/radieske/provably-fair-dice/internal/resolver-worker/consumer"
	"github.com/radieske/provably-fair-dice/internal/shared/cache"
	"github.com/radieske/provably-fair-dice/internal/shared/config"
	"github.com/radieske/provably-fair-dice/internal/shared/db"
	"github.com/radieske/provably-fair-dice/internal/shared/kafka"
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

	gcfg, err := game.ConfigFrom(cfg)
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// o worker precisa do mesmo ledger do dice-service: sempre Postgres
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	led := ledger.NewPostgres(pg)
	if err := led.EnsureSchema(ctx); err != nil {
		log.Fatal("ledger schema", zap.Error(err))
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	var src interface {
		beacon.Beacon
		beacon.Clock
	}
	if cfg.BeaconSource == "rpc" {
		src = beacon.NewRPC(cfg.SolanaRPCURL)
	} else {
		src = beacon.NewRedisStore(rdb, time.Duration(cfg.BeaconTTLSecs)*time.Second)
	}

	resolvedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetResolved)
	refundedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetRefunded)
	dlqW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlacedDLQ)
	defer resolvedW.Close()
	defer refundedW.Close()
	defer dlqW.Close()

	// consumer group resolver-worker, commit manual após cada mensagem tratada
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetPlaced, "resolver-worker")
	defer reader.Close()

	m := metrics.NewDice(prometheus.DefaultRegisterer, "dice_resolver")

	engine, err := game.New(gcfg, led, src, src, emitter.Multi{
		emitter.NewKafkaEmitter(resolvedW, refundedW),
		emitter.NewRedisBroadcaster(rdb),
	}, log)
	if err != nil {
		log.Fatal("engine", zap.Error(err))
	}
	engine.OnResolved = m.OnResolved
	engine.OnError = m.OnError

	proc := &consumer.Processor{
		Log:          log,
		Reader:       reader,
		DLQ:          dlqW,
		Resolver:     engine,
		MaxAttempts:  cfg.ResolveAttempts,
		Backoff:      time.Duration(cfg.ResolveBackoffMs) * time.Millisecond,
		MaxBackoff:   5 * time.Second,
		OnConsumed:   m.OnConsumed,
		OnRetry:      m.OnRetry,
		OnDeadLetter: m.OnDeadLetter,
		OnError:      m.OnError,
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	defer metricsSrv.Close()

	log.Info("resolver-worker started", zap.String("topic", cfg.TopicBetPlaced), zap.Int("max_attempts", cfg.ResolveAttempts))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("resolver-worker stopped")
}
