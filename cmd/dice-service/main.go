package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/beacon-ingest/poller"
	dhttp "github.com/radieske/provably-fair-dice/internal/dice-service/http"
	"github.com/radieske/provably-fair-dice/internal/dice-service/ws"
	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
	"github.com/radieske/provably-fair-dice/internal/dice/emitter"
	"github.com/radieske/provably-fair-dice/internal/dice/game"
	"github.com/radieske/provably-fair-dice/internal/dice/ledger"
	"github.com/radieske/provably-fair-dice/internal/shared/cache"
	"github.com/radieske/provably-fair-dice/internal/shared/config"
	"github.com/radieske/provably-fair-dice/internal/shared/db"
	"github.com/radieske/provably-fair-dice/internal/shared/kafka"
	"github.com/radieske/provably-fair-dice/internal/shared/logger"
	"github.com/radieske/provably-fair-dice/internal/shared/metrics"
)

type store interface {
	ledger.Ledger
	ledger.LogReader
}

type chain interface {
	beacon.Beacon
	beacon.Clock
}

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

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	checks := map[string]metrics.HealthFunc{}

	// Ledger: Postgres em dev/prod, memória no ENV=local sem banco
	var led store
	switch cfg.LedgerDriver {
	case "memory":
		led = ledger.NewMemory()
	default:
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()
		pgl := ledger.NewPostgres(pg)
		if err := pgl.EnsureSchema(ctx); err != nil {
			log.Fatal("ledger schema", zap.Error(err))
		}
		led = pgl
		checks["postgres"] = pg.PingContext
	}

	// Redis: beacons publicados pelo beacon-ingest-service e feed ao vivo
	var rdb *redis.Client
	if cfg.BeaconSource != "memory" {
		rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var src chain
	switch cfg.BeaconSource {
	case "rpc":
		src = beacon.NewRPC(cfg.SolanaRPCURL)
	case "memory":
		// sem Redis: a chain simulada alimenta o beacon em memória dentro do próprio processo
		mem := beacon.NewMemory()
		interval := time.Duration(cfg.BeaconPollMs) * time.Millisecond
		sim := &poller.Poller{
			Log:      log.Named("beacon"),
			Source:   poller.NewSimulator(cfg.ServiceName, interval),
			Sink:     poller.MemorySink{Beacons: mem},
			Interval: interval,
			Backfill: uint64(cfg.BeaconBackfill),
		}
		go func() {
			if err := sim.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("simulated beacon stopped", zap.Error(err))
			}
		}()
		src = mem
	default:
		store := beacon.NewRedisStore(rdb, time.Duration(cfg.BeaconTTLSecs)*time.Second)
		store.MaxTipAge = time.Duration(cfg.BeaconMaxTipAgeMs) * time.Millisecond
		src = store
	}

	// Kafka writers (bet_placed / bet_resolved / bet_refunded)
	placedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	resolvedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetResolved)
	refundedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetRefunded)
	defer placedW.Close()
	defer resolvedW.Close()
	defer refundedW.Close()

	emitters := emitter.Multi{emitter.NewKafkaEmitter(resolvedW, refundedW)}
	if rdb != nil {
		emitters = append(emitters, emitter.NewRedisBroadcaster(rdb))
	}

	// Métricas Prometheus
	m := metrics.NewDice(prometheus.DefaultRegisterer, "dice_api")

	engine, err := game.New(gcfg, led, src, src, emitters, log)
	if err != nil {
		log.Fatal("engine", zap.Error(err))
	}
	engine.OnPlaced = m.OnPlaced
	engine.OnResolved = m.OnResolved
	engine.OnRefunded = m.OnRefunded
	engine.OnError = m.OnError

	// Feed WebSocket alimentado pelo Redis Pub/Sub (resoluções do resolver-worker também chegam aqui)
	hub := ws.NewHub(log, func(*http.Request) bool { return true })
	if rdb != nil {
		ws.StartRedisSubscriber(ctx, rdb, hub)
	}

	api := dhttp.NewServer(log, engine, emitter.NewKafkaPublisher(placedW), led)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.Handle("/", api.Router())

	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, checks)
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("dice-service listening",
		zap.String("addr", apiSrv.Addr),
		zap.String("vault", engine.Vault().String()),
		zap.String("beacon_source", cfg.BeaconSource))
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("dice-service stopped")
}
