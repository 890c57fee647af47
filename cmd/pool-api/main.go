package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httpapi "github.com/radieske/prediction-pool/internal/pool-api/http"
	"github.com/radieske/prediction-pool/internal/pool-api/ws"
	"github.com/radieske/prediction-pool/internal/ranking"
	"github.com/radieske/prediction-pool/internal/repo"
	"github.com/radieske/prediction-pool/internal/result-sync/publisher"
	"github.com/radieske/prediction-pool/internal/scoring"
	"github.com/radieske/prediction-pool/internal/scoring-worker/consumer"
	"github.com/radieske/prediction-pool/internal/scoring-worker/pubsub"
	"github.com/radieske/prediction-pool/internal/shared/cache"
	"github.com/radieske/prediction-pool/internal/shared/config"
	"github.com/radieske/prediction-pool/internal/shared/db"
	"github.com/radieske/prediction-pool/internal/shared/kafka"
	"github.com/radieske/prediction-pool/internal/shared/logger"
	"github.com/radieske/prediction-pool/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pool-api"
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Env == "local" {
		if err := repo.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	store := repo.NewPostgres(pg)

	weights := scoring.Weights{Goal: cfg.PointsGoal, Win: cfg.PointsWin, Tie: cfg.PointsTie, Correct: cfg.PointsCorrect}
	if err := weights.Validate(); err != nil {
		log.Fatal("invalid point weights", zap.Error(err))
	}

	// Métricas Prometheus do motor de pontuação
	awarded := prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_api_entries_awarded_total", Help: "lançamentos gravados"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_api_entries_skipped_total", Help: "lançamentos já existentes"})
	scored := prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_api_matches_scored_total", Help: "partidas pontuadas"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pool_api_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(awarded, skipped, scored, errorsBy)

	engine := scoring.NewEngine(log, store, weights)
	engine.Locker = cache.NewRedisLocker(rdb, cfg.ScoringLockTTL)
	engine.OnAwarded = awarded.Inc
	engine.OnSkipped = skipped.Inc
	engine.OnMatchScored = scored.Inc
	engine.OnError = func(stage string) { errorsBy.WithLabelValues(stage).Inc() }

	ranker := ranking.NewCachedRanker(rdb, ranking.NewAggregator(store, weights), cfg.LeaderboardCacheTTL, log)

	brokers := kafka.Brokers(cfg.KafkaBrokers)
	finalized, err := publisher.NewKafkaPublisher(brokers, cfg.TopicMatchFinalized, cfg.Env, log)
	if err != nil {
		log.Fatal("kafka publisher", zap.Error(err))
	}
	defer finalized.Close()
	completed, err := publisher.NewKafkaPublisher(brokers, cfg.TopicScoringCompleted, cfg.Env, log)
	if err != nil {
		log.Fatal("kafka publisher", zap.Error(err))
	}
	defer completed.Close()

	pass := &consumer.Pass{
		Log:       log,
		Engine:    engine,
		Cache:     ranker,
		Completed: completed,
		Broadcast: pubsub.NewLeaderboardBroadcaster(rdb, cfg.RedisPubSubChannel, ranker, store),
		OnError:   func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// WebSocket do ranking alimentado pelo Redis Pub/Sub
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log)

	api := &httpapi.API{
		Log:       log,
		Store:     store,
		Ranker:    ranker,
		Scorer:    pass,
		Publisher: finalized,
		WS:        hub,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort,
		metrics.Check{Name: "postgres", Fn: store.Ping},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("pool-api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("pool-api stopped")
}
