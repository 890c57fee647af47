package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

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
		cfg.ServiceName = "scoring-worker"
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "scoring_messages_consumed_total", Help: "mensagens consumidas"})
	passes := prometheus.NewCounter(prometheus.CounterOpts{Name: "scoring_passes_total", Help: "passadas de pontuação concluídas"})
	awarded := prometheus.NewCounter(prometheus.CounterOpts{Name: "scoring_entries_awarded_total", Help: "lançamentos gravados"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "scoring_entries_skipped_total", Help: "lançamentos já existentes"})
	scored := prometheus.NewCounter(prometheus.CounterOpts{Name: "scoring_matches_scored_total", Help: "partidas pontuadas"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scoring_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, passes, awarded, skipped, scored, errorsBy)
	onError := func(stage string) { errorsBy.WithLabelValues(stage).Inc() }

	engine := scoring.NewEngine(log, store, weights)
	engine.Locker = cache.NewRedisLocker(rdb, cfg.ScoringLockTTL)
	engine.OnAwarded = awarded.Inc
	engine.OnSkipped = skipped.Inc
	engine.OnMatchScored = scored.Inc
	engine.OnError = onError

	ranker := ranking.NewCachedRanker(rdb, ranking.NewAggregator(store, weights), cfg.LeaderboardCacheTTL, log)

	completed, err := publisher.NewKafkaPublisher(kafka.Brokers(cfg.KafkaBrokers), cfg.TopicScoringCompleted, cfg.Env, log)
	if err != nil {
		log.Fatal("kafka publisher", zap.Error(err))
	}
	defer completed.Close()

	// Configura o consumer Kafka (consumer group scoring-worker)
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMatchFinalized, cfg.ConsumerGroupID)
	defer reader.Close()

	proc := &consumer.Processor{
		Log:    log,
		Reader: reader,
		Pass: &consumer.Pass{
			Log:       log,
			Engine:    engine,
			Cache:     ranker,
			Completed: completed,
			Broadcast: pubsub.NewLeaderboardBroadcaster(rdb, cfg.RedisPubSubChannel, ranker, store),
			OnError:   onError,
		},
		OnConsumed: consumed.Inc,
		OnScored:   passes.Inc,
		OnError:    onError,
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort,
		metrics.Check{Name: "postgres", Fn: store.Ping},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)
	defer metricsSrv.Close()
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	// Passada inicial: resultados gravados enquanto o worker estava parado
	if _, err := proc.Pass.Run(ctx, "scoring"); err != nil {
		log.Warn("startup scoring pass failed", zap.Error(err))
	}

	log.Info("scoring-worker started")
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("scoring-worker stopped")
}
