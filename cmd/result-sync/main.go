package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/prediction-pool/internal/feed"
	"github.com/radieske/prediction-pool/internal/repo"
	"github.com/radieske/prediction-pool/internal/result-sync/publisher"
	"github.com/radieske/prediction-pool/internal/result-sync/service"
	"github.com/radieske/prediction-pool/internal/shared/config"
	"github.com/radieske/prediction-pool/internal/shared/db"
	"github.com/radieske/prediction-pool/internal/shared/kafka"
	"github.com/radieske/prediction-pool/internal/shared/logger"
	"github.com/radieske/prediction-pool/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "result-sync"
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	store := repo.NewPostgres(pg)

	pub, err := publisher.NewKafkaPublisher(kafka.Brokers(cfg.KafkaBrokers), cfg.TopicMatchFinalized, cfg.Env, log)
	if err != nil {
		log.Fatal("kafka publisher", zap.Error(err))
	}
	defer pub.Close()

	recorded := prometheus.NewCounter(prometheus.CounterOpts{Name: "result_sync_results_recorded_total", Help: "resultados gravados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "result_sync_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(recorded, errorsBy)

	client := feed.New(cfg.FeedURL, cfg.FeedGroupID, cfg.FeedTeamID, cfg.FeedRPS)
	syncer := &service.Syncer{
		Log:        log,
		Source:     client,
		Store:      store,
		Publisher:  pub,
		Location:   client.Location,
		OnRecorded: recorded.Inc,
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Check{Name: "postgres", Fn: store.Ping})
	defer metricsSrv.Close()

	// Agenda primeiro: resultados só são gravados para partidas conhecidas
	if _, err := syncer.Import(ctx); err != nil {
		log.Warn("initial import failed", zap.Error(err))
	}

	log.Info("result-sync started", zap.Duration("interval", cfg.FeedPollInterval))
	if err := syncer.Run(ctx, cfg.FeedPollInterval); err != nil && ctx.Err() == nil {
		log.Fatal("result sync stopped with error", zap.Error(err))
	}
	log.Info("result-sync stopped")
}
