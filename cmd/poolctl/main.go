package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/radieske/prediction-pool/internal/feed"
	"github.com/radieske/prediction-pool/internal/ranking"
	"github.com/radieske/prediction-pool/internal/repo"
	"github.com/radieske/prediction-pool/internal/result-sync/service"
	"github.com/radieske/prediction-pool/internal/scoring"
	"github.com/radieske/prediction-pool/internal/shared/cache"
	"github.com/radieske/prediction-pool/internal/shared/config"
	"github.com/radieske/prediction-pool/internal/shared/db"
	"github.com/radieske/prediction-pool/internal/shared/logger"
)

// poolctl executa as operações do bolão sem depender dos serviços no ar
func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "poolctl"
	}

	zl, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zl.Sync()

	app := &cli.App{
		Name:  "poolctl",
		Usage: "administração do bolão",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "aplica as migrações do banco",
				Action: func(c *cli.Context) error {
					if err := repo.Migrate(cfg.PostgresDSN); err != nil {
						return err
					}
					fmt.Println("migrations applied")
					return nil
				},
			},
			{
				Name:  "import",
				Usage: "importa times e agenda do feed",
				Action: func(c *cli.Context) error {
					s, closeFn, err := newSyncer(c, cfg, zl)
					if err != nil {
						return err
					}
					defer closeFn()
					rep, err := s.Import(c.Context)
					if err != nil {
						return err
					}
					return printJSON(rep)
				},
			},
			{
				Name:  "sync",
				Usage: "grava os resultados finais publicados no feed",
				Action: func(c *cli.Context) error {
					s, closeFn, err := newSyncer(c, cfg, zl)
					if err != nil {
						return err
					}
					defer closeFn()
					rep, err := s.SyncResults(c.Context)
					if err != nil {
						return err
					}
					return printJSON(rep)
				},
			},
			{
				Name:  "score",
				Usage: "pontua todas as partidas jogadas e ainda não pontuadas",
				Action: func(c *cli.Context) error {
					pg, err := db.ConnectPostgres(c.Context, cfg.PostgresDSN)
					if err != nil {
						return err
					}
					defer pg.Close()
					store := repo.NewPostgres(pg)

					w, err := weights(cfg)
					if err != nil {
						return err
					}
					engine := scoring.NewEngine(zl, store, w)

					// Com Redis disponível, usa o mesmo lock e cache dos serviços
					rdb, rerr := cache.ConnectRedis(c.Context, cfg.RedisAddr)
					if rerr == nil {
						defer rdb.Close()
						engine.Locker = cache.NewRedisLocker(rdb, cfg.ScoringLockTTL)
					} else {
						zl.Warn("redis unavailable, using local lock", zap.Error(rerr))
					}

					rep, err := engine.ScorePending(c.Context)
					if rerr == nil && (rep.EntriesWritten > 0 || rep.MatchesScored > 0) {
						cached := ranking.NewCachedRanker(rdb, ranking.NewAggregator(store, w), cfg.LeaderboardCacheTTL, zl)
						if ierr := cached.Invalidate(c.Context); ierr != nil {
							zl.Warn("leaderboard cache invalidate failed", zap.Error(ierr))
						}
					}
					if perr := printJSON(rep); perr != nil {
						return perr
					}
					return err
				},
			},
			{
				Name:  "leaderboard",
				Usage: "imprime o ranking atual em JSON",
				Action: func(c *cli.Context) error {
					pg, err := db.ConnectPostgres(c.Context, cfg.PostgresDSN)
					if err != nil {
						return err
					}
					defer pg.Close()
					store := repo.NewPostgres(pg)

					w, err := weights(cfg)
					if err != nil {
						return err
					}
					rows, err := ranking.NewAggregator(store, w).Rank(c.Context)
					if err != nil {
						return err
					}
					names, err := store.ParticipantNames(c.Context)
					if err != nil {
						return err
					}
					return printJSON(ranking.WithNames(rows, names))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		zl.Fatal("poolctl", zap.Error(err))
	}
}

func weights(cfg config.Config) (scoring.Weights, error) {
	w := scoring.Weights{Goal: cfg.PointsGoal, Win: cfg.PointsWin, Tie: cfg.PointsTie, Correct: cfg.PointsCorrect}
	return w, w.Validate()
}

func newSyncer(c *cli.Context, cfg config.Config, zl *zap.Logger) (*service.Syncer, func(), error) {
	pg, err := db.ConnectPostgres(c.Context, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	client := feed.New(cfg.FeedURL, cfg.FeedGroupID, cfg.FeedTeamID, cfg.FeedRPS)
	s := &service.Syncer{
		Log:      zl,
		Source:   client,
		Store:    repo.NewPostgres(pg),
		Location: client.Location,
	}
	return s, func() { pg.Close() }, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
