package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"edu-quiz-engine/internal/app"
	"edu-quiz-engine/internal/config"
	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/gateway"
	"edu-quiz-engine/internal/infra/memory"
	pgjournal "edu-quiz-engine/internal/infra/postgres"
	redisstore "edu-quiz-engine/internal/infra/redis"
	"edu-quiz-engine/internal/infra/sqlite"
)

// journal is what the CLI needs from a suspect-write journal backend.
type journal interface {
	app.SuspectJournal
	Pending(ctx context.Context, limit int) ([]domain.SuspectWrite, error)
}

// engine bundles the wired quiz service with the resources it holds.
type engine struct {
	service *app.QuizService
	journal journal
	closers []func()
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func newGateway(cfg config.Config, log *zap.Logger) *gateway.Client {
	httpClient := &http.Client{Timeout: config.TTLDuration(cfg.API.Timeout, 10*time.Second)}
	return gateway.NewClient(cfg.API.BaseURL, httpClient,
		gateway.WithToken(cfg.API.Token),
		gateway.WithRateLimit(cfg.API.RateLimit, cfg.API.Burst),
		gateway.WithLogger(log.Named("gateway")),
	)
}

// openJournal picks Postgres, then SQLite, then process memory.
func openJournal(ctx context.Context, cfg config.Config, log *zap.Logger) (journal, func(), error) {
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("suspect writes journaled to postgres")
		return pgjournal.NewJournal(pool), pool.Close, nil
	}
	if cfg.SQLite.Path != "" {
		j, err := sqlite.NewJournal(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		log.Info("suspect writes journaled to sqlite", zap.String("path", cfg.SQLite.Path))
		return j, func() { _ = j.Close() }, nil
	}
	log.Warn("no journal database configured, suspect writes kept in memory")
	return memory.NewJournal(), func() {}, nil
}

func newEngine(ctx context.Context, cfg config.Config, log *zap.Logger) (*engine, error) {
	e := &engine{}
	client := newGateway(cfg, log)

	j, closeJournal, err := openJournal(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	e.journal = j
	e.closers = append(e.closers, closeJournal)

	claimTTL := config.TTLDuration(cfg.Rewards.ClaimTTL, time.Minute)
	var (
		sessions app.SessionRepository
		claims   app.ClaimStore
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		e.closers = append(e.closers, func() { _ = redisClient.Close() })
		sessionTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)
		sessions = redisstore.NewSessionStore(redisClient, sessionTTL, log.Named("sessions"))
		claims = redisstore.NewClaimStore(redisClient, claimTTL)
	} else {
		sessions = memory.NewSessionStore()
		claims = memory.NewClaimStore(claimTTL)
	}

	aggregator := app.NewQuizAggregator(client, app.AggregatorOptions{
		OptionConcurrency: cfg.Quiz.OptionConcurrency,
		StoryFetchSize:    cfg.Quiz.StoryFetchSize,
		PageSize:          cfg.Quiz.PageSize,
		Logger:            log.Named("aggregator"),
	})
	attempts := app.NewAttemptManager(client, log.Named("attempts"))
	submissions := app.NewSubmissionService(client, attempts, j, log.Named("submissions"))
	rewards := app.NewBadgeAssigner(client, claims, cfg.Rewards.Threshold, log.Named("rewards"))

	e.service = app.NewQuizService(sessions, aggregator, attempts, submissions, rewards, log)
	return e, nil
}
