package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/datapulse-console/internal/config"
	"github.com/hitoshi/datapulse-console/internal/database"
	"github.com/hitoshi/datapulse-console/internal/handler"
	"github.com/hitoshi/datapulse-console/internal/repository"
)

const storagePingTimeout = 5 * time.Second

// connectRetry は起動時の接続リトライ。遅延はInitialから2倍ずつ増え、Maxで頭打ちになる。
type connectRetry struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

func defaultConnectRetry(attempts int) connectRetry {
	if attempts < 1 {
		attempts = 1
	}
	return connectRetry{Attempts: attempts, Initial: 500 * time.Millisecond, Max: 8 * time.Second}
}

// delay はfailures回失敗した後の待ち時間を返す。
func (r connectRetry) delay(failures int) time.Duration {
	d := r.Initial
	for i := 1; i < failures; i++ {
		d *= 2
		if d > r.Max {
			return r.Max
		}
	}
	return d
}

// ping はpingが成功するかAttempts回失敗するまで繰り返す。
func (r connectRetry) ping(ctx context.Context, target string, ping func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, storagePingTimeout)
		err = ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == r.Attempts {
			break
		}

		wait := r.delay(attempt)
		slog.Warn("storage not ready, retrying",
			slog.String("target", target),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// browserStorage はSTORAGE_BACKENDで選んだブラウザスコープストレージと、その死活確認・後始末をまとめる。
type browserStorage struct {
	backend string
	repo    repository.LocalStorageRepository
	health  handler.HealthChecker
	close   func() error
}

// openStorage は設定に従ってブラウザスコープストレージを開き、疎通を確認する。
func openStorage(ctx context.Context, cfg *config.Config) (*browserStorage, error) {
	retry := defaultConnectRetry(cfg.StorageConnectAttempts)

	switch cfg.StorageBackend {
	case config.StoragePostgres:
		return openPostgresStorage(ctx, cfg.DatabaseURL, retry)
	case config.StorageRedis:
		return openRedisStorage(ctx, cfg.RedisURL, cfg.StorageIdleTTL, retry)
	default:
		return &browserStorage{
			backend: config.StorageMemory,
			repo:    repository.NewMemoryLocalStorageRepo(),
			close:   func() error { return nil },
		}, nil
	}
}

func openPostgresStorage(ctx context.Context, databaseURL string, retry connectRetry) (*browserStorage, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	err = retry.ping(ctx, "postgres", func(ctx context.Context) error {
		return database.Ping(ctx, db, storagePingTimeout)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established", slog.String("url", maskDatabaseURL(databaseURL)))

	return &browserStorage{
		backend: config.StoragePostgres,
		repo:    repository.NewPostgresLocalStorageRepo(db),
		health:  dbHealthChecker(db),
		close:   db.Close,
	}, nil
}

func openRedisStorage(ctx context.Context, redisURL string, ttl time.Duration, retry connectRetry) (*browserStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	err = retry.ping(ctx, "redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established", slog.String("addr", opts.Addr))

	return &browserStorage{
		backend: config.StorageRedis,
		repo:    repository.NewRedisLocalStorageRepo(client, ttl),
		health: handler.HealthCheckerFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}),
		close: client.Close,
	}, nil
}

func dbHealthChecker(db *sql.DB) handler.HealthChecker {
	return handler.HealthCheckerFunc(db.PingContext)
}
