// Package cleanup はブラウザストレージの自動削除ジョブを提供する。
// 最終更新から保持期間（デフォルト30日）を超えたブラウザのトークン、ユーザー、
// サインイン中のメールアドレス、トーストを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultIdleTTL は保持期間のデフォルト値。
const DefaultIdleTTL = 30 * 24 * time.Hour

// Purger は放置されたブラウザのデータを削除する。
// repository.LocalStorageRepositoryの実装が満たす。
type Purger interface {
	PurgeIdle(ctx context.Context, idleFor time.Duration) (int64, error)
}

// Recorder は削除件数を記録する。
type Recorder interface {
	RecordStoragePurged(count int64)
}

// CleanupJob は放置されたブラウザストレージの削除ジョブ。
// 冪等で、削除対象がない場合もエラーにしない。
type CleanupJob struct {
	purger   Purger
	recorder Recorder
	logger   *slog.Logger
	IdleTTL  time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(purger Purger, recorder Recorder, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		purger:   purger,
		recorder: recorder,
		logger:   logger,
		IdleTTL:  DefaultIdleTTL,
	}
}

// Run はIdleTTL以上更新のないブラウザのデータを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.purger.PurgeIdle(ctx, j.IdleTTL)
	if err != nil {
		j.logger.Error("browser storage cleanup failed",
			slog.String("error", err.Error()),
			slog.Duration("idle_ttl", j.IdleTTL),
		)
		return fmt.Errorf("failed to purge idle browser storage: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordStoragePurged(deleted)
	}

	j.logger.Info("browser storage cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Duration("idle_ttl", j.IdleTTL),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Loop はintervalごとにRunを実行する。起動直後に1回実行し、ctxが終了するまで戻らない。
// 1回の失敗でループは止めない。
func (j *CleanupJob) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_ = j.Run(ctx)

		select {
		case <-ctx.Done():
			j.logger.Info("browser storage cleanup loop stopped")
			return
		case <-ticker.C:
		}
	}
}
