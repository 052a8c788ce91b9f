// Package cleanup は期限切れセットアップトークンの自動削除ジョブを提供する。
// 有効期限を超過したトークンを日次バッチで削除する。期限切れトークンは
// アクセス時にも削除されるため、このジョブは一度もアクセスされなかった
// トークンの掃除を担当する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredDeleter は期限切れトークンの削除を抽象化するインターフェース。
// repository.SetupTokenRepositoryの部分集合として定義する。
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// PurgeMetrics は削除件数の記録先。
type PurgeMetrics interface {
	RecordSetupTokensPurged(count int64)
}

// CleanupJob は期限切れセットアップトークンの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	tokens  ExpiredDeleter
	logger  *slog.Logger
	metrics PurgeMetrics
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(tokens ExpiredDeleter, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		tokens: tokens,
		logger: logger,
	}
}

// SetMetrics は計測の記録先を設定する。未設定の場合は記録しない。
func (j *CleanupJob) SetMetrics(m PurgeMetrics) {
	j.metrics = m
}

// Run は有効期限を超過したセットアップトークンを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.tokens.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("トークンクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("トークンクリーンアップの実行に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordSetupTokensPurged(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("トークンクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回Runを実行し、以降は指定間隔で繰り返す
// バックグラウンドループを開始する。コンテキストのキャンセルで停止する。
// 実行時エラーはログに記録して継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	go func() {
		if err := j.Run(ctx); err != nil {
			j.logger.Error("起動時クリーンアップに失敗しました",
				slog.String("error", err.Error()),
			)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := j.Run(ctx); err != nil {
					j.logger.Error("定期クリーンアップに失敗しました",
						slog.String("error", err.Error()),
					)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
