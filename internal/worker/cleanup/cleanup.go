// Package cleanup は長期間更新されていないクライアント状態の削除ジョブを提供する。
// 保持期間（デフォルト90日）を超えて更新のないclient_stateの行を日次で削除する。
// 訪問者が戻ってこなかったウィッシュリストや期限切れトークンが対象になる。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// StateCleanupJob は保持期間を超過したクライアント状態の削除ジョブ。
// 何度実行しても結果が変わらない冪等な削除を行う。
type StateCleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // 最終更新からの保持日数（デフォルト: 90）
}

// NewStateCleanupJob は新しいStateCleanupJobを生成する。
func NewStateCleanupJob(db Executor, logger *slog.Logger, retentionDays int) *StateCleanupJob {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &StateCleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Run はupdated_atがRetentionDays日前より古い行を削除する。
func (j *StateCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	result, err := j.db.ExecContext(ctx,
		`DELETE FROM client_state WHERE updated_at < now() - $1::interval`,
		interval,
	)
	if err != nil {
		j.logger.Error("クライアント状態のクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("クライアント状態のクリーンアップに失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("クライアント状態のクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// RunDaily は起動直後に1回、その後24時間ごとにRunを実行する。
// ctxがキャンセルされると戻る。
func (j *StateCleanupJob) RunDaily(ctx context.Context) {
	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Warn("cleanup run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil && ctx.Err() == nil {
				j.logger.Warn("cleanup run failed", slog.String("error", err.Error()))
			}
		}
	}
}
