// Package sync はdirty記事のバックグラウンド同期ジョブを提供する。
// ジョブ本体と、バックオフ付きで再実行するスケジューラを含む。
package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/orbit/internal/model"
)

// DirtySyncer はdirty記事のバッチ同期の実行インターフェース。
type DirtySyncer interface {
	// SyncDirty はdirtyな全行をリモートと突き合わせる。
	// 一時的な失敗で打ち切った場合にエラーを返す。
	SyncDirty(ctx context.Context) error
}

// Job はdirty同期の1回分の実行を表す。
// Runの失敗は「バックオフ後に再実行してほしい」の意味で、
// 成功は「完了、再実行不要」の意味。
type Job struct {
	syncer DirtySyncer
	logger *slog.Logger
}

// NewJob はJobの新しいインスタンスを生成する。
func NewJob(syncer DirtySyncer, logger *slog.Logger) *Job {
	return &Job{
		syncer: syncer,
		logger: logger,
	}
}

// Run は同期を1回実行する。
// 一時的な失敗は再実行が必要なためエラーとして返す。
// 恒久的な失敗はこれ以上の再実行に意味がないため完了として扱う。
func (j *Job) Run(ctx context.Context) error {
	runID := uuid.New().String()
	start := time.Now()

	j.logger.Info("dirty同期ジョブを開始します",
		slog.String("run_id", runID),
	)

	if err := j.syncer.SyncDirty(ctx); err != nil {
		if model.IsTransient(err) {
			j.logger.Warn("dirty同期ジョブが一時的に失敗しました。再実行が必要です",
				slog.String("run_id", runID),
				slog.String("error", err.Error()),
				slog.Duration("elapsed", time.Since(start)),
			)
			return err
		}

		j.logger.Warn("dirty同期ジョブが恒久的に失敗しました。再実行しません",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	j.logger.Info("dirty同期ジョブが完了しました",
		slog.String("run_id", runID),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}
