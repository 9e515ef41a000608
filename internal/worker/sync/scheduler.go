package sync

import (
	"context"
	"log/slog"
	"time"
)

// JobRunner は同期ジョブの実行インターフェース。
type JobRunner interface {
	// Run はジョブを1回実行する。エラーは再実行依頼を意味する。
	Run(ctx context.Context) error
}

// Scheduler は同期ジョブの実行依頼を受け付け、線形バックオフで
// 成功するまで再実行する。
//
// 依頼はユニークワークとして扱う: 実行中に届いた依頼は1件の後続実行に
// 合流し、同じジョブが並行して走ることはない。
type Scheduler struct {
	job        JobRunner
	logger     *slog.Logger
	backoff    time.Duration
	backoffMax time.Duration
	pending    chan struct{}
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// backoffは試行回数に比例して伸びる再実行間隔の単位で、backoffMaxで頭打ちになる。
func NewScheduler(job JobRunner, logger *slog.Logger, backoff, backoffMax time.Duration) *Scheduler {
	return &Scheduler{
		job:        job,
		logger:     logger,
		backoff:    backoff,
		backoffMax: backoffMax,
		pending:    make(chan struct{}, 1),
	}
}

// Enqueue は同期ジョブの実行を依頼する。
// 未消化の依頼が既にある場合は何もしない（合流）。ブロックしない。
func (s *Scheduler) Enqueue() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Start は依頼を待ち受けるループを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("backoff", s.backoff),
		slog.Duration("backoff_max", s.backoffMax),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-s.pending:
		}

		s.runWithBackoff(ctx)
	}
}

// runWithBackoff はジョブが成功するまで線形バックオフで再実行する。
// 1回目の失敗後はbackoff、2回目はbackoff*2、と伸びてbackoffMaxで頭打ち。
func (s *Scheduler) runWithBackoff(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		err := s.job.Run(ctx)
		if err == nil {
			return
		}

		delay := time.Duration(attempt) * s.backoff
		if delay > s.backoffMax {
			delay = s.backoffMax
		}

		s.logger.Warn("同期ジョブを再スケジュールします",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
