package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/orbit/internal/model"
	"github.com/hitoshi/orbit/internal/remote"
	"github.com/hitoshi/orbit/internal/repository"
)

// SyncRequester はdirty同期ジョブの再実行依頼を受け付ける。
// 一時的な失敗でブックマーク送信を諦めたときに呼ばれる。
type SyncRequester interface {
	// Enqueue は同期ジョブの実行を依頼する。実行中の依頼は1件に合流する。
	Enqueue()
}

// SyncMetricsRecorder はコーディネーターの観測メトリクスを受け取る。
type SyncMetricsRecorder interface {
	RecordRefreshSuccess()
	RecordRefreshFailure(kind string)
	RecordBookmarkSync(result string)
	SetDirtyArticles(count int)
}

// Coordinator はローカルストアとリモートAPIの間でキャッシュと同期を調整する。
//
// 構築後にStartを呼ぶと2つのアクティビティが走る:
// ストア変更を公開ビューに反映し続ける購読と、1回限りのブートストラップ取得。
// どちらもコーディネーター自身の準備完了をブロックしない。
// 公開ビューはStartの前後を問わずSnapshotで読める。
type Coordinator struct {
	repo    repository.ArticleRepository
	service remote.ArticleService
	syncs   SyncRequester
	view    *PublishedView
	logger  *slog.Logger
	metrics SyncMetricsRecorder // nilの場合は記録しない
	now     func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator はCoordinatorの新しいインスタンスを生成する。
// metricsはnilを許容する。
func NewCoordinator(
	repo repository.ArticleRepository,
	service remote.ArticleService,
	syncs SyncRequester,
	view *PublishedView,
	logger *slog.Logger,
	metrics SyncMetricsRecorder,
) *Coordinator {
	return &Coordinator{
		repo:    repo,
		service: service,
		syncs:   syncs,
		view:    view,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// View は公開ビューを返す。
func (c *Coordinator) View() *PublishedView {
	return c.view
}

// Snapshot は公開ビューの現在のスナップショットを返す。
func (c *Coordinator) Snapshot() ([]model.Article, bool) {
	return c.view.Snapshot()
}

// Start は購読アクティビティとブートストラップ取得を起動する。
// どちらもStopまたはctxのキャンセルで停止する。
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(2)
	go c.runSubscription(ctx)
	go c.runBootstrap(ctx)
}

// Stop は両アクティビティを停止し、終了まで待つ。
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// runSubscription はストアの変更を購読し、変更のたびに全件を読み直して
// 公開ビューに発行し続ける。ストア読み出しの失敗はユーザーに見せず、
// ログに記録して購読を継続する。
func (c *Coordinator) runSubscription(ctx context.Context) {
	defer c.wg.Done()

	for {
		// 読み出し前にチャネルを取得する。逆順だと読み出しと待機の間の
		// 変更を取りこぼす。
		changed := c.repo.Changed()

		rows, err := c.repo.ListWithCategories(ctx, repository.ListFilter{})
		if err != nil {
			c.logger.Error("ストアの読み出しに失敗しました。購読は継続します",
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		articles := make([]model.Article, 0, len(rows))
		dirtyCount := 0
		for _, row := range rows {
			if row.IsDirty {
				dirtyCount++
			}
			articles = append(articles, row.ToDomain())
		}
		c.view.publish(articles)
		if c.metrics != nil {
			c.metrics.SetDirtyArticles(dirtyCount)
		}

		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
	}
}

// runBootstrap は起動時に1回だけリモート取得を試みる。
// 失敗はログのみで握りつぶす。キャッシュ単独での可用性を優先するため。
// 公開ビューへの反映は取得自体ではなく、ストア変更を観測する購読側が行う。
func (c *Coordinator) runBootstrap(ctx context.Context) {
	defer c.wg.Done()

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("ブートストラップ取得に失敗しました。キャッシュのみで継続します",
			slog.String("error", err.Error()),
		)
	}
}

// Refresh はリモートから記事一覧を取得し、ストアをトランザクション内で
// 全件入れ替える。リモート失敗はそのまま返し、ローカル状態は変更しない。
func (c *Coordinator) Refresh(ctx context.Context) error {
	articles, err := c.service.FetchArticles(ctx)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordRefreshFailure(model.KindOf(err).String())
		}
		return err
	}

	rows := make([]model.ArticleWithCategories, 0, len(articles))
	for _, article := range articles {
		rows = append(rows, article.ToRecord())
	}

	if err := c.repo.ReplaceAll(ctx, rows); err != nil {
		if c.metrics != nil {
			c.metrics.RecordRefreshFailure("store")
		}
		return err
	}

	if c.metrics != nil {
		c.metrics.RecordRefreshSuccess()
	}
	c.logger.Info("記事一覧を更新しました",
		slog.Int("article_count", len(rows)),
	)
	return nil
}

// SetBookmark は楽観的プロトコルでブックマーク状態を変更する。
//
// ローカルへ楽観的にコミットしてからリモートへ送信する。リモート成功で
// dirtyを解除。一時的な失敗では楽観的状態を保持したまま再同期を依頼して
// 失敗を返す。恒久的な失敗では変異前スナップショットへロールバックして
// 失敗を返す。戻り値がnil以外のとき、行がdirtyであることと再試行が
// 控えていることは同値。
func (c *Coordinator) SetBookmark(ctx context.Context, id string, desired bool) error {
	prev, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if prev == nil {
		return model.NewNotFoundError(id)
	}

	// ネットワーク呼び出しの前にローカルコミットする。
	// 公開ビューは購読経由でこの時点の状態を映す。
	if err := c.repo.CommitOptimistic(ctx, id, desired, c.now()); err != nil {
		return err
	}

	if err := c.service.Bookmark(ctx, id, desired); err != nil {
		if model.IsTransient(err) {
			c.logger.Warn("ブックマーク送信が一時的に失敗しました。再同期を依頼します",
				slog.String("article_id", id),
				slog.String("error", err.Error()),
			)
			if c.metrics != nil {
				c.metrics.RecordBookmarkSync("deferred")
			}
			c.syncs.Enqueue()
			return err
		}

		c.logger.Warn("ブックマーク送信が恒久的に失敗しました。ローカル変更を巻き戻します",
			slog.String("article_id", id),
			slog.String("error", err.Error()),
		)
		if c.metrics != nil {
			c.metrics.RecordBookmarkSync("rolled_back")
		}
		if rbErr := c.repo.Rollback(ctx, prev); rbErr != nil {
			c.logger.Error("ロールバックに失敗しました",
				slog.String("article_id", id),
				slog.String("error", rbErr.Error()),
			)
		}
		return err
	}

	if err := c.repo.ConfirmSynced(ctx, id); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordBookmarkSync("confirmed")
	}
	return nil
}

// SyncDirty はdirtyな全行をリモートと突き合わせる。
//
// 成功と恒久的な失敗はその行のdirtyを解除して次へ進む
// （サーバーの拒絶は最終結果として受け入れる）。
// 一時的な失敗は直ちに処理を打ち切ってエラーを返す。残りの行はdirtyのまま
// となり、ジョブランナーがジョブ全体を再スケジュールする。
func (c *Coordinator) SyncDirty(ctx context.Context) error {
	dirty, err := c.repo.ListDirty(ctx)
	if err != nil {
		return err
	}
	if len(dirty) == 0 {
		return nil
	}

	c.logger.Info("dirty記事の同期を開始します",
		slog.Int("dirty_count", len(dirty)),
	)

	for _, row := range dirty {
		err := c.service.Bookmark(ctx, row.ID, row.IsBookmarked)
		if err == nil {
			if err := c.repo.ConfirmSynced(ctx, row.ID); err != nil {
				return err
			}
			if c.metrics != nil {
				c.metrics.RecordBookmarkSync("confirmed")
			}
			continue
		}

		if model.IsTransient(err) {
			// 一時的な失敗は大抵ネットワーク全体の問題。残りを試すのは
			// 無駄打ちなので打ち切り、バックオフ後の全体再実行に任せる。
			c.logger.Warn("一時的な失敗により同期を打ち切ります",
				slog.String("article_id", row.ID),
				slog.String("error", err.Error()),
			)
			return err
		}

		c.logger.Warn("リモートに拒絶されたためdirtyを解除します",
			slog.String("article_id", row.ID),
			slog.String("error", err.Error()),
		)
		if c.metrics != nil {
			c.metrics.RecordBookmarkSync("rejected")
		}
		if err := c.repo.ConfirmSynced(ctx, row.ID); err != nil {
			return err
		}
	}

	return nil
}

// Categories はリモートからカテゴリ一覧を取得して返す。
func (c *Coordinator) Categories(ctx context.Context) ([]model.Category, error) {
	return c.service.FetchCategories(ctx)
}

// ListFiltered はフィルタに合致する記事をストアから読み出して返す。
func (c *Coordinator) ListFiltered(ctx context.Context, filter repository.ListFilter) ([]model.Article, error) {
	rows, err := c.repo.ListWithCategories(ctx, filter)
	if err != nil {
		return nil, err
	}

	articles := make([]model.Article, 0, len(rows))
	for _, row := range rows {
		articles = append(articles, row.ToDomain())
	}
	return articles, nil
}
