// Package cache はオフラインファーストの記事キャッシュと同期の調整を行う。
// ローカルストアを唯一の真実とし、レンダリング層には公開ビュー経由の
// スナップショットだけを見せる。
package cache

import (
	"sync"

	"github.com/hitoshi/orbit/internal/model"
)

// PublishedView はレンダリング層が読む唯一の公開状態。
// 書き込みはコーディネーターの購読アクティビティのみが行う
// （単一書き手・複数読み手）。
type PublishedView struct {
	mu       sync.RWMutex
	articles []model.Article
	loaded   bool
	subs     map[chan []model.Article]struct{}
}

// NewPublishedView はPublishedViewの新しいインスタンスを生成する。
// 初回のpublishまでSnapshotのloadedはfalseを返す。
func NewPublishedView() *PublishedView {
	return &PublishedView{
		subs: make(map[chan []model.Article]struct{}),
	}
}

// Snapshot は現在のスナップショットを返す。
// loadedは初回ロードが完了しているかを示す。未ロードと空一覧を区別するための値。
func (v *PublishedView) Snapshot() ([]model.Article, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.articles, v.loaded
}

// Subscribe はスナップショット更新の購読チャネルと購読解除関数を返す。
// チャネルは容量1で、受信が追いつかない場合は古いスナップショットを
// 捨てて最新のみを残す（conflated配送）。
func (v *PublishedView) Subscribe() (<-chan []model.Article, func()) {
	ch := make(chan []model.Article, 1)

	v.mu.Lock()
	v.subs[ch] = struct{}{}
	// 既にロード済みなら現在値を即時配送する
	if v.loaded {
		ch <- v.articles
	}
	v.mu.Unlock()

	cancel := func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if _, ok := v.subs[ch]; ok {
			delete(v.subs, ch)
			close(ch)
		}
	}

	return ch, cancel
}

// publish は新しいスナップショットを設定し、全購読者に配送する。
// コーディネーターの購読アクティビティ専用。
func (v *PublishedView) publish(articles []model.Article) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.articles = articles
	v.loaded = true

	for ch := range v.subs {
		// 未消費の古いスナップショットを捨ててから最新を入れる
		select {
		case <-ch:
		default:
		}
		ch <- articles
	}
}
