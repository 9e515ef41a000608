// Package repository はローカルストアへの永続化インターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/orbit/internal/model"
)

// ListFilter は記事一覧の絞り込み条件を表す。
// ゼロ値は全件を意味する。絞り込みはストアのクエリレベルで適用される。
type ListFilter struct {
	// BookmarkedOnly はブックマーク済み記事のみに絞り込む。
	BookmarkedOnly bool
	// Groups は指定されたカテゴリグループのいずれかに属する記事に絞り込む。
	Groups []string
	// CategoryIDs は指定されたカテゴリのいずれかに属する記事に絞り込む。
	CategoryIDs []string
}

// ArticleRepository は記事データの永続化インターフェース。
//
// ブックマーク変異の書き込みは意図ごとに分かれている:
// CommitOptimisticは楽観的コミット、ConfirmSyncedは同期確定、
// Rollbackは変異前スナップショットへの復元。呼び出し側の意図が
// 呼び出しメソッドから読み取れるようにするための分割で、
// いずれも同じarticles行への書き込みに帰着する。
type ArticleRepository interface {
	// FindByID は指定IDの記事行を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ArticleRecord, error)

	// ListWithCategories はフィルタに合致する記事をカテゴリ付きで返す。
	// 並び順はingested_at降順。
	ListWithCategories(ctx context.Context, filter ListFilter) ([]model.ArticleWithCategories, error)

	// ListDirty はis_dirty = trueの記事行を全件返す。
	ListDirty(ctx context.Context) ([]model.ArticleRecord, error)

	// ReplaceAll はarticles・categories・article_categoriesの3テーブルを
	// 単一トランザクションでクリアして再投入する。
	// 現在dirtyな行のブックマーク状態は入れ替え後も保持される
	// （リフレッシュが未同期のローカル変更を黙って破棄しないため）。
	ReplaceAll(ctx context.Context, rows []model.ArticleWithCategories) error

	// CommitOptimistic は楽観的コミットを永続化する。
	// is_bookmarkedをdesiredに、is_dirtyをtrueに、last_modifiedをmodifiedAtに設定する。
	CommitOptimistic(ctx context.Context, id string, desired bool, modifiedAt time.Time) error

	// ConfirmSynced はリモート同期の成立を記録する。is_dirtyをfalseにする。
	// ブックマーク状態は変更しない。
	ConfirmSynced(ctx context.Context, id string) error

	// Rollback は変異前スナップショットに行を復元する。dirtyは解除された状態になる。
	Rollback(ctx context.Context, prev *model.ArticleRecord) error

	// Changed はストア変更の通知チャネルを返す。
	// 返されたチャネルは次の書き込み完了時にcloseされる。購読側は
	// closeを観測するたびにChangedを呼び直して再購読する。
	Changed() <-chan struct{}
}
