// Package model はドメインモデルを定義する。
package model

import "time"

// Article はリモートフィードから取得した記事を表す。
// レンダリング層が公開ビュー経由で読むドメインモデルで、同期メタデータは含まない。
type Article struct {
	ID              string
	Title           string
	URL             string
	Author          string // 空文字は未設定
	ReadTimeMinutes int    // 0は未設定
	HeroImageURL    string
	Teaser          string
	Source          string
	SourceAvatarURL string
	CreatedTime     string
	IngestedAt      time.Time // 取り込み日時。一覧の並び順の基準
	Categories      []Category
	IsBookmarked    bool
}

// ArticleRecord はローカルストアのarticlesテーブルの1行を表す。
// IsDirtyとLastModifiedはUIに露出しない同期メタデータ。
// IsDirty == true はローカルのブックマーク状態がリモート未確認であることを意味する。
type ArticleRecord struct {
	ID              string
	Title           string
	URL             string
	Author          string
	ReadTimeMinutes int
	HeroImageURL    string
	Teaser          string
	Source          string
	SourceAvatarURL string
	CreatedTime     string
	IngestedAt      time.Time
	IsBookmarked    bool
	IsDirty         bool
	LastModified    time.Time // ゼロ値は未変更
}

// ArticleWithCategories は記事行と関連カテゴリを結合したストア読み出し結果。
// article_categories結合テーブル経由で取得される。
type ArticleWithCategories struct {
	ArticleRecord
	Categories []Category
}

// ToDomain はストア読み出し結果をドメインモデルに変換する。
// 同期メタデータはここで落とす。
func (a ArticleWithCategories) ToDomain() Article {
	return Article{
		ID:              a.ID,
		Title:           a.Title,
		URL:             a.URL,
		Author:          a.Author,
		ReadTimeMinutes: a.ReadTimeMinutes,
		HeroImageURL:    a.HeroImageURL,
		Teaser:          a.Teaser,
		Source:          a.Source,
		SourceAvatarURL: a.SourceAvatarURL,
		CreatedTime:     a.CreatedTime,
		IngestedAt:      a.IngestedAt,
		Categories:      a.Categories,
		IsBookmarked:    a.IsBookmarked,
	}
}

// ToRecord はドメインモデルをストア行に変換する。
// リモート由来の記事はdirtyではない状態で保存する。
func (a Article) ToRecord() ArticleWithCategories {
	return ArticleWithCategories{
		ArticleRecord: ArticleRecord{
			ID:              a.ID,
			Title:           a.Title,
			URL:             a.URL,
			Author:          a.Author,
			ReadTimeMinutes: a.ReadTimeMinutes,
			HeroImageURL:    a.HeroImageURL,
			Teaser:          a.Teaser,
			Source:          a.Source,
			SourceAvatarURL: a.SourceAvatarURL,
			CreatedTime:     a.CreatedTime,
			IngestedAt:      a.IngestedAt,
			IsBookmarked:    a.IsBookmarked,
			IsDirty:         false,
		},
		Categories: a.Categories,
	}
}
