package remote

import (
	"fmt"
	"time"

	"github.com/hitoshi/orbit/internal/model"
)

// articleDTO はフィードAPIの記事レスポンス。
// フィールド名はサーバー側のsnake_case表記に合わせる。
type articleDTO struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	URL             string        `json:"url"`
	Author          string        `json:"author,omitempty"`
	ReadTime        int           `json:"read_time,omitempty"`
	HeroImageURL    string        `json:"hero_image_url,omitempty"`
	Teaser          string        `json:"teaser,omitempty"`
	Source          string        `json:"source"`
	SourceAvatarURL string        `json:"source_avatar_url,omitempty"`
	CreatedTime     string        `json:"created_time,omitempty"`
	IngestedAt      string        `json:"ingested_at"`
	Categories      []categoryDTO `json:"categories,omitempty"`
	IsBookmarked    *bool         `json:"is_bookmarked,omitempty"`
}

// categoryDTO はカテゴリAPIのレスポンス。
// IDはサーバー側ではslugと呼ばれる。色は#AARRGGBB形式の文字列。
type categoryDTO struct {
	ID         string `json:"slug"`
	Name       string `json:"name"`
	Group      string `json:"category_group"`
	ColorLight string `json:"color_light"`
	ColorDark  string `json:"color_dark"`
}

// bookmarkRequest はブックマーク状態変更リクエストのボディ。
// このエンドポイントのみcamelCase表記を使う。
type bookmarkRequest struct {
	RecordID     string `json:"recordId"`
	IsBookmarked bool   `json:"isBookmarked"`
}

// toDomain はカテゴリDTOをドメインモデルに変換する。
// 色文字列のパース失敗はエラーとして返す。
func (d categoryDTO) toDomain() (model.Category, error) {
	light, err := model.ParseColor(d.ColorLight)
	if err != nil {
		return model.Category{}, fmt.Errorf("カテゴリ %s のcolor_lightのパースに失敗しました: %w", d.ID, err)
	}

	dark, err := model.ParseColor(d.ColorDark)
	if err != nil {
		return model.Category{}, fmt.Errorf("カテゴリ %s のcolor_darkのパースに失敗しました: %w", d.ID, err)
	}

	return model.Category{
		ID:         d.ID,
		Name:       d.Name,
		Group:      d.Group,
		ColorLight: light,
		ColorDark:  dark,
	}, nil
}

// toDomain は記事DTOをドメインモデルに変換する。
// ingested_atはRFC 3339形式を要求し、パース失敗はエラーとして返す。
func (d articleDTO) toDomain() (model.Article, error) {
	ingestedAt, err := time.Parse(time.RFC3339, d.IngestedAt)
	if err != nil {
		return model.Article{}, fmt.Errorf("記事 %s のingested_atのパースに失敗しました: %w", d.ID, err)
	}

	categories := make([]model.Category, 0, len(d.Categories))
	for _, c := range d.Categories {
		cat, err := c.toDomain()
		if err != nil {
			return model.Article{}, err
		}
		categories = append(categories, cat)
	}

	bookmarked := false
	if d.IsBookmarked != nil {
		bookmarked = *d.IsBookmarked
	}

	return model.Article{
		ID:              d.ID,
		Title:           d.Title,
		URL:             d.URL,
		Author:          d.Author,
		ReadTimeMinutes: d.ReadTime,
		HeroImageURL:    d.HeroImageURL,
		Teaser:          d.Teaser,
		Source:          d.Source,
		SourceAvatarURL: d.SourceAvatarURL,
		CreatedTime:     d.CreatedTime,
		IngestedAt:      ingestedAt.UTC(),
		Categories:      categories,
		IsBookmarked:    bookmarked,
	}, nil
}
