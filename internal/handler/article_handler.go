// Package handler はレンダリング層向けのHTTP APIを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/orbit/internal/model"
	"github.com/hitoshi/orbit/internal/repository"
)

// CacheServiceInterface は記事ハンドラーが必要とするコーディネーターのインターフェース。
type CacheServiceInterface interface {
	// Snapshot は公開ビューの現在のスナップショットを返す。
	Snapshot() ([]model.Article, bool)
	// Refresh はリモートから記事一覧を取得してストアを入れ替える。
	Refresh(ctx context.Context) error
	// SetBookmark は楽観的プロトコルでブックマーク状態を変更する。
	SetBookmark(ctx context.Context, id string, desired bool) error
	// Categories はリモートからカテゴリ一覧を取得する。
	Categories(ctx context.Context) ([]model.Category, error)
	// ListFiltered はフィルタに合致する記事をストアから読み出す。
	ListFiltered(ctx context.Context, filter repository.ListFilter) ([]model.Article, error)
}

// ArticleHandler は記事キャッシュのHTTPハンドラー。
type ArticleHandler struct {
	service CacheServiceInterface
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service CacheServiceInterface) *ArticleHandler {
	return &ArticleHandler{service: service}
}

// --- レスポンス型 ---

// categoryResponse はカテゴリのレスポンス。色は#AARRGGBB形式の文字列。
type categoryResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Group      string `json:"category_group"`
	ColorLight string `json:"color_light"`
	ColorDark  string `json:"color_dark"`
}

// articleResponse は記事のレスポンス。
type articleResponse struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	URL             string             `json:"url"`
	Author          string             `json:"author,omitempty"`
	ReadTimeMinutes int                `json:"read_time_minutes,omitempty"`
	HeroImageURL    string             `json:"hero_image_url,omitempty"`
	Teaser          string             `json:"teaser,omitempty"`
	Source          string             `json:"source"`
	SourceAvatarURL string             `json:"source_avatar_url,omitempty"`
	CreatedTime     string             `json:"created_time,omitempty"`
	IngestedAt      time.Time          `json:"ingested_at"`
	Categories      []categoryResponse `json:"categories"`
	IsBookmarked    bool               `json:"is_bookmarked"`
}

// articleListResponse は記事一覧のレスポンス。
// loadedは初回ロード完了を示す。falseの間は空一覧と未取得の区別がつくようにする。
type articleListResponse struct {
	Loaded   bool              `json:"loaded"`
	Articles []articleResponse `json:"articles"`
}

// bookmarkStateRequest はブックマーク状態変更リクエストのボディ。
type bookmarkStateRequest struct {
	IsBookmarked bool `json:"is_bookmarked"`
}

// bookmarkStateResponse はブックマーク状態変更のレスポンス。
type bookmarkStateResponse struct {
	ArticleID    string `json:"article_id"`
	IsBookmarked bool   `json:"is_bookmarked"`
	// PendingSync は一時的な失敗で再同期待ちになっていることを示す
	PendingSync bool `json:"pending_sync"`
}

// errorResponse はエラーレスポンスのボディ。
type errorResponse struct {
	Error          string `json:"error"`
	Kind           string `json:"kind"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

func toCategoryResponse(c model.Category) categoryResponse {
	return categoryResponse{
		ID:         c.ID,
		Name:       c.Name,
		Group:      c.Group,
		ColorLight: c.ColorLight.Hex(),
		ColorDark:  c.ColorDark.Hex(),
	}
}

func toArticleResponse(a model.Article) articleResponse {
	categories := make([]categoryResponse, 0, len(a.Categories))
	for _, c := range a.Categories {
		categories = append(categories, toCategoryResponse(c))
	}
	return articleResponse{
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
		Categories:      categories,
		IsBookmarked:    a.IsBookmarked,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeAPIError はエラーを分類に応じたHTTPステータスに写像して書き込む。
// ローカル未検出は404、一時的な失敗は503、恒久的な失敗は502とする。
func writeAPIError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)

	status := http.StatusBadGateway
	switch {
	case kind == model.ErrorKindNotFound:
		status = http.StatusNotFound
	case model.IsTransient(err):
		status = http.StatusServiceUnavailable
	}

	resp := errorResponse{
		Error: err.Error(),
		Kind:  kind.String(),
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == model.ErrorKindHTTP {
		resp.UpstreamStatus = apiErr.StatusCode
	}

	writeJSON(w, status, resp)
}

// ListArticles は記事一覧を取得する。
// GET /api/articles?bookmarked=1&group=xxx&category=yyy
//
// フィルタ指定がない場合は公開ビューのスナップショットを返す
// （ストアを読まないため、リモートやディスクの状態に関わらず即応する）。
// フィルタ指定がある場合はストアへのクエリで絞り込む。
func (h *ArticleHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repository.ListFilter{
		BookmarkedOnly: query.Get("bookmarked") == "1" || query.Get("bookmarked") == "true",
		Groups:         query["group"],
		CategoryIDs:    query["category"],
	}

	if !filter.BookmarkedOnly && len(filter.Groups) == 0 && len(filter.CategoryIDs) == 0 {
		articles, loaded := h.service.Snapshot()
		resp := articleListResponse{
			Loaded:   loaded,
			Articles: make([]articleResponse, 0, len(articles)),
		}
		for _, a := range articles {
			resp.Articles = append(resp.Articles, toArticleResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	articles, err := h.service.ListFiltered(r.Context(), filter)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	resp := articleListResponse{
		Loaded:   true,
		Articles: make([]articleResponse, 0, len(articles)),
	}
	for _, a := range articles {
		resp.Articles = append(resp.Articles, toArticleResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Bookmark は記事のブックマーク状態を変更する。
// POST /api/articles/{id}/bookmark
//
// 一時的な失敗では楽観的状態が残り再同期が控えているため、
// 503にpending_sync=trueを付けて返す。
func (h *ArticleHandler) Bookmark(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "id")

	var req bookmarkStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "リクエストボディの解析に失敗しました",
			Kind:  "bad_request",
		})
		return
	}

	err := h.service.SetBookmark(r.Context(), articleID, req.IsBookmarked)
	if err == nil {
		writeJSON(w, http.StatusOK, bookmarkStateResponse{
			ArticleID:    articleID,
			IsBookmarked: req.IsBookmarked,
		})
		return
	}

	if model.KindOf(err) != model.ErrorKindNotFound && model.IsTransient(err) {
		resp := struct {
			errorResponse
			bookmarkStateResponse
		}{
			errorResponse{Error: err.Error(), Kind: model.KindOf(err).String()},
			bookmarkStateResponse{ArticleID: articleID, IsBookmarked: req.IsBookmarked, PendingSync: true},
		}
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == model.ErrorKindHTTP {
			resp.UpstreamStatus = apiErr.StatusCode
		}
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeAPIError(w, err)
}

// Refresh はリモートから記事一覧を取得してストアを入れ替える。
// POST /api/refresh
func (h *ArticleHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Refresh(r.Context()); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCategories はカテゴリ一覧を取得する。
// GET /api/categories
func (h *ArticleHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}
