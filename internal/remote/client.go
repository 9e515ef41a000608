// Package remote はリモートフィードAPIのクライアントを提供する。
// 記事一覧・カテゴリ一覧の取得とブックマーク状態の送信を行い、
// 失敗をアプリケーションのエラー分類（model.APIError）に写像する。
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/orbit/internal/model"
	"github.com/hitoshi/orbit/internal/security"
)

// ArticleService はリモートフィードAPIのインターフェースを定義する。
// すべてのメソッドは失敗時に*model.APIErrorを返し、
// 呼び出し元はmodel.IsTransientで再試行可否を判断する。
type ArticleService interface {
	// FetchArticles は記事一覧を取得する。
	FetchArticles(ctx context.Context) ([]model.Article, error)
	// FetchCategories はカテゴリ一覧を取得する。
	FetchCategories(ctx context.Context) ([]model.Category, error)
	// Bookmark は記事のブックマーク状態をリモートに送信する。
	Bookmark(ctx context.Context, articleID string, isBookmarked bool) error
}

// LatencyRecorder はリモート呼び出しの観測メトリクスを受け取る。
type LatencyRecorder interface {
	RecordRemoteLatency(operation string, seconds float64)
	RecordHTTPStatus(operation string, statusCode int)
}

// Client はArticleServiceのHTTP実装。
// レートリミッタで呼び出し頻度を抑え、取得したテキストは保存前にサニタイズする。
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	sanitizer  security.TextSanitizerService
	logger     *slog.Logger
	metrics    LatencyRecorder // nilの場合は記録しない
}

// NewClient はClientの新しいインスタンスを生成する。
// metricsはnilを許容する。
func NewClient(httpClient *http.Client, baseURL string, limiter *rate.Limiter, sanitizer security.TextSanitizerService, logger *slog.Logger, metrics LatencyRecorder) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    limiter,
		sanitizer:  sanitizer,
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchArticles は記事一覧を取得する。
// タイトルとティーザーはサニタイズしてから返す。
func (c *Client) FetchArticles(ctx context.Context) ([]model.Article, error) {
	body, err := c.get(ctx, "fetch_articles", "/api/articles")
	if err != nil {
		return nil, err
	}

	var dtos []articleDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, model.NewParsingError(err)
	}

	articles := make([]model.Article, 0, len(dtos))
	for _, dto := range dtos {
		article, err := dto.toDomain()
		if err != nil {
			return nil, model.NewParsingError(err)
		}
		article.Title = c.sanitizer.Sanitize(article.Title)
		article.Teaser = c.sanitizer.Sanitize(article.Teaser)
		articles = append(articles, article)
	}

	return articles, nil
}

// FetchCategories はカテゴリ一覧を取得する。
func (c *Client) FetchCategories(ctx context.Context) ([]model.Category, error) {
	body, err := c.get(ctx, "fetch_categories", "/api/articles/categories")
	if err != nil {
		return nil, err
	}

	var dtos []categoryDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, model.NewParsingError(err)
	}

	categories := make([]model.Category, 0, len(dtos))
	for _, dto := range dtos {
		category, err := dto.toDomain()
		if err != nil {
			return nil, model.NewParsingError(err)
		}
		categories = append(categories, category)
	}

	return categories, nil
}

// Bookmark は記事のブックマーク状態をリモートに送信する。
func (c *Client) Bookmark(ctx context.Context, articleID string, isBookmarked bool) error {
	payload, err := json.Marshal(bookmarkRequest{
		RecordID:     articleID,
		IsBookmarked: isBookmarked,
	})
	if err != nil {
		return model.NewUnknownError("リクエストボディの生成に失敗しました", err)
	}

	_, err = c.do(ctx, "bookmark", http.MethodPost, "/api/articles/bookmark", bytes.NewReader(payload))
	return err
}

// get はGETリクエストを実行してレスポンスボディを返す。
func (c *Client) get(ctx context.Context, operation, path string) ([]byte, error) {
	return c.do(ctx, operation, http.MethodGet, path, nil)
}

// do はレートリミッタの許可を待ってからHTTPリクエストを実行する。
// トランスポート層の失敗はNetwork、非2xxステータスはHTTPエラーに写像する。
func (c *Client) do(ctx context.Context, operation, method, path string, body io.Reader) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, model.NewNetworkError(err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, model.NewUnknownError("HTTPリクエストの作成に失敗しました", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Orbit/1.0 Article Cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordRemoteLatency(operation, time.Since(start).Seconds())
	}
	if err != nil {
		c.logger.Error("リモートAPIの呼び出しに失敗しました",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return nil, model.NewNetworkError(err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordHTTPStatus(operation, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("リモートAPIがエラーステータスを返しました",
			slog.String("operation", operation),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewHTTPError(resp.StatusCode,
			fmt.Sprintf("リモートAPIがステータス %d を返しました", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewNetworkError(err)
	}

	return data, nil
}

// インターフェースの実装を強制する
var _ ArticleService = (*Client)(nil)
