package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/orbit/internal/model"
)

// timeLayout はTEXTカラムに保存する時刻の形式。
// 固定幅のUTC表記にすることで、文字列の辞書順と時系列順が一致する。
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteArticleRepo はSQLiteを使用した記事リポジトリ。
// 全ての書き込みメソッドはコミット後に変更通知を発火する。
type SQLiteArticleRepo struct {
	db       *sql.DB
	notifier *changeNotifier
}

// NewSQLiteArticleRepo はSQLiteArticleRepoを生成する。
func NewSQLiteArticleRepo(db *sql.DB) *SQLiteArticleRepo {
	return &SQLiteArticleRepo{
		db:       db,
		notifier: newChangeNotifier(),
	}
}

// articleColumns はarticlesテーブルのSELECT対象カラム。
const articleColumns = `id, created_time, title, url, author, read_time_minutes,
	hero_image_url, teaser, source, source_avatar_url, ingested_at,
	is_bookmarked, is_dirty, last_modified`

// Changed はストア変更の通知チャネルを返す。
func (r *SQLiteArticleRepo) Changed() <-chan struct{} {
	return r.notifier.Changed()
}

// FindByID は指定IDの記事行を取得する。見つからない場合はnilを返す。
func (r *SQLiteArticleRepo) FindByID(ctx context.Context, id string) (*model.ArticleRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id,
	)

	record, err := scanArticleRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	return record, nil
}

// ListWithCategories はフィルタに合致する記事をカテゴリ付きでingested_at降順で返す。
func (r *SQLiteArticleRepo) ListWithCategories(ctx context.Context, filter ListFilter) ([]model.ArticleWithCategories, error) {
	query := `SELECT ` + articleColumns + ` FROM articles`
	where, args := buildFilterClauses(filter)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ingested_at DESC, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []model.ArticleRecord
	for rows.Next() {
		record, err := scanArticleRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("記事行の読み取りに失敗しました: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の読み取りに失敗しました: %w", err)
	}

	categoriesByArticle, err := r.loadCategoryLinks(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]model.ArticleWithCategories, len(records))
	for i, record := range records {
		result[i] = model.ArticleWithCategories{
			ArticleRecord: record,
			Categories:    categoriesByArticle[record.ID],
		}
	}

	return result, nil
}

// buildFilterClauses はListFilterをWHERE句の断片とバインド引数に変換する。
func buildFilterClauses(filter ListFilter) ([]string, []any) {
	var where []string
	var args []any

	if filter.BookmarkedOnly {
		where = append(where, "is_bookmarked = 1")
	}

	if len(filter.Groups) > 0 {
		where = append(where, `EXISTS (
			SELECT 1 FROM article_categories ac
			JOIN categories c ON c.id = ac.category_id
			WHERE ac.article_id = articles.id AND c.category_group IN (`+placeholders(len(filter.Groups))+`)
		)`)
		for _, g := range filter.Groups {
			args = append(args, g)
		}
	}

	if len(filter.CategoryIDs) > 0 {
		where = append(where, `EXISTS (
			SELECT 1 FROM article_categories ac
			WHERE ac.article_id = articles.id AND ac.category_id IN (`+placeholders(len(filter.CategoryIDs))+`)
		)`)
		for _, id := range filter.CategoryIDs {
			args = append(args, id)
		}
	}

	return where, args
}

// placeholders はn個の"?"をカンマ区切りで返す。
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// loadCategoryLinks は記事ID→カテゴリ一覧のマップを構築する。
func (r *SQLiteArticleRepo) loadCategoryLinks(ctx context.Context) (map[string][]model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ac.article_id, c.id, c.name, c.category_group, c.color_light, c.color_dark
		 FROM article_categories ac
		 JOIN categories c ON c.id = ac.category_id
		 ORDER BY ac.article_id, c.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ関連の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]model.Category)
	for rows.Next() {
		var articleID, colorLight, colorDark string
		var cat model.Category
		if err := rows.Scan(&articleID, &cat.ID, &cat.Name, &cat.Group, &colorLight, &colorDark); err != nil {
			return nil, fmt.Errorf("カテゴリ行の読み取りに失敗しました: %w", err)
		}
		if cat.ColorLight, err = model.ParseColor(colorLight); err != nil {
			return nil, fmt.Errorf("カテゴリ色の復元に失敗しました: %w", err)
		}
		if cat.ColorDark, err = model.ParseColor(colorDark); err != nil {
			return nil, fmt.Errorf("カテゴリ色の復元に失敗しました: %w", err)
		}
		result[articleID] = append(result[articleID], cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カテゴリ関連の読み取りに失敗しました: %w", err)
	}

	return result, nil
}

// ListDirty はis_dirty = trueの記事行を全件返す。
func (r *SQLiteArticleRepo) ListDirty(ctx context.Context) ([]model.ArticleRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE is_dirty = 1 ORDER BY last_modified, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("ダーティ記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []model.ArticleRecord
	for rows.Next() {
		record, err := scanArticleRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ダーティ記事行の読み取りに失敗しました: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ダーティ記事の読み取りに失敗しました: %w", err)
	}

	return records, nil
}

// ReplaceAll は3テーブルを単一トランザクションでクリアして再投入する。
//
// 入れ替え前にdirtyだった行のis_bookmarked・is_dirty・last_modifiedは、
// 入ってくるスナップショットに同じIDの記事が含まれる場合そのまま引き継ぐ。
// リフレッシュとブックマーク変異が競合しても未同期の変更が失われないための措置。
// dirtyだがスナップショットから消えた記事は警告なしで破棄される（同期先の記事が
// もう存在しないため）。
func (r *SQLiteArticleRepo) ReplaceAll(ctx context.Context, incoming []model.ArticleWithCategories) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 現在dirtyな行の同期メタデータを退避する
	dirtyRows, err := tx.QueryContext(ctx,
		`SELECT id, is_bookmarked, last_modified FROM articles WHERE is_dirty = 1`,
	)
	if err != nil {
		return fmt.Errorf("ダーティ行の退避に失敗しました: %w", err)
	}

	type dirtyState struct {
		isBookmarked bool
		lastModified string
	}
	dirty := make(map[string]dirtyState)
	for dirtyRows.Next() {
		var id, lastModified string
		var isBookmarked bool
		if err := dirtyRows.Scan(&id, &isBookmarked, &lastModified); err != nil {
			dirtyRows.Close()
			return fmt.Errorf("ダーティ行の読み取りに失敗しました: %w", err)
		}
		dirty[id] = dirtyState{isBookmarked: isBookmarked, lastModified: lastModified}
	}
	if err := dirtyRows.Err(); err != nil {
		dirtyRows.Close()
		return fmt.Errorf("ダーティ行の読み取りに失敗しました: %w", err)
	}
	dirtyRows.Close()

	// 3テーブルをクリア（外部キー制約の順）
	for _, stmt := range []string{
		`DELETE FROM article_categories`,
		`DELETE FROM categories`,
		`DELETE FROM articles`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("テーブルのクリアに失敗しました: %w", err)
		}
	}

	// 記事を投入。dirtyだった行はローカルのブックマーク状態を優先する。
	insertArticle, err := tx.PrepareContext(ctx,
		`INSERT INTO articles (`+articleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("記事INSERTの準備に失敗しました: %w", err)
	}
	defer insertArticle.Close()

	for _, row := range incoming {
		record := row.ArticleRecord
		isDirty := false
		lastModified := formatTime(record.LastModified)
		if state, ok := dirty[record.ID]; ok {
			record.IsBookmarked = state.isBookmarked
			isDirty = true
			lastModified = state.lastModified
		}

		_, err := insertArticle.ExecContext(ctx,
			record.ID, record.CreatedTime, record.Title, record.URL,
			record.Author, record.ReadTimeMinutes, record.HeroImageURL,
			record.Teaser, record.Source, record.SourceAvatarURL,
			formatTime(record.IngestedAt),
			record.IsBookmarked, isDirty, lastModified,
		)
		if err != nil {
			return fmt.Errorf("記事の投入に失敗しました: %w", err)
		}
	}

	// カテゴリをID単位で重複排除して投入
	insertCategory, err := tx.PrepareContext(ctx,
		`INSERT INTO categories (id, name, category_group, color_light, color_dark)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("カテゴリINSERTの準備に失敗しました: %w", err)
	}
	defer insertCategory.Close()

	seen := make(map[string]bool)
	for _, row := range incoming {
		for _, cat := range row.Categories {
			if seen[cat.ID] {
				continue
			}
			seen[cat.ID] = true
			_, err := insertCategory.ExecContext(ctx,
				cat.ID, cat.Name, cat.Group, cat.ColorLight.Hex(), cat.ColorDark.Hex(),
			)
			if err != nil {
				return fmt.Errorf("カテゴリの投入に失敗しました: %w", err)
			}
		}
	}

	// 結合テーブルを投入
	insertLink, err := tx.PrepareContext(ctx,
		`INSERT INTO article_categories (article_id, category_id) VALUES (?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("関連INSERTの準備に失敗しました: %w", err)
	}
	defer insertLink.Close()

	for _, row := range incoming {
		for _, cat := range row.Categories {
			if _, err := insertLink.ExecContext(ctx, row.ID, cat.ID); err != nil {
				return fmt.Errorf("カテゴリ関連の投入に失敗しました: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	r.notifier.Notify()
	return nil
}

// CommitOptimistic は楽観的コミットを永続化する。
func (r *SQLiteArticleRepo) CommitOptimistic(ctx context.Context, id string, desired bool, modifiedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE articles SET is_bookmarked = ?, is_dirty = 1, last_modified = ? WHERE id = ?`,
		desired, formatTime(modifiedAt), id,
	)
	if err != nil {
		return fmt.Errorf("楽観的コミットに失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("楽観的コミットの結果確認に失敗しました: %w", err)
	}
	if affected == 0 {
		return model.NewNotFoundError(id)
	}

	r.notifier.Notify()
	return nil
}

// ConfirmSynced はリモート同期の成立を記録する。is_dirtyのみ解除する。
func (r *SQLiteArticleRepo) ConfirmSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE articles SET is_dirty = 0 WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("同期確定の記録に失敗しました: %w", err)
	}

	r.notifier.Notify()
	return nil
}

// Rollback は変異前スナップショットに行を復元する。復元後の行はdirtyではない。
// 競合するReplaceAllで行が消えていた場合は再作成する。
func (r *SQLiteArticleRepo) Rollback(ctx context.Context, prev *model.ArticleRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (`+articleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     created_time = excluded.created_time,
		     title = excluded.title,
		     url = excluded.url,
		     author = excluded.author,
		     read_time_minutes = excluded.read_time_minutes,
		     hero_image_url = excluded.hero_image_url,
		     teaser = excluded.teaser,
		     source = excluded.source,
		     source_avatar_url = excluded.source_avatar_url,
		     ingested_at = excluded.ingested_at,
		     is_bookmarked = excluded.is_bookmarked,
		     is_dirty = 0,
		     last_modified = excluded.last_modified`,
		prev.ID, prev.CreatedTime, prev.Title, prev.URL,
		prev.Author, prev.ReadTimeMinutes, prev.HeroImageURL,
		prev.Teaser, prev.Source, prev.SourceAvatarURL,
		formatTime(prev.IngestedAt),
		prev.IsBookmarked, formatTime(prev.LastModified),
	)
	if err != nil {
		return fmt.Errorf("ロールバックに失敗しました: %w", err)
	}

	r.notifier.Notify()
	return nil
}

// scanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type scanner interface {
	Scan(dest ...any) error
}

// scanArticleRecord はarticleColumnsの並びで1行をスキャンする。
func scanArticleRecord(s scanner) (*model.ArticleRecord, error) {
	record := &model.ArticleRecord{}
	var ingestedAt, lastModified string

	err := s.Scan(
		&record.ID, &record.CreatedTime, &record.Title, &record.URL,
		&record.Author, &record.ReadTimeMinutes, &record.HeroImageURL,
		&record.Teaser, &record.Source, &record.SourceAvatarURL,
		&ingestedAt, &record.IsBookmarked, &record.IsDirty, &lastModified,
	)
	if err != nil {
		return nil, err
	}

	if record.IngestedAt, err = parseTime(ingestedAt); err != nil {
		return nil, fmt.Errorf("ingested_atのパースに失敗しました: %w", err)
	}
	if record.LastModified, err = parseTime(lastModified); err != nil {
		return nil, fmt.Errorf("last_modifiedのパースに失敗しました: %w", err)
	}

	return record, nil
}

// formatTime は時刻をTEXTカラム用の固定幅UTC文字列に変換する。ゼロ値は空文字列。
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// parseTime はformatTimeの逆変換を行う。空文字列はゼロ値。
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

// compile-time interface check
var _ ArticleRepository = (*SQLiteArticleRepo)(nil)
