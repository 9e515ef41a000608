package model

// Category は記事のカテゴリを表す。
// カテゴリはエンジンから見てイミュータブルで、フィードリフレッシュ成功時に
// 全件入れ替えされる。個別のパッチ更新は行わない。
type Category struct {
	ID         string
	Name       string
	Group      string // フィルタ・グルーピング用の粗いタグ
	ColorLight Color  // ライトテーマ用の表示色
	ColorDark  Color  // ダークテーマ用の表示色
}
