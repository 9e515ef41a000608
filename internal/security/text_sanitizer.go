// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はリモートAPIから取得した記事のタイトルや
// ティーザーをプレーンテキストに変換する。
// bluemondayのStrictPolicyで全タグを除去し、
// 残ったHTMLエンティティをデコードして返す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はテキストサニタイズ機能のインターフェースを定義する。
// リモート記事の保存前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去し、
	// エンティティをデコードしたプレーンテキストを返す。
	// 前後の空白は取り除かれる。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべてのタグと属性を除去する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	stripped := s.policy.Sanitize(raw)
	// StrictPolicyはテキストをエスケープして返すため、
	// エンティティを元の文字に戻す。
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// インターフェースの実装を強制する
var _ TextSanitizerService = (*textSanitizer)(nil)
