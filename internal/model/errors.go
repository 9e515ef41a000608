package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind はAPIエラーの分類を表す閉じた列挙。
type ErrorKind int

const (
	// ErrorKindUnknown は未分類の失敗。可用性を優先し一時的エラーとして扱う。
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindNetwork はネットワーク層の失敗（タイムアウト・接続失敗）。
	ErrorKindNetwork
	// ErrorKindHTTP はリモートがリクエストを拒否した失敗。StatusCodeを持つ。
	ErrorKindHTTP
	// ErrorKindParsing はレスポンスの解析失敗。
	ErrorKindParsing
	// ErrorKindNotFound はローカルストアでの記事未検出。再試行対象外。
	ErrorKindNotFound
)

// String はメトリクスラベル・ログ用の分類名を返す。
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNetwork:
		return "network"
	case ErrorKindHTTP:
		return "http"
	case ErrorKindParsing:
		return "parsing"
	case ErrorKindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// APIError はエンジン全体で使う統一エラー型。
// リトライ・ロールバックの全分岐はIsTransientによる分類を参照する。
type APIError struct {
	Kind       ErrorKind
	StatusCode int // ErrorKindHTTPの場合のみ有効
	Message    string
	cause      error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Kind == ErrorKindHTTP {
		return fmt.Sprintf("[%s] %s (status=%d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.cause
}

// NewNetworkError はネットワーク層の失敗を表すエラーを生成する。
func NewNetworkError(cause error) *APIError {
	return &APIError{
		Kind:    ErrorKindNetwork,
		Message: "リモートサービスへの接続に失敗しました",
		cause:   cause,
	}
}

// NewHTTPError はリモートのエラーレスポンスを表すエラーを生成する。
func NewHTTPError(statusCode int, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("リモートサービスがステータス %d を返しました", statusCode)
	}
	return &APIError{
		Kind:       ErrorKindHTTP,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewParsingError はレスポンス解析の失敗を表すエラーを生成する。
func NewParsingError(cause error) *APIError {
	return &APIError{
		Kind:    ErrorKindParsing,
		Message: "レスポンスの解析に失敗しました",
		cause:   cause,
	}
}

// NewNotFoundError はローカルストアでの記事未検出を表すエラーを生成する。
func NewNotFoundError(articleID string) *APIError {
	return &APIError{
		Kind:    ErrorKindNotFound,
		Message: fmt.Sprintf("指定された記事が見つかりません: %s", articleID),
	}
}

// NewUnknownError は未分類の失敗を表すエラーを生成する。
func NewUnknownError(message string, cause error) *APIError {
	if message == "" {
		message = "不明なエラーが発生しました"
	}
	return &APIError{
		Kind:    ErrorKindUnknown,
		Message: message,
		cause:   cause,
	}
}

// IsTransient は失敗が再試行に値するか（一時的か）を判定する。
//
// 一時的: ネットワーク層の失敗、HTTP 5xxと429。
// 恒久的: 429以外のHTTP 4xx、解析失敗、ローカル未検出。
// 未分類の失敗は将来の再試行可能性を失わないよう一時的として扱う。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		// APIErrorに分類されていない失敗は一時的として扱う
		return true
	}

	switch apiErr.Kind {
	case ErrorKindNetwork:
		return true
	case ErrorKindHTTP:
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	case ErrorKindParsing:
		return false
	case ErrorKindNotFound:
		return false
	default:
		return true
	}
}

// KindOf はエラーから分類を取り出す。メトリクスラベル・ログ用。
// APIErrorに分類されていないエラーはErrorKindUnknownを返す。
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ErrorKindUnknown
}
