package model

import (
	"errors"
	"fmt"
	"testing"
)

// TestIsTransient はエラー分類が仕様どおりに判定されることをテストする。
func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "ネットワークエラーは一時的", err: NewNetworkError(errors.New("timeout")), want: true},
		{name: "HTTP 500は一時的", err: NewHTTPError(500, ""), want: true},
		{name: "HTTP 503は一時的", err: NewHTTPError(503, ""), want: true},
		{name: "HTTP 429は一時的", err: NewHTTPError(429, ""), want: true},
		{name: "HTTP 400は恒久的", err: NewHTTPError(400, ""), want: false},
		{name: "HTTP 404は恒久的", err: NewHTTPError(404, ""), want: false},
		{name: "解析エラーは恒久的", err: NewParsingError(errors.New("bad json")), want: false},
		{name: "未検出は恒久的", err: NewNotFoundError("a1"), want: false},
		{name: "不明エラーは一時的", err: NewUnknownError("", nil), want: true},
		{name: "未分類のerrorは一時的", err: errors.New("something"), want: true},
		{name: "ラップされたAPIErrorも分類される", err: fmt.Errorf("sync failed: %w", NewHTTPError(404, "")), want: false},
		{name: "nilは再試行不要", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestAPIError_Error はエラーメッセージに分類とステータスコードが含まれることをテストする。
func TestAPIError_Error(t *testing.T) {
	httpErr := NewHTTPError(502, "")
	if got := httpErr.Error(); got != "[http] リモートサービスがステータス 502 を返しました (status=502)" {
		t.Errorf("Error() = %q", got)
	}

	nfErr := NewNotFoundError("a1")
	if got := nfErr.Error(); got != "[not_found] 指定された記事が見つかりません: a1" {
		t.Errorf("Error() = %q", got)
	}
}

// TestAPIError_Unwrap は原因エラーがerrors.Isで辿れることをテストする。
func TestAPIError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError(cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}
