package security

import "testing"

// TestSanitize_StripsTags はHTMLタグが除去されることを検証する。
func TestSanitize_StripsTags(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "プレーンテキストはそのまま",
			input: "普通のティーザー",
			want:  "普通のティーザー",
		},
		{
			name:  "pタグが除去される",
			input: "<p>段落テキスト</p>",
			want:  "段落テキスト",
		},
		{
			name:  "scriptタグと中身が除去される",
			input: `before<script>alert("x")</script>after`,
			want:  "beforeafter",
		},
		{
			name:  "強調タグが除去されテキストが残る",
			input: "<strong>重要</strong>なニュース",
			want:  "重要なニュース",
		},
		{
			name:  "aタグが除去されテキストが残る",
			input: `<a href="https://example.com">リンク</a>先`,
			want:  "リンク先",
		},
		{
			name:  "HTMLエンティティがデコードされる",
			input: "A &amp; B &lt;C&gt;",
			want:  "A & B <C>",
		},
		{
			name:  "前後の空白が除去される",
			input: "  <p> テキスト </p>  ",
			want:  "テキスト",
		},
		{
			name:  "空文字列は空文字列",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestSanitize_Idempotent は同一入力に同一出力を返すことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()

	input := `<p>テキスト &amp; <strong>強調</strong></p>`
	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(sanitizer.Sanitize(input))

	if first != second {
		t.Errorf("Sanitize is not idempotent: first = %q, second = %q", first, second)
	}
}
