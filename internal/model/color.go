package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Color はARGB色を表す。
// ストアとワイヤ上では "#AARRGGBB" 形式のHEX文字列として直列化され、
// 読み出し時にパースして復元する。
type Color struct {
	A uint8
	R uint8
	G uint8
	B uint8
}

// ParseColor は "#AARRGGBB" または "#RRGGBB" 形式のHEX文字列をパースする。
// "#RRGGBB" の場合、アルファは0xFFとして扱う。
// 空文字列はゼロ値のColorを返す（色未設定のカテゴリを許容する）。
func ParseColor(s string) (Color, error) {
	if s == "" {
		return Color{}, nil
	}
	if !strings.HasPrefix(s, "#") {
		return Color{}, fmt.Errorf("色コードは#で始まる必要があります: %q", s)
	}

	hex := s[1:]
	switch len(hex) {
	case 6:
		hex = "FF" + hex
	case 8:
		// そのまま
	default:
		return Color{}, fmt.Errorf("色コードの長さが不正です: %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("色コードのパースに失敗しました: %q: %w", s, err)
	}

	return Color{
		A: uint8(v >> 24),
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, nil
}

// Hex は "#AARRGGBB" 形式のHEX文字列を返す。
// ParseColorと往復してもARGB値が保存されることを保証する。
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.A, c.R, c.G, c.B)
}
