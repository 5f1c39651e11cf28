package security

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNameSanitizer_Sanitize(t *testing.T) {
	s := NewNameSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンな名前はそのまま", "Jane Doe", "Jane Doe"},
		{"日本語名", "山田 太郎", "山田 太郎"},
		{"タグは除去される", "<b>Jane</b>", "Jane"},
		{"scriptは中身ごと除去される", `Jane<script>alert(1)</script>`, "Jane"},
		{"アンパサンドはエスケープされない", "Tom & Jerry", "Tom & Jerry"},
		{"エスケープ済みのタグも残らない", "&lt;img src=x onerror=alert(1)&gt;", "img src=x onerror=alert(1)"},
		{"制御文字と連続空白は1つの空白になる", "Jane\n\t  Doe\r", "Jane Doe"},
		{"空白のみは空文字列", "   ", ""},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNameSanitizer_TruncatesLongNames(t *testing.T) {
	s := NewNameSanitizer()

	got := s.Sanitize(strings.Repeat("あ", maxNameRunes+50))
	if n := utf8.RuneCountInString(got); n != maxNameRunes {
		t.Errorf("rune count = %d, want %d", n, maxNameRunes)
	}
}

func TestNameSanitizer_Idempotent(t *testing.T) {
	s := NewNameSanitizer()

	inputs := []string{"<i>octo</i>cat", "A &amp; B", "  x  "}
	for _, in := range inputs {
		once := s.Sanitize(in)
		if twice := s.Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}
