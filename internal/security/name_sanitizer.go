package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// maxNameRunes は表示名として保持する最大文字数。
const maxNameRunes = 200

// NameSanitizer はプロバイダーから受け取った表示名を正規化する。
type NameSanitizer interface {
	// Sanitize はマークアップと制御文字を除去した表示名を返す。
	// 結果が空になった場合は空文字列を返す。
	Sanitize(name string) string
}

type nameSanitizer struct {
	policy   *bluemonday.Policy
	brackets *strings.Replacer
}

// NewNameSanitizer はbluemondayのStrictPolicyを使うNameSanitizerを生成する。
func NewNameSanitizer() NameSanitizer {
	return &nameSanitizer{
		policy:   bluemonday.StrictPolicy(),
		brackets: strings.NewReplacer("<", "", ">", ""),
	}
}

func (s *nameSanitizer) Sanitize(name string) string {
	// StrictPolicyはタグを除去し、残ったテキストをエスケープする
	out := html.UnescapeString(s.policy.Sanitize(name))
	// エスケープ済み入力（&lt;b&gt;）から復元された山括弧を落とす
	out = s.brackets.Replace(out)

	out = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, out)
	out = strings.Join(strings.Fields(out), " ")

	if runes := []rune(out); len(runes) > maxNameRunes {
		out = string(runes[:maxNameRunes])
	}
	return out
}
