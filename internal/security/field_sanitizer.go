// Package security はアプリケーションのセキュリティ機能を提供する。
//
// FieldSanitizer は応募記録の自由入力フィールドに含まれるマークアップを
// 許可リストベースのポリシーで無害化する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/jobtracker/internal/model"
)

// FieldSanitizer はbluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type FieldSanitizer struct {
	policy *bluemonday.Policy
}

// NewFieldSanitizer はFieldSanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em
//   - script, iframe, style, img等は除去
//   - aタグ: href（絶対URLのみ）、target="_blank" と rel="noopener noreferrer" を自動付与
func NewFieldSanitizer() *FieldSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &FieldSanitizer{policy: p}
}

// Sanitize は文字列をサニタイズする。
// '<'を含まない文字列はそのまま返す（&等のエスケープでプレーンテキストを壊さないため）。
func (s *FieldSanitizer) Sanitize(value string) string {
	if !strings.Contains(value, "<") {
		return value
	}
	return s.policy.Sanitize(value)
}

// SanitizeFields はフィールド内の文字列値を再帰的にサニタイズした新しいマップを返す。
// 文字列以外の値（数値、真偽値、null）はそのまま残す。
func (s *FieldSanitizer) SanitizeFields(fields model.Fields) model.Fields {
	if fields == nil {
		return nil
	}
	out := make(model.Fields, len(fields))
	for k, v := range fields {
		out[k] = s.sanitizeValue(v)
	}
	return out
}

func (s *FieldSanitizer) sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return s.Sanitize(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = s.sanitizeValue(nested)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = s.sanitizeValue(nested)
		}
		return out
	default:
		return v
	}
}
