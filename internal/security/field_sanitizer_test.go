package security

import (
	"strings"
	"testing"

	"github.com/hitoshi/jobtracker/internal/model"
)

// TestSanitize_AllowedTags は許可タグが正しく通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewFieldSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "pタグが許可される",
			input:        "<p>一次面接の感触は良好</p>",
			wantContains: []string{"<p>一次面接の感触は良好</p>"},
		},
		{
			name:         "ulタグとliタグが許可される",
			input:        "<ul><li>Go</li><li>SQL</li></ul>",
			wantContains: []string{"<ul>", "<li>Go</li>", "</ul>"},
		},
		{
			name:         "strongタグが許可される",
			input:        "<strong>締切: 金曜</strong>",
			wantContains: []string{"<strong>締切: 金曜</strong>"},
		},
		{
			name:         "aタグが許可される",
			input:        `<a href="https://example.com/jobs/1">求人票</a>`,
			wantContains: []string{"<a", "https://example.com/jobs/1", "求人票", `target="_blank"`, "noopener"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ForbiddenContent は禁止タグとイベント属性が除去されることを検証する。
func TestSanitize_ForbiddenContent(t *testing.T) {
	sanitizer := NewFieldSanitizer()

	tests := []struct {
		name         string
		input        string
		wantAbsent   []string
		wantContains []string
	}{
		{
			name:         "scriptタグが除去される",
			input:        `<p>メモ</p><script>alert('xss')</script>`,
			wantAbsent:   []string{"<script", "alert"},
			wantContains: []string{"メモ"},
		},
		{
			name:         "iframeタグが除去される",
			input:        `<iframe src="https://evil.com"></iframe>安全`,
			wantAbsent:   []string{"<iframe", "evil.com"},
			wantContains: []string{"安全"},
		},
		{
			name:       "imgタグが除去される",
			input:      `<img src="https://example.com/x.png" onerror="alert(1)">`,
			wantAbsent: []string{"<img", "onerror"},
		},
		{
			name:         "onclickが除去される",
			input:        `<p onclick="steal()">テスト</p>`,
			wantAbsent:   []string{"onclick", "steal"},
			wantContains: []string{"テスト"},
		},
		{
			name:       "javascriptスキームのリンクが除去される",
			input:      `<a href="javascript:alert(1)">クリック</a>`,
			wantAbsent: []string{"javascript:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, absent)
				}
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_PlainText はマークアップを含まない文字列が変更されないことを検証する。
func TestSanitize_PlainText(t *testing.T) {
	sanitizer := NewFieldSanitizer()

	for _, input := range []string{
		"",
		"Acme & Co.",
		"年収 > 800万",
		`"Senior" Engineer`,
	} {
		if got := sanitizer.Sanitize(input); got != input {
			t.Errorf("Sanitize(%q) = %q, expected unchanged", input, got)
		}
	}
}

// TestSanitize_Idempotent は二重サニタイズで結果が変わらないことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewFieldSanitizer()

	input := `<p>テスト<strong>太字</strong></p><a href="https://example.com">リンク</a><script>x</script>`
	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)

	if first != second {
		t.Errorf("二重サニタイズで結果が変わった: 1回目=%q, 2回目=%q", first, second)
	}
}

func TestSanitizeFields_WalksNestedValues(t *testing.T) {
	sanitizer := NewFieldSanitizer()

	in := model.Fields{
		"company": "Acme",
		"notes":   `<p>ok</p><script>bad()</script>`,
		"salary":  float64(800),
		"remote":  true,
		"missing": nil,
		"contacts": []any{
			map[string]any{"name": `<b onclick="x()">Alice</b>`},
		},
	}

	out := sanitizer.SanitizeFields(in)

	if out["company"] != "Acme" {
		t.Errorf("company = %v, want Acme", out["company"])
	}
	if notes := out["notes"].(string); strings.Contains(notes, "script") {
		t.Errorf("notes = %q, script should be removed", notes)
	}
	if out["salary"] != float64(800) || out["remote"] != true || out["missing"] != nil {
		t.Errorf("non-string values changed: %v", out)
	}

	contact := out["contacts"].([]any)[0].(map[string]any)
	if name := contact["name"].(string); name != "Alice" {
		t.Errorf("contacts[0].name = %q, want %q", name, "Alice")
	}

	// 入力マップは変更されない
	if in["notes"] != `<p>ok</p><script>bad()</script>` {
		t.Error("input fields should not be modified")
	}
}

func TestSanitizeFields_Nil(t *testing.T) {
	if got := NewFieldSanitizer().SanitizeFields(nil); got != nil {
		t.Errorf("SanitizeFields(nil) = %v, want nil", got)
	}
}
