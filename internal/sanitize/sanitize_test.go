package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"plain", "hello", 20, "hello"},
		{"trimmed", "   hello \n", 20, "hello"},
		{"empty", "", 20, ""},
		{"whitespace only", " \t ", 20, ""},
		{"tags stripped", "<b>bold</b> move", 20, "bold move"},
		{"script escaped", "<script>alert(1)</script>", 140, "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{"script around text", "hi <script>alert(1)</script>there", 140, "hi &lt;script&gt;alert(1)&lt;/script&gt;there"},
		{"script uppercase", "<SCRIPT>x</SCRIPT>", 140, "&lt;SCRIPT&gt;x&lt;/SCRIPT&gt;"},
		{"style escaped", "<style>p{}</style>x", 140, "&lt;style&gt;p{}&lt;/style&gt;x"},
		{"markup only", `<img src=x>`, 140, ""},
		{"attributes dropped", `<img src=x onerror="alert(1)">cat`, 140, "cat"},
		{"ampersand escaped", "Tom & Jerry", 140, "Tom &amp; Jerry"},
		{"angle brackets escaped", "1 < 2", 140, "1 &lt; 2"},
		{"truncated", strings.Repeat("x", 500), 20, strings.Repeat("x", 20)},
		{"unicode truncated by rune", strings.Repeat("ü", 30), 10, strings.Repeat("ü", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.input, tt.max))
		})
	}
}

func TestText_NoRawMarkup(t *testing.T) {
	inputs := []string{
		`<script>alert(1)</script>`,
		`<a href="javascript:alert(1)">x</a>`,
		`<<script>script>alert(1)<</script>/script>`,
		`<svg/onload=alert(1)>`,
		`"><iframe src=//evil>`,
	}
	for _, in := range inputs {
		out := Text(in, 500)
		assert.NotContains(t, out, "<", "input %q", in)
		assert.NotContains(t, out, ">", "input %q", in)
	}
}

func TestText_ScriptKeepsVisibleText(t *testing.T) {
	out := Text("<script>alert(1)</script>", 140)
	assert.NotEmpty(t, out)
	assert.NotContains(t, out, "<")
	assert.Contains(t, out, "alert(1)")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abcdef", Truncate("abcdef", 6))
	assert.Equal(t, "", Truncate("abcdef", 0))
	assert.Equal(t, "héllo", Truncate("héllo wörld", 5))
}

func TestTruncate_DropsSplitEntity(t *testing.T) {
	// "Tom &amp; Jerry" cut at 7 runes would leave "Tom &am".
	assert.Equal(t, "Tom ", Truncate("Tom &amp; Jerry", 7))
	// A complete entity before the cut is kept.
	assert.Equal(t, "Tom &amp; J", Truncate("Tom &amp; Jerry", 11))
	assert.LessOrEqual(t, utf8.RuneCountInString(Truncate("&#39;&#39;&#39;", 7)), 7)
	assert.Equal(t, "&#39;", Truncate("&#39;&#39;&#39;", 7))
}
