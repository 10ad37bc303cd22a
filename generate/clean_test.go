package generate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runCleaner(c *cleaner, deltas ...string) string {
	var sb strings.Builder
	for _, d := range deltas {
		sb.WriteString(c.feed(d))
		if c.done {
			return sb.String()
		}
	}
	sb.WriteString(c.finish())
	return sb.String()
}

func TestCleaner(t *testing.T) {
	tests := []struct {
		name       string
		linePrefix string
		multiline  bool
		deltas     []string
		want       string
	}{
		{"plain", "fmt.", false, []string{"Print", "ln(x)"}, "Println(x)"},
		{"stops at newline", "x := ", false, []string{"1\n", "y := 2"}, "1"},
		{"multiline keeps lines", "", true, []string{"a\nb", "\nc"}, "a\nb\nc"},
		{"opening fence", "", false, []string{"``", "`go\nret", "urn nil"}, "return nil"},
		{"closing fence", "", true, []string{"a\n``", "`\nignored"}, "a\n"},
		{"echo stripped", "    fmt.Pr", false, []string{"fmt", ".Println()"}, "intln()"},
		{"partial echo then diverges", "foo", false, []string{"fo", "x"}, "fox"},
		{"short stream is flushed", "abc", false, []string{"ab"}, "ab"},
		{"fence only", "", false, []string{"```"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCleaner(tt.linePrefix, tt.multiline)
			assert.Equal(t, tt.want, runCleaner(c, tt.deltas...))
		})
	}
}

func TestCleanerIgnoresInputAfterDone(t *testing.T) {
	c := newCleaner("", false)
	assert.Equal(t, "a", c.feed("a\nb"))
	assert.True(t, c.done)
	assert.Empty(t, c.feed("more"))
	assert.Empty(t, c.finish())
}
