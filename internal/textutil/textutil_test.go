package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"<p>Unit <b>5A12345678</b></p><p>failed</p>", "Unit 5A12345678 failed"},
		{"Tom &amp; Jerry&nbsp;said &lt;hi&gt; &quot;ok&quot;", `Tom & Jerry said <hi> "ok"`},
		{"line one<br>line two\n\n  three", "line one line two three"},
		{"<script>alert(1)</script>text", "text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripHTML(tt.in), tt.in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "пр", Truncate("привет", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}
