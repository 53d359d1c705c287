package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "paragraph", in: "hello", want: "<p>hello</p>\n"},
		{name: "emphasis", in: "**bold**", want: "<p><strong>bold</strong></p>\n"},
		{name: "empty", in: "", want: ""},
		{name: "raw html escaped", in: "<script>x</script>", want: "<!-- raw HTML omitted -->\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HTML(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTML_CodeBlock(t *testing.T) {
	got, err := HTML("```go\nfmt.Println(1)\n```")
	require.NoError(t, err)
	assert.Contains(t, got, `<code class="language-go">`)
}
