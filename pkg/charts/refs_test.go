package charts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRefsFromSnippet(t *testing.T) {
	snippet := `<iframe src="/static/demo/abc123.html" style="width: 100%;"></iframe>` +
		`<a href="/static/demo/abc123.html" target="_blank">View Full Screen ↗</a>` +
		`<!-- chart_html:/static/demo/abc123.html -->`

	assert.Equal(t, []string{"/static/demo/abc123.html"}, ExtractRefs(snippet))
}

func TestExtractRefsMultipleCharts(t *testing.T) {
	markup := "see /static/demo/one.html and also\n<!-- chart_html:/static/demo/two.html -->"
	assert.Equal(t, []string{"/static/demo/one.html", "/static/demo/two.html"}, ExtractRefs(markup))
}

func TestExtractRefsNone(t *testing.T) {
	assert.Empty(t, ExtractRefs("plain text reply, no charts here"))
}

func TestContainsEmbed(t *testing.T) {
	assert.True(t, ContainsEmbed(`<iframe src="/static/demo/x.html"></iframe>`))
	assert.True(t, ContainsEmbed(`<img src="/static/demo/x.png">`))
	assert.True(t, ContainsEmbed(`![chart](/static/demo/x.png)`))
	assert.False(t, ContainsEmbed("just words"))
}
