package charts

import (
	"regexp"
	"strings"
)

var (
	refPattern       = regexp.MustCompile(`/static/demo/\S+?\.html`)
	hiddenRefPattern = regexp.MustCompile(`chart_html:(/static/demo/\S+?\.html)`)
)

// ExtractRefs pulls chart file references out of reply markup: both visible
// links (iframe src, anchors) and the hidden chart_html comment emitted by
// the renderer. Duplicates are removed, first occurrence order is kept.
func ExtractRefs(markup string) []string {
	var refs []string
	seen := make(map[string]bool)

	add := func(ref string) {
		if ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}

	for _, ref := range refPattern.FindAllString(markup, -1) {
		add(ref)
	}
	for _, match := range hiddenRefPattern.FindAllStringSubmatch(markup, -1) {
		add(match[1])
	}
	return refs
}

// ContainsEmbed reports whether markup already embeds a chart or image, used
// to avoid double-embedding when a reply is post-processed.
func ContainsEmbed(markup string) bool {
	return strings.Contains(markup, "<iframe") ||
		strings.Contains(markup, "<img") ||
		strings.Contains(markup, "![")
}
