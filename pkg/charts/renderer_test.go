package charts

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuerier struct {
	rows []map[string]any
	err  error
}

func (s *stubQuerier) QueryRows(_ string) ([]map[string]any, error) {
	return s.rows, s.err
}

func carrierRows() []map[string]any {
	return []map[string]any{
		{"Carrier": "FedEx", "Shipments": 120},
		{"Carrier": "UPS", "Shipments": 90},
		{"Carrier": "DHL", "Shipments": 45},
	}
}

func newTestRenderer(t *testing.T, querier RowQuerier) *Renderer {
	t.Helper()
	return NewRenderer(querier, t.TempDir(), "/static/demo", log.New(io.Discard, "", 0))
}

func TestRenderWritesChartAndReturnsEmbed(t *testing.T) {
	renderer := newTestRenderer(t, &stubQuerier{rows: carrierRows()})

	snippet, err := renderer.Render("SELECT 1", "bar", "Carrier", "Shipments", "Top Carriers", "")
	require.NoError(t, err)

	assert.Contains(t, snippet, "<iframe src=\"/static/demo/")
	assert.Contains(t, snippet, "View Full Screen")
	assert.Contains(t, snippet, "<!-- chart_html:/static/demo/")

	refs := ExtractRefs(snippet)
	require.Len(t, refs, 1)

	written, err := os.ReadFile(filepath.Join(renderer.outDir, filepath.Base(refs[0])))
	require.NoError(t, err)
	assert.Contains(t, string(written), "Plotly.newPlot")
	assert.Contains(t, string(written), "FedEx")
	assert.Contains(t, string(written), "Top Carriers")
}

func TestRenderEmptyResultReportsNoRows(t *testing.T) {
	renderer := newTestRenderer(t, &stubQuerier{})

	snippet, err := renderer.Render("SELECT 1", "bar", "Carrier", "Shipments", "", "")
	require.NoError(t, err)
	assert.Equal(t, `[{"notice":"no_rows"}]`, snippet)
}

func TestRenderQueryErrorPropagates(t *testing.T) {
	renderer := newTestRenderer(t, &stubQuerier{err: errors.New("bad column")})

	_, err := renderer.Render("SELECT 1", "bar", "Carrier", "Shipments", "", "")
	assert.Error(t, err)
}

func TestBuildFigureChartTypes(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	rows := carrierRows()

	donut := buildFigure(rows, "donut", "Carrier", "Shipments", "Split", "", logger)
	traces := donut["data"].([]map[string]any)
	require.Len(t, traces, 1)
	assert.Equal(t, "pie", traces[0]["type"])
	assert.Equal(t, 0.4, traces[0]["hole"])

	stacked := buildFigure(rows, "stacked_bar", "Carrier", "Shipments, Disputes", "", "", logger)
	assert.Len(t, stacked["data"].([]map[string]any), 2)
	assert.Equal(t, "stack", stacked["layout"].(map[string]any)["barmode"])

	unknown := buildFigure(rows, "sparkline", "Carrier", "Shipments", "", "", logger)
	assert.Equal(t, "bar", unknown["data"].([]map[string]any)[0]["type"])
}
