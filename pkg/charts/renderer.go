package charts

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RowQuerier runs a validated read-only query and returns its rows. Satisfied
// by the analytics runner.
type RowQuerier interface {
	QueryRows(sql string) ([]map[string]any, error)
}

var palette = []string{
	"#004aad", "#00a8e8", "#00d4aa", "#ffc107", "#ff6b6b", "#c44dff", "#36a2eb", "#ff9f40",
}

var pageTemplate = template.Must(template.New("chart").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<script src="https://cdn.plot.ly/plotly-2.27.0.min.js"></script>
<style>body { margin: 0; font-family: Montserrat, sans-serif; }</style>
</head>
<body>
<div id="chart"></div>
<script>
var figure = {{.Figure}};
Plotly.newPlot("chart", figure.data, figure.layout, {responsive: true});
</script>
</body>
</html>
`))

// Renderer turns query results into interactive Plotly charts saved as
// standalone HTML files. Each chart gets a unique filename under OutDir and
// is referenced in replies via BaseURL.
type Renderer struct {
	queries RowQuerier
	outDir  string
	baseURL string
	logger  *log.Logger
}

func NewRenderer(queries RowQuerier, outDir, baseURL string, logger *log.Logger) *Renderer {
	return &Renderer{
		queries: queries,
		outDir:  outDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Render executes sql, builds the requested chart and writes it to disk.
// It returns an iframe snippet embedding the chart, a full-screen link, and a
// hidden reference comment used later to attach the chart to emails.
func (r *Renderer) Render(sql, chartType, x, y, title, z string) (string, error) {
	rows, err := r.queries.QueryRows(sql)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return `[{"notice":"no_rows"}]`, nil
	}

	figure := buildFigure(rows, chartType, x, y, title, z, r.logger)
	figureJSON, err := json.Marshal(figure)
	if err != nil {
		return "", fmt.Errorf("encode figure: %w", err)
	}

	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create chart directory: %w", err)
	}

	fileName := uuid.New().String() + ".html"
	filePath := filepath.Join(r.outDir, fileName)

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("create chart file: %w", err)
	}
	defer file.Close()

	data := struct{ Figure template.JS }{Figure: template.JS(figureJSON)}
	if err := pageTemplate.Execute(file, data); err != nil {
		return "", fmt.Errorf("write chart file: %w", err)
	}

	ref := r.baseURL + "/" + fileName
	r.logger.Printf("[INFO] Saved chart %s (%s)", filePath, chartType)

	return fmt.Sprintf(
		`<iframe src="%s" style="width: 100%%; height: 450px; border: none; border-radius: 8px; box-shadow: 0 2px 8px rgba(0,0,0,0.05);"></iframe>`+
			`<div style="text-align: center; margin-top: 8px;">`+
			`<a href="%s" target="_blank" class="view-fullscreen-btn">View Full Screen ↗</a>`+
			`</div>`+
			`<!-- chart_html:%s -->`,
		ref, ref, ref,
	), nil
}

func buildFigure(rows []map[string]any, chartType, x, y, title, z string, logger *log.Logger) map[string]any {
	xs := columnValues(rows, x)
	ys := columnValues(rows, y)

	var traces []map[string]any
	layout := map[string]any{
		"title":  map[string]any{"text": title},
		"width":  600,
		"height": 350,
		"font":   map[string]any{"family": "Montserrat, sans-serif"},
		"xaxis":  map[string]any{"showgrid": false},
		"yaxis":  map[string]any{"showgrid": false},
		"colorway": palette,
		"legend": map[string]any{"title": map[string]any{"text": ""}},
	}

	switch chartType {
	case "line":
		traces = []map[string]any{{
			"type": "scatter", "mode": "lines+markers", "x": xs, "y": ys,
			"line": map[string]any{"width": 3},
		}}
	case "bar":
		traces = []map[string]any{{"type": "bar", "x": xs, "y": ys}}
	case "stacked_bar", "grouped_bar":
		for _, col := range splitColumns(y) {
			traces = append(traces, map[string]any{
				"type": "bar", "name": col, "x": xs, "y": columnValues(rows, col),
			})
		}
		if chartType == "stacked_bar" {
			layout["barmode"] = "stack"
		} else {
			layout["barmode"] = "group"
		}
	case "pie", "donut":
		trace := map[string]any{
			"type": "pie", "labels": xs, "values": ys,
			"textposition": "inside", "textinfo": "percent+label",
		}
		if chartType == "donut" {
			trace["hole"] = 0.4
		}
		traces = []map[string]any{trace}
	case "area":
		traces = []map[string]any{{
			"type": "scatter", "mode": "lines", "fill": "tozeroy", "x": xs, "y": ys,
		}}
	case "scatter":
		traces = []map[string]any{{
			"type": "scatter", "mode": "markers", "x": xs, "y": ys,
			"marker": map[string]any{"size": 10},
		}}
	case "histogram":
		traces = []map[string]any{{"type": "histogram", "x": xs}}
	case "heatmap":
		trace := map[string]any{
			"type": "histogram2d", "x": xs, "y": ys, "colorscale": "Blues",
		}
		if z != "" {
			trace["z"] = columnValues(rows, z)
		}
		traces = []map[string]any{trace}
	case "treemap":
		traces = []map[string]any{{"type": "treemap", "labels": xs, "values": ys}}
	case "funnel":
		traces = []map[string]any{{"type": "funnel", "y": xs, "x": ys}}
	default:
		logger.Printf("[WARN] Unknown chart type %q, defaulting to bar", chartType)
		traces = []map[string]any{{"type": "bar", "x": xs, "y": ys}}
	}

	return map[string]any{"data": traces, "layout": layout}
}

func columnValues(rows []map[string]any, col string) []any {
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		values = append(values, row[col])
	}
	return values
}

// splitColumns handles the comma-separated column list accepted by stacked
// and grouped bar charts.
func splitColumns(y string) []string {
	parts := strings.Split(y, ",")
	cols := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cols = append(cols, trimmed)
		}
	}
	return cols
}
