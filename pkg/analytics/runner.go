package analytics

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

var (
	readOnlyPattern   = regexp.MustCompile(`(?i)^\s*select\b`)
	disallowedPattern = regexp.MustCompile(`(?i)\b(drop|delete|update|insert|alter|truncate)\b`)
)

// ValidateSQL rejects anything that is not a plain read-only SELECT. The
// statement text comes from a generative model, so both checks are required:
// the SELECT prefix and the absence of mutating keywords anywhere in the text
// (subqueries, stacked statements).
func ValidateSQL(sql string) error {
	if !readOnlyPattern.MatchString(sql) {
		return fmt.Errorf("only SELECT statements are permitted")
	}
	if disallowedPattern.MatchString(sql) {
		return fmt.Errorf("dangerous keyword detected; query rejected")
	}
	return nil
}

// Macro tokens the model may emit instead of date arithmetic.
var macros = map[string]string{
	"{{CURRENT_YEAR}}":  "EXTRACT(YEAR FROM CURRENT_DATE)",
	"{{CURRENT_MONTH}}": "EXTRACT(MONTH FROM CURRENT_DATE)",
}

func ExpandMacros(sql string) string {
	for token, replacement := range macros {
		sql = strings.ReplaceAll(sql, token, replacement)
	}
	return sql
}

// Runner executes validated read-only queries on behalf of the agent tools.
type Runner struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewRunner(db *gorm.DB, logger *log.Logger) *Runner {
	return &Runner{db: db, logger: logger}
}

// QueryRows validates, expands macros and runs sql, returning the raw rows.
func (r *Runner) QueryRows(sql string) ([]map[string]any, error) {
	if err := ValidateSQL(sql); err != nil {
		return nil, err
	}
	sql = ExpandMacros(sql)
	r.logger.Printf("[INFO] SQL run: %s", sql)

	var rows []map[string]any
	if err := r.db.Raw(sql).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return rows, nil
}

// Run executes one query and returns its rows as a JSON array string. An
// empty result is reported as an explicit notice row so the model states
// "no data" instead of hallucinating values.
func (r *Runner) Run(sql string) (string, error) {
	rows, err := r.QueryRows(sql)
	if err != nil {
		return "", err
	}
	return serializeRows(rows)
}

// RunMulti executes queries in order and returns one JSON string per query.
// The first failure aborts the batch.
func (r *Runner) RunMulti(queries []string) ([]string, error) {
	results := make([]string, 0, len(queries))
	for _, q := range queries {
		result, err := r.Run(q)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Percentage runs a numerator and a denominator query, each expected to
// return a single numeric value, and reports numerator/denominator*100.
// A zero denominator yields a null percent rather than an error.
func (r *Runner) Percentage(numeratorSQL, denominatorSQL string) (string, error) {
	numerator, err := r.scalar(numeratorSQL)
	if err != nil {
		return "", err
	}
	denominator, err := r.scalar(denominatorSQL)
	if err != nil {
		return "", err
	}

	var percent *float64
	if denominator != 0 {
		p := numerator / denominator * 100.0
		percent = &p
	}

	payload, err := json.Marshal(map[string]any{
		"numerator":   numerator,
		"denominator": denominator,
		"percent":     percent,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (r *Runner) scalar(sql string) (float64, error) {
	rows, err := r.QueryRows(sql)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, value := range rows[0] {
		if f, ok := toFloat(value); ok {
			return f, nil
		}
	}
	return 0, fmt.Errorf("query returned no numeric value")
}

func serializeRows(rows []map[string]any) (string, error) {
	if len(rows) == 0 {
		return `[{"notice":"no_rows"}]`, nil
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("serialize rows: %w", err)
	}
	return string(payload), nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
