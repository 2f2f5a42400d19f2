package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"cubie-assistant-be/pkg/charts"
	"cubie-assistant-be/pkg/genai"
	"cubie-assistant-be/pkg/navigation"
)

// The collaborators the agent tools dispatch to. Narrow interfaces so the
// loop is testable without a database, SMTP server or filesystem.

type QueryRunner interface {
	Run(sql string) (string, error)
	RunMulti(queries []string) ([]string, error)
	Percentage(numeratorSQL, denominatorSQL string) (string, error)
}

type ChartRenderer interface {
	Render(sql, chartType, x, y, title, z string) (string, error)
}

type DisputeWriter interface {
	SetStatus(disputeID int, newStatus, changedBy string) (string, error)
	AddComment(disputeID int, comments, processor, assignedTo string) (string, error)
}

// MailSender returns an outcome string rather than an error: delivery
// failures are part of the answer ("[ERROR] ..."), not control flow.
type MailSender interface {
	Send(recipients []string, subject, bodyMarkdown string, attachments []string) string
}

type NavigationResolver interface {
	Resolve(destination string) navigation.Result
}

type Toolbox struct {
	Queries  QueryRunner
	Charts   ChartRenderer
	Disputes DisputeWriter
	Mail     MailSender
	Nav      NavigationResolver
}

// Declarations describes every tool to the generative backend. This must
// stay in sync with the dispatch in executeCall.
func Declarations() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "sql_tool",
				Description: "Run a read-only SQL query and return JSON rows",
				Parameters: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"sql": {Type: "string"},
					},
					Required: []string{"sql"},
				},
			},
			{
				Name:        "multi_sql_tool",
				Description: "Run multiple read-only SQL queries and return a list of JSON result strings",
				Parameters: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"queries": {Type: "array", Items: &genai.Schema{Type: "string"}},
					},
					Required: []string{"queries"},
				},
			},
			{
				Name:        "percentage_tool",
				Description: "Compute a percentage from two SQL queries (numerator and denominator)",
				Parameters: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"numerator_sql":   {Type: "string"},
						"denominator_sql": {Type: "string"},
					},
					Required: []string{"numerator_sql", "denominator_sql"},
				},
			},
			{
				Name: "chart_tool",
				Description: "Generate an interactive chart. Supported chart_type values: 'line', 'bar', " +
					"'stacked_bar', 'grouped_bar', 'pie', 'donut', 'area', 'scatter', 'histogram', 'heatmap', " +
					"'treemap', 'funnel'. For pie/donut: x=labels (category column), y=values (numeric column). " +
					"For others: x=x-axis, y=y-axis. Always include a descriptive title.",
				Parameters: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"sql":        {Type: "string", Description: "SQL query to fetch data for the chart"},
						"chart_type": {Type: "string", Description: "One of: line, bar, stacked_bar, grouped_bar, pie, donut, area, scatter, histogram, heatmap, treemap, funnel"},
						"x":          {Type: "string", Description: "Column for x-axis (or labels for pie/donut)"},
						"y":          {Type: "string", Description: "Column for y-axis (or values for pie/donut). For stacked bars, comma-separate column names."},
						"title":      {Type: "string", Description: "Chart title"},
						"z":          {Type: "string", Description: "Optional z-axis column for heatmaps"},
					},
					Required: []string{"sql", "chart_type", "x", "y"},
				},
			},
			{
				Name:        "update_dispute_status",
				Description: "Set a dispute's status to Open or Closed. Omit new_status to toggle the current value.",
				Parameters: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"dispute_id": {Type: "integer"},
						"new_status": {Type: "string"},
						"changed_by": {Type: "string"},
					},
					Required: []string{"dispute_id", "changed_by"},
				},
			},
			{
				Name:        "add_audit_comment",
				Description: "Insert a comment row into the audit trail for a dispute",
				Parameters: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"dispute_id":  {Type: "integer"},
						"comments":    {Type: "string"},
						"processor":   {Type: "string"},
						"assigned_to": {Type: "string"},
					},
					Required: []string{"dispute_id", "comments"},
				},
			},
			{
				Name: "draft_email_tool",
				Description: "Prepare an email to TCube users for the user's approval. The draft is held until " +
					"the user confirms with 'approve' or cancels with 'reject'. Charts from this conversation " +
					"are attached automatically.",
				Parameters: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"to_usernames":  {Type: "array", Items: &genai.Schema{Type: "string"}},
						"subject":       {Type: "string"},
						"body_markdown": {Type: "string"},
						"attachments":   {Type: "array", Items: &genai.Schema{Type: "string"}},
					},
					Required: []string{"to_usernames", "subject", "body_markdown"},
				},
			},
			{
				Name:        "mail_tool",
				Description: "Send an email immediately, without an approval step. Use only when the user has already confirmed exactly what to send.",
				Parameters: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"to_usernames":  {Type: "array", Items: &genai.Schema{Type: "string"}},
						"subject":       {Type: "string"},
						"body_markdown": {Type: "string"},
						"attachments":   {Type: "array", Items: &genai.Schema{Type: "string"}},
					},
					Required: []string{"to_usernames", "subject", "body_markdown"},
				},
			},
			{
				Name: "navigate_tool",
				Description: "Navigate the user to a specific screen/page in the TCube application (RateCube, AuditCube). " +
					"Use when the user wants to go to, open, or navigate to a specific menu, tab, dashboard, or screen.",
				Parameters: &genai.Schema{
					Type: "object",
					Properties: map[string]*genai.Schema{
						"destination": {Type: "string", Description: "The screen or page the user wants to navigate to (e.g., 'Rate Calculator', 'Rate Dashboard')"},
					},
					Required: []string{"destination"},
				},
			},
		},
	}}
}

// executeCall dispatches one tool invocation. Failures come back as result
// strings so the model can see them and retry with corrected arguments; the
// turn itself never aborts on a tool error.
func (r *Runner) executeCall(sessionID string, call *genai.FunctionCall, turn *turnState) string {
	args := call.Args
	r.logger.Printf("[INFO] Tool call: %s", call.Name)

	switch call.Name {
	case "sql_tool":
		result, err := r.toolbox.Queries.Run(stringArg(args, "sql"))
		if err != nil {
			return "Error: " + err.Error()
		}
		return result

	case "multi_sql_tool":
		results, err := r.toolbox.Queries.RunMulti(stringSliceArg(args, "queries"))
		if err != nil {
			return "Error: " + err.Error()
		}
		payload, err := json.Marshal(results)
		if err != nil {
			return "Error: " + err.Error()
		}
		return string(payload)

	case "percentage_tool":
		result, err := r.toolbox.Queries.Percentage(
			stringArg(args, "numerator_sql"), stringArg(args, "denominator_sql"))
		if err != nil {
			return "Error: " + err.Error()
		}
		return result

	case "chart_tool":
		result, err := r.toolbox.Charts.Render(
			stringArg(args, "sql"),
			stringArgDefault(args, "chart_type", "line"),
			stringArg(args, "x"),
			stringArg(args, "y"),
			stringArg(args, "title"),
			stringArg(args, "z"),
		)
		if err != nil {
			return fmt.Sprintf("Sorry, I couldn't generate that chart: %v", err)
		}
		if charts.ContainsEmbed(result) {
			turn.chartSnippet = result
			r.artifacts.AddCharts(sessionID, charts.ExtractRefs(result))
		}
		return result

	case "update_dispute_status":
		status, err := r.toolbox.Disputes.SetStatus(
			intArg(args, "dispute_id"),
			stringArg(args, "new_status"),
			stringArgDefault(args, "changed_by", "agent"),
		)
		if err != nil {
			return "Error: " + err.Error()
		}
		return status

	case "add_audit_comment":
		ack, err := r.toolbox.Disputes.AddComment(
			intArg(args, "dispute_id"),
			stringArg(args, "comments"),
			stringArgDefault(args, "processor", "agent"),
			stringArg(args, "assigned_to"),
		)
		if err != nil {
			return "Error: " + err.Error()
		}
		return ack

	case "draft_email_tool":
		return r.draftEmail(sessionID, args)

	case "mail_tool":
		recipients, subject, body, attachments := r.emailArgs(sessionID, args)
		return r.toolbox.Mail.Send(recipients, subject, body, attachments)

	case "navigate_tool":
		result := r.toolbox.Nav.Resolve(stringArg(args, "destination"))
		if result.Matched {
			turn.navURL = result.URL
		}
		return encodeNavResult(result)
	}

	return "Unsupported function"
}

func (r *Runner) draftEmail(sessionID string, args map[string]any) string {
	recipients, subject, body, attachments := r.emailArgs(sessionID, args)
	if len(recipients) == 0 {
		return "Error: No valid recipients found. Please provide a valid email address or username."
	}

	r.drafts.Stash(sessionID, Draft{
		Recipients:  recipients,
		Subject:     subject,
		Body:        body,
		Attachments: attachments,
	})

	return fmt.Sprintf(
		"Draft ready for %s with subject '%s' (%d attachment(s)). "+
			"Ask the user to reply 'approve' to send it or 'reject' to cancel.",
		strings.Join(recipients, ", "), subject, len(attachments),
	)
}

// emailArgs assembles the outgoing message, filling gaps from the session's
// side-channel state: an empty body falls back to the last answer, a body
// with no figures gets the last answer appended, and recently produced
// charts are always attached.
func (r *Runner) emailArgs(sessionID string, args map[string]any) (recipients []string, subject, body string, attachments []string) {
	recipients = stringSliceArg(args, "to_usernames")
	subject = stringArgDefault(args, "subject", "Assistance Summary")

	lastAnswer := r.artifacts.LastAnswer(sessionID)
	body = stringArg(args, "body_markdown")
	if body == "" {
		body = lastAnswer
	} else if !hasDigit(body) && hasDigit(lastAnswer) {
		body = strings.TrimSpace(body + "\n\nRecent results:\n" + lastAnswer)
	}

	attachments = mergeCharts(stringSliceArg(args, "attachments"), r.artifacts.RecentCharts(sessionID))
	return recipients, subject, body, attachments
}

func encodeNavResult(result navigation.Result) string {
	var payload map[string]any
	if result.Matched {
		payload = map[string]any{
			"action":      "navigate",
			"url":         result.URL,
			"name":        result.Name,
			"description": result.Description,
			"message":     result.Message,
		}
	} else {
		payload = map[string]any{
			"action":           "not_found",
			"message":          result.Message,
			"available_routes": result.Available,
		}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "Error: " + err.Error()
	}
	return string(encoded)
}

// Argument coercion: the model sometimes omits optional arguments or sends
// a bare string where an array is declared. Missing values become zero
// values rather than failing the whole turn.

func stringArg(args map[string]any, key string) string {
	if value, ok := args[key].(string); ok {
		return value
	}
	return ""
}

func stringArgDefault(args map[string]any, key, fallback string) string {
	if value := stringArg(args, key); value != "" {
		return value
	}
	return fallback
}

func stringSliceArg(args map[string]any, key string) []string {
	switch value := args[key].(type) {
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if value == "" {
			return nil
		}
		return []string{value}
	default:
		return nil
	}
}

func intArg(args map[string]any, key string) int {
	switch value := args[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return int(n)
		}
	}
	return 0
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
