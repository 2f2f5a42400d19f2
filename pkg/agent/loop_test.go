package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cubie-assistant-be/pkg/genai"
	"cubie-assistant-be/pkg/navigation"
)

// Shared fakes for the collaborator interfaces.

type fakeQueries struct {
	runs []string
}

func (f *fakeQueries) Run(sql string) (string, error) {
	f.runs = append(f.runs, sql)
	if strings.Contains(sql, "boom") {
		return "", errors.New("query failed")
	}
	return `[{"carrier":"FedEx","count":120}]`, nil
}

func (f *fakeQueries) RunMulti(queries []string) ([]string, error) {
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		result, err := f.Run(q)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, nil
}

func (f *fakeQueries) Percentage(_, _ string) (string, error) {
	return `{"numerator":3,"denominator":4,"percent":75}`, nil
}

type fakeCharts struct{ rendered int }

func (f *fakeCharts) Render(_, _, _, _, _, _ string) (string, error) {
	f.rendered++
	return `<iframe src="/static/demo/chart1.html"></iframe><!-- chart_html:/static/demo/chart1.html -->`, nil
}

type fakeDisputes struct{}

func (fakeDisputes) SetStatus(_ int, newStatus, _ string) (string, error) {
	if newStatus == "" {
		return "closed", nil
	}
	return strings.ToLower(newStatus), nil
}

func (fakeDisputes) AddComment(_ int, _, _, _ string) (string, error) {
	return "inserted", nil
}

type fakeMailer struct {
	sent    []Draft
	outcome string
}

func (f *fakeMailer) Send(recipients []string, subject, body string, attachments []string) string {
	f.sent = append(f.sent, Draft{Recipients: recipients, Subject: subject, Body: body, Attachments: attachments})
	if f.outcome != "" {
		return f.outcome
	}
	return "[OK] Email sent successfully to " + strings.Join(recipients, ", ") + "!"
}

type fakeNav struct{}

func (fakeNav) Resolve(destination string) navigation.Result {
	if strings.Contains(strings.ToLower(destination), "rate") {
		return navigation.Result{
			Matched: true,
			URL:     "/ratecube/rate-calculator",
			Name:    "Rate Calculator",
			Message: "Opening Rate Calculator...",
		}
	}
	return navigation.Result{Matched: false, Message: "not found", Available: []string{"Rate Calculator"}}
}

// scriptedDriver replays canned responses and records what it was sent.
type scriptedDriver struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	sent      []genai.TurnMessage
}

func (d *scriptedDriver) Send(_ context.Context, msg genai.TurnMessage) (*genai.GenerateContentResponse, error) {
	d.sent = append(d.sent, msg)
	i := len(d.sent) - 1
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i >= len(d.responses) {
		return textResponse("done"), nil
	}
	return d.responses[i], nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{genai.TextPart(text)}}},
	}}
}

func toolCallResponse(calls ...*genai.FunctionCall) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(calls))
	for _, call := range calls {
		parts = append(parts, &genai.Part{FunctionCall: call})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}},
	}}
}

func newTestRunner(mailer *fakeMailer) (*Runner, *fakeQueries, *fakeCharts) {
	queries := &fakeQueries{}
	chartsFake := &fakeCharts{}
	toolbox := Toolbox{
		Queries:  queries,
		Charts:   chartsFake,
		Disputes: fakeDisputes{},
		Mail:     mailer,
		Nav:      fakeNav{},
	}
	runner := NewRunner(toolbox, NewDraftStore(), NewArtifacts(), log.New(io.Discard, "", 0))
	return runner, queries, chartsFake
}

func TestRunPlainAnswer(t *testing.T) {
	runner, _, _ := newTestRunner(&fakeMailer{})
	driver := &scriptedDriver{responses: []*genai.GenerateContentResponse{textResponse("Total spend is $5,000.")}}

	out, err := runner.Run(context.Background(), driver, "s1", "total spend?")
	require.NoError(t, err)
	assert.Equal(t, "Total spend is $5,000.", out.Reply)
	assert.Empty(t, out.NavigationURL)
	assert.Equal(t, "Total spend is $5,000.", runner.Artifacts().LastAnswer("s1"))
}

func TestRunToolResultsPreserveOrder(t *testing.T) {
	runner, queries, _ := newTestRunner(&fakeMailer{})
	driver := &scriptedDriver{responses: []*genai.GenerateContentResponse{
		toolCallResponse(
			&genai.FunctionCall{Name: "sql_tool", Args: map[string]any{"sql": "SELECT 1"}},
			&genai.FunctionCall{Name: "percentage_tool", Args: map[string]any{"numerator_sql": "SELECT 3", "denominator_sql": "SELECT 4"}},
			&genai.FunctionCall{Name: "sql_tool", Args: map[string]any{"sql": "SELECT 2"}},
		),
		textResponse("here you go"),
	}}

	_, err := runner.Run(context.Background(), driver, "s1", "numbers please")
	require.NoError(t, err)

	require.Len(t, driver.sent, 2)
	batch := driver.sent[1].ToolResults
	require.Len(t, batch, 3)
	assert.Equal(t, "sql_tool", batch[0].FunctionResponse.Name)
	assert.Equal(t, "percentage_tool", batch[1].FunctionResponse.Name)
	assert.Equal(t, "sql_tool", batch[2].FunctionResponse.Name)
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, queries.runs)
}

func TestRunChartPrependedWhenAnswerOmitsIt(t *testing.T) {
	runner, _, chartsFake := newTestRunner(&fakeMailer{})
	driver := &scriptedDriver{responses: []*genai.GenerateContentResponse{
		toolCallResponse(&genai.FunctionCall{Name: "chart_tool", Args: map[string]any{
			"sql": "SELECT 1", "chart_type": "bar", "x": "Carrier", "y": "Shipments",
		}}),
		textResponse("Here are your top carriers."),
	}}

	out, err := runner.Run(context.Background(), driver, "s1", "chart the top carriers")
	require.NoError(t, err)
	assert.Equal(t, 1, chartsFake.rendered)
	assert.True(t, strings.HasPrefix(out.Reply, "<iframe"))
	assert.Equal(t, 1, strings.Count(out.Reply, "<iframe"))
	assert.Equal(t, []string{"/static/demo/chart1.html"}, runner.Artifacts().RecentCharts("s1"))
}

func TestRunChartNotDuplicatedWhenModelEmbedsIt(t *testing.T) {
	runner, _, _ := newTestRunner(&fakeMailer{})
	driver := &scriptedDriver{responses: []*genai.GenerateContentResponse{
		toolCallResponse(&genai.FunctionCall{Name: "chart_tool", Args: map[string]any{
			"sql": "SELECT 1", "chart_type": "bar", "x": "a", "y": "b",
		}}),
		textResponse(`Done: <iframe src="/static/demo/chart1.html"></iframe>`),
	}}

	out, err := runner.Run(context.Background(), driver, "s1", "chart it")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out.Reply, "<iframe"))
}

func TestRunNavigationMarker(t *testing.T) {
	runner, _, _ := newTestRunner(&fakeMailer{})
	driver := &scriptedDriver{responses: []*genai.GenerateContentResponse{
		toolCallResponse(&genai.FunctionCall{Name: "navigate_tool", Args: map[string]any{"destination": "rate calculator"}}),
		textResponse("Taking you to the Rate Calculator now."),
	}}

	out, err := runner.Run(context.Background(), driver, "s1", "open rate calculator")
	require.NoError(t, err)
	assert.Equal(t, "/ratecube/rate-calculator", out.NavigationURL)
	assert.Contains(t, out.Reply, "<!-- NAVIGATE_TO:/ratecube/rate-calculator -->")
}

func TestRunToolErrorFedBackToModel(t *testing.T) {
	runner, _, _ := newTestRunner(&fakeMailer{})
	driver := &scriptedDriver{responses: []*genai.GenerateContentResponse{
		toolCallResponse(&genai.FunctionCall{Name: "sql_tool", Args: map[string]any{"sql": "SELECT boom"}}),
		textResponse("That query failed, sorry."),
	}}

	out, err := runner.Run(context.Background(), driver, "s1", "run it")
	require.NoError(t, err)
	assert.Equal(t, "That query failed, sorry.", out.Reply)

	result := driver.sent[1].ToolResults[0].FunctionResponse.Response["result"]
	assert.Contains(t, result.(string), "Error:")
}

func TestRunRoundCap(t *testing.T) {
	runner, _, _ := newTestRunner(&fakeMailer{})
	var responses []*genai.GenerateContentResponse
	for i := 0; i < 20; i++ {
		responses = append(responses, toolCallResponse(
			&genai.FunctionCall{Name: "sql_tool", Args: map[string]any{"sql": fmt.Sprintf("SELECT %d", i)}},
		))
	}
	driver := &scriptedDriver{responses: responses}

	out, err := runner.Run(context.Background(), driver, "s1", "loop forever")
	require.NoError(t, err)
	assert.Equal(t, giveUpReply, out.Reply)
	assert.Len(t, driver.sent, defaultMaxRounds)
}

func TestRunDriverErrorPropagates(t *testing.T) {
	runner, _, _ := newTestRunner(&fakeMailer{})
	driver := &scriptedDriver{errs: []error{genai.ErrQuotaExhausted}}

	_, err := runner.Run(context.Background(), driver, "s1", "hi")
	require.Error(t, err)
	assert.True(t, genai.IsQuotaExhausted(err))
}

func TestRunDraftEmailStashesAndEnriches(t *testing.T) {
	mailer := &fakeMailer{}
	runner, _, _ := newTestRunner(mailer)
	runner.Artifacts().Record("s1", "Top carrier is FedEx with 120 shipments.", []string{"/static/demo/chart1.html"})

	driver := &scriptedDriver{responses: []*genai.GenerateContentResponse{
		toolCallResponse(&genai.FunctionCall{Name: "draft_email_tool", Args: map[string]any{
			"to_usernames":  []any{"kangadi"},
			"subject":       "Carrier Summary",
			"body_markdown": "Summary attached.",
		}}),
		textResponse("Draft ready. Approve to send?"),
	}}

	_, err := runner.Run(context.Background(), driver, "s1", "email the summary to kangadi")
	require.NoError(t, err)
	assert.Empty(t, mailer.sent, "draft must not send immediately")

	draft, ok := runner.drafts.Take("s1")
	require.True(t, ok)
	assert.Equal(t, []string{"kangadi"}, draft.Recipients)
	assert.Equal(t, "Carrier Summary", draft.Subject)
	assert.Contains(t, draft.Body, "Recent results:", "numberless body is enriched from the last answer")
	assert.Equal(t, []string{"/static/demo/chart1.html"}, draft.Attachments)
}

func TestRunMailToolSendsImmediately(t *testing.T) {
	mailer := &fakeMailer{}
	runner, _, _ := newTestRunner(mailer)

	driver := &scriptedDriver{responses: []*genai.GenerateContentResponse{
		toolCallResponse(&genai.FunctionCall{Name: "mail_tool", Args: map[string]any{
			"to_usernames":  []any{"ops@tcube360.com"},
			"subject":       "Data",
			"body_markdown": "120 shipments",
		}}),
		textResponse("Sent!"),
	}}

	_, err := runner.Run(context.Background(), driver, "s1", "yes send exactly that")
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"ops@tcube360.com"}, mailer.sent[0].Recipients)
}

func TestRunUnknownTool(t *testing.T) {
	runner, _, _ := newTestRunner(&fakeMailer{})
	driver := &scriptedDriver{responses: []*genai.GenerateContentResponse{
		toolCallResponse(&genai.FunctionCall{Name: "time_travel_tool"}),
		textResponse("ok"),
	}}

	_, err := runner.Run(context.Background(), driver, "s1", "do something odd")
	require.NoError(t, err)
	assert.Equal(t, "Unsupported function", driver.sent[1].ToolResults[0].FunctionResponse.Response["result"])
}
