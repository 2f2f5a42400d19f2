package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cubie-assistant-be/internal/dto"
	"cubie-assistant-be/internal/pkg/logger"
	"cubie-assistant-be/pkg/agent"
	"cubie-assistant-be/pkg/embedding"
	"cubie-assistant-be/pkg/genai"
	"cubie-assistant-be/pkg/intent"
	"cubie-assistant-be/pkg/navigation"
	"cubie-assistant-be/pkg/retrieval"
)

const (
	testHelpModel   = "help-model"
	testRouterModel = "router-model"
)

var testFallbackModels = []string{"a-model", "b-model", "c-model"}

// scriptedBackend pops canned responses per model and records every request.
type scriptedBackend struct {
	mu        sync.Mutex
	responses map[string][]*genai.GenerateContentResponse
	errs      map[string]error
	requests  []scriptedRequest
}

type scriptedRequest struct {
	model string
	req   *genai.GenerateContentRequest
}

func (b *scriptedBackend) GenerateContent(_ context.Context, model string, req *genai.GenerateContentRequest) (*genai.GenerateContentResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, scriptedRequest{model: model, req: req})

	if err, ok := b.errs[model]; ok && err != nil {
		return nil, err
	}
	queue := b.responses[model]
	if len(queue) == 0 {
		return textResponse("default reply"), nil
	}
	next := queue[0]
	b.responses[model] = queue[1:]
	return next, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{genai.TextPart(text)}}},
	}}
}

func toolCallResponse(name string, args map[string]any) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
			{FunctionCall: &genai.FunctionCall{Name: name, Args: args}},
		}}},
	}}
}

// --- toolbox fakes ---

type fakeQueries struct{ runs []string }

func (f *fakeQueries) Run(sql string) (string, error) {
	f.runs = append(f.runs, sql)
	return `[{"total": 5}]`, nil
}
func (f *fakeQueries) RunMulti(queries []string) ([]string, error) {
	out := make([]string, len(queries))
	for i := range queries {
		out[i] = `[]`
	}
	return out, nil
}
func (f *fakeQueries) Percentage(_, _ string) (string, error) {
	return `{"numerator": 1, "denominator": 2, "percent": 50}`, nil
}

type fakeCharts struct{}

func (fakeCharts) Render(_, _, _, _, _, _ string) (string, error) {
	return "<iframe src=\"/static/demo/c1.html\"></iframe>\n<!-- chart_html:/static/demo/c1.html -->", nil
}

type fakeDisputes struct{}

func (fakeDisputes) SetStatus(int, string, string) (string, error)      { return "open", nil }
func (fakeDisputes) AddComment(int, string, string, string) (string, error) { return "inserted", nil }

type sentMail struct {
	recipients  []string
	subject     string
	body        string
	attachments []string
}

type fakeMailer struct {
	sent    []sentMail
	outcome string
}

func (m *fakeMailer) Send(recipients []string, subject, body string, attachments []string) string {
	m.sent = append(m.sent, sentMail{recipients, subject, body, attachments})
	if m.outcome != "" {
		return m.outcome
	}
	return fmt.Sprintf("[OK] Email sent successfully to %s!", strings.Join(recipients, ", "))
}

type fakeNav struct{}

func (fakeNav) Resolve(dest string) navigation.Result {
	return navigation.Result{Matched: true, URL: "/rates", Name: dest, Message: "Navigating"}
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }
func (nopLogger) GetLogs(string, int, int) ([]logger.LogEntry, error) {
	return nil, nil
}

type stubEmbedder struct{ vector []float32 }

func (s *stubEmbedder) Generate(_, _ string) (*embedding.Response, error) {
	return &embedding.Response{Embedding: embedding.Vector{Values: s.vector}}, nil
}

type testHarness struct {
	backend *scriptedBackend
	mailer  *fakeMailer
	queries *fakeQueries
	drafts  *agent.DraftStore
	runner  *agent.Runner
	svc     IChatService
}

func newHarness(t *testing.T, index *retrieval.Index, whitelist map[string]bool) *testHarness {
	t.Helper()
	backend := &scriptedBackend{
		responses: map[string][]*genai.GenerateContentResponse{},
		errs:      map[string]error{},
	}
	mailer := &fakeMailer{}
	queries := &fakeQueries{}
	drafts := agent.NewDraftStore()

	discard := log.New(io.Discard, "", 0)
	runner := agent.NewRunner(agent.Toolbox{
		Queries:  queries,
		Charts:   fakeCharts{},
		Disputes: fakeDisputes{},
		Mail:     mailer,
		Nav:      fakeNav{},
	}, drafts, agent.NewArtifacts(), discard)

	classifier := intent.NewClassifier(backend, testRouterModel, discard)
	svc := NewChatService(backend, testHelpModel, testFallbackModels, classifier,
		index, runner, "schema here", whitelist, nopLogger{}, discard)

	return &testHarness{
		backend: backend,
		mailer:  mailer,
		queries: queries,
		drafts:  drafts,
		runner:  runner,
		svc:     svc,
	}
}

func helpIndex(t *testing.T) (*retrieval.Index, map[string]bool) {
	t.Helper()
	url := "http://dev.tcube360.com/help/rate-calculator.html"
	docs := []retrieval.Document{{
		SectionTitle: "Rate Calculator Guide",
		Content:      "steps to calculate carrier rates",
		SourceURL:    url,
	}}
	ix, err := retrieval.NewIndex(&stubEmbedder{vector: []float32{1, 0}}, docs,
		[][]float32{{1, 0}}, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return ix, map[string]bool{url: true}
}

func TestQueryGreetingShortCircuits(t *testing.T) {
	h := newHarness(t, nil, nil)

	res, err := h.svc.Query(context.Background(), "s1", &dto.QueryRequest{Question: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, greetingReply, res.Reply)
	assert.Empty(t, h.backend.requests, "greetings must not reach the backend")
}

func TestQueryAmbiguousEmailAsksForClarification(t *testing.T) {
	h := newHarness(t, nil, nil)

	res, err := h.svc.Query(context.Background(), "s1", &dto.QueryRequest{Question: "email me"})
	require.NoError(t, err)
	assert.Equal(t, emailClarificationReply, res.Reply)
	assert.Empty(t, h.backend.requests)
}

func TestQueryEmailWithRecentContextGoesToAnalytics(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.runner.Artifacts().Record("s1", strings.Repeat("shipment summary data ", 5), nil)
	h.backend.responses["a-model"] = []*genai.GenerateContentResponse{
		textResponse("Draft ready, shall I send it?"),
	}

	res, err := h.svc.Query(context.Background(), "s1", &dto.QueryRequest{Question: "email me"})
	require.NoError(t, err)
	assert.Equal(t, "Draft ready, shall I send it?", res.Reply)
}

func TestQueryHelpFlowAppendsRelatedGuide(t *testing.T) {
	index, whitelist := helpIndex(t)
	h := newHarness(t, index, whitelist)
	h.backend.responses[testRouterModel] = []*genai.GenerateContentResponse{textResponse("HELP")}
	h.backend.responses[testHelpModel] = []*genai.GenerateContentResponse{
		textResponse("Open the Rate Calculator and enter the shipment details."),
	}

	res, err := h.svc.Query(context.Background(), "s1", &dto.QueryRequest{Question: "how do I calculate carrier rates"})
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "Open the Rate Calculator")
	assert.Contains(t, res.Reply, "[Open related guide](http://dev.tcube360.com/help/rate-calculator.html)")

	// last request went to the help model with the retrieved context inline
	last := h.backend.requests[len(h.backend.requests)-1]
	assert.Equal(t, testHelpModel, last.model)
	require.NotNil(t, last.req.SystemInstruction)
	assert.Contains(t, last.req.SystemInstruction.Parts[0].Text, "customer service assistant")
	userMsg := last.req.Contents[len(last.req.Contents)-1].Parts[0].Text
	assert.Contains(t, userMsg, "Help Context:")
	assert.Contains(t, userMsg, "Rate Calculator Guide")

	// the help answer is remembered for a later "email me this"
	assert.Contains(t, h.runner.Artifacts().LastAnswer("s1"), "Open the Rate Calculator")
}

func TestQueryAnalyticsFlowRunsTools(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.backend.responses[testRouterModel] = []*genai.GenerateContentResponse{textResponse("ANALYTICS")}
	h.backend.responses["a-model"] = []*genai.GenerateContentResponse{
		toolCallResponse("sql_tool", map[string]any{"sql": "SELECT COUNT(*) AS total FROM shipments"}),
		textResponse("You have 5 shipments."),
	}

	res, err := h.svc.Query(context.Background(), "s1", &dto.QueryRequest{Question: "how many shipments do we have"})
	require.NoError(t, err)
	assert.Equal(t, "You have 5 shipments.", res.Reply)
	require.Len(t, h.queries.runs, 1)
	assert.Contains(t, h.queries.runs[0], "SELECT COUNT(*)")

	// the analytics turn declares the toolset
	first := h.backend.requests[1]
	assert.Equal(t, "a-model", first.model)
	assert.NotEmpty(t, first.req.Tools)
	assert.Contains(t, first.req.SystemInstruction.Parts[0].Text, "schema here")
}

func TestQueryExplicitHelpModeOverriddenByDataIntent(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.backend.responses[testRouterModel] = []*genai.GenerateContentResponse{textResponse("ANALYTICS")}
	h.backend.responses["a-model"] = []*genai.GenerateContentResponse{
		textResponse("Total spend is $5,000."),
	}

	res, err := h.svc.Query(context.Background(), "s1", &dto.QueryRequest{
		Question: "what is our total freight spend",
		Mode:     "help",
	})
	require.NoError(t, err)
	assert.Equal(t, "Total spend is $5,000.", res.Reply)
	assert.NotEmpty(t, h.backend.requests[1].req.Tools, "data questions must route to the tool-equipped turn")
}

func TestQueryQuotaExhaustedSurfacesError(t *testing.T) {
	h := newHarness(t, nil, nil)
	// classifier fails too, keyword fallback still routes to analytics
	h.backend.errs[testRouterModel] = genai.ErrQuotaExhausted
	for _, model := range testFallbackModels {
		h.backend.errs[model] = genai.ErrQuotaExhausted
	}

	_, err := h.svc.Query(context.Background(), "s1", &dto.QueryRequest{Question: "count of shipments this month"})
	require.Error(t, err)
	assert.True(t, genai.IsQuotaExhausted(err))
}

func TestQueryHelpOverloadedReply(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.backend.responses[testRouterModel] = []*genai.GenerateContentResponse{textResponse("HELP")}
	h.backend.errs[testHelpModel] = genai.ErrQuotaExhausted

	res, err := h.svc.Query(context.Background(), "s1", &dto.QueryRequest{Question: "how do I use the audit dashboard"})
	require.NoError(t, err)
	assert.Equal(t, helpOverloadedReply, res.Reply)
}

func TestQueryDraftApprovalInterceptedBeforeModel(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.drafts.Stash("s1", agent.Draft{
		Recipients: []string{"ops@tcube360.com"},
		Subject:    "Shipment Summary",
		Body:       "All good.",
	})
	h.backend.responses[testRouterModel] = []*genai.GenerateContentResponse{textResponse("ANALYTICS")}

	res, err := h.svc.Query(context.Background(), "s1", &dto.QueryRequest{Question: "yes, send it", Mode: "analytics"})
	require.NoError(t, err)
	assert.Equal(t, "✅ Email has been sent successfully!", res.Reply)
	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, []string{"ops@tcube360.com"}, h.mailer.sent[0].recipients)
	// only the approval interception ran; the draft send needs no model call
	for _, r := range h.backend.requests {
		assert.NotContains(t, testFallbackModels, r.model)
	}
}

func TestQueryDraftApprovalInterceptedOnHelpSurface(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.drafts.Stash("s1", agent.Draft{
		Recipients: []string{"ops@tcube360.com"},
		Subject:    "Shipment Summary",
		Body:       "All good.",
	})

	// No mode pinned: without interception "approve" would classify as chat
	// and drift to the help model while the draft sits pending.
	res, err := h.svc.Query(context.Background(), "s1", &dto.QueryRequest{Question: "approve"})
	require.NoError(t, err)
	assert.Equal(t, "✅ Email has been sent successfully!", res.Reply)
	require.Len(t, h.mailer.sent, 1)
	assert.Empty(t, h.backend.requests, "draft resolution must not reach any model")
	assert.Equal(t, "❌ No email draft found to approve.", h.svc.ResolveApproval("s1", true))
}

func TestQueryDraftRejectionInterceptedOnHelpSurface(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.drafts.Stash("s1", agent.Draft{Recipients: []string{"a@b.com"}, Subject: "S", Body: "B"})

	res, err := h.svc.Query(context.Background(), "s1", &dto.QueryRequest{Question: "reject", Mode: "help"})
	require.NoError(t, err)
	assert.Equal(t, "❌ Email draft has been cancelled.", res.Reply)
	assert.Empty(t, h.mailer.sent)
	assert.Empty(t, h.backend.requests)
}

func TestResolveApproval(t *testing.T) {
	h := newHarness(t, nil, nil)

	assert.Equal(t, noDraftFoundReply, h.svc.ResolveApproval("s1", true))

	h.drafts.Stash("s1", agent.Draft{Recipients: []string{"a@b.com"}, Subject: "S", Body: "B"})
	assert.Equal(t, "✅ Email has been sent successfully!", h.svc.ResolveApproval("s1", true))
	require.Len(t, h.mailer.sent, 1)

	h.drafts.Stash("s1", agent.Draft{Recipients: []string{"a@b.com"}, Subject: "S", Body: "B"})
	assert.Equal(t, "❌ Email draft has been cancelled.", h.svc.ResolveApproval("s1", false))
	assert.Len(t, h.mailer.sent, 1)
}

func TestToContentsSkipsSystemTurns(t *testing.T) {
	contents := toContents([]dto.ChatTurn{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})
	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "hi", contents[0].Parts[0].Text)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
}
