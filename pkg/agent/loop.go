package agent

import (
	"context"
	"log"
	"strings"

	"cubie-assistant-be/pkg/charts"
	"cubie-assistant-be/pkg/genai"
)

// defaultMaxRounds caps tool-call round trips per turn so a confused model
// cannot burn quota in an endless tool loop.
const defaultMaxRounds = 8

const giveUpReply = "I wasn't able to finish that request. Could you try rephrasing it, or break it into smaller steps?"

// ChatDriver is the conversational transport the loop talks through,
// satisfied by genai.FallbackDriver.
type ChatDriver interface {
	Send(ctx context.Context, msg genai.TurnMessage) (*genai.GenerateContentResponse, error)
}

// Outcome is the finished turn handed back to the HTTP layer.
type Outcome struct {
	Reply         string
	NavigationURL string
}

// turnState accumulates tool side effects within a single turn.
type turnState struct {
	chartSnippet string
	navURL       string
}

// Runner owns the analytics-mode turn: the pre-loop draft interception, the
// tool-invocation loop, and the side-channel state updates at the end.
type Runner struct {
	toolbox   Toolbox
	drafts    *DraftStore
	artifacts *Artifacts
	maxRounds int
	logger    *log.Logger
}

func NewRunner(toolbox Toolbox, drafts *DraftStore, artifacts *Artifacts, logger *log.Logger) *Runner {
	return &Runner{
		toolbox:   toolbox,
		drafts:    drafts,
		artifacts: artifacts,
		maxRounds: defaultMaxRounds,
		logger:    logger,
	}
}

// Artifacts exposes the side-channel state for callers outside the loop
// (help-mode records its answers here too).
func (r *Runner) Artifacts() *Artifacts {
	return r.artifacts
}

// Run drives one analytics turn: send the user message, execute any tool
// calls the model requests, feed the results back, repeat until the model
// answers in plain text. Tool results are returned in invocation order
// within each round, and the rounds are capped.
func (r *Runner) Run(ctx context.Context, driver ChatDriver, sessionID, userMessage string) (Outcome, error) {
	turn := &turnState{}
	msg := genai.TurnMessage{Text: userMessage}

	for round := 0; round < r.maxRounds; round++ {
		res, err := driver.Send(ctx, msg)
		if err != nil {
			return Outcome{}, err
		}

		calls := res.FunctionCalls()
		if len(calls) == 0 {
			return r.finalize(sessionID, res.Text(), turn), nil
		}

		results := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			result := r.executeCall(sessionID, call, turn)
			results = append(results, genai.FunctionResponsePart(call.Name, map[string]any{"result": result}))
		}
		msg = genai.TurnMessage{ToolResults: results}
	}

	r.logger.Printf("[WARN] Agent loop hit round cap (%d) for session %s, giving up", r.maxRounds, sessionID)
	return Outcome{Reply: giveUpReply}, nil
}

// finalize post-processes the model's plain-text answer: append the
// navigation marker, persist side-channel state, and make sure a chart
// rendered this turn is actually visible in the reply.
func (r *Runner) finalize(sessionID, text string, turn *turnState) Outcome {
	reply := strings.TrimSpace(text)
	if reply == "" {
		reply = "I couldn't generate a response."
	}

	out := Outcome{}
	if turn.navURL != "" {
		reply += "\n\n<!-- NAVIGATE_TO:" + turn.navURL + " -->"
		out.NavigationURL = turn.navURL
	}

	r.artifacts.Record(sessionID, reply, charts.ExtractRefs(turn.chartSnippet))

	if turn.chartSnippet != "" && !charts.ContainsEmbed(reply) {
		reply = turn.chartSnippet + "\n\n" + reply
	}

	out.Reply = reply
	return out
}
