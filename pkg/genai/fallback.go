package genai

import (
	"context"
	"fmt"
	"log"
	"time"
)

// TurnMessage is one message submitted through the fallback driver: either
// free user text or a batch of tool results from the agent loop.
type TurnMessage struct {
	Text        string
	ToolResults []*Part
}

func (m TurnMessage) isToolResults() bool {
	return len(m.ToolResults) > 0
}

func (m TurnMessage) parts() []*Part {
	if m.isToolResults() {
		return m.ToolResults
	}
	return []*Part{TextPart(m.Text)}
}

// FallbackDriver wraps a chat session with model rotation. On a call failure
// it discards the session, advances to the next candidate model, waits a
// short fixed interval and retries; the session is rebuilt by replaying the
// full prior transcript against the new model. Only when every candidate has
// failed does the error reach the caller.
type FallbackDriver struct {
	backend    Backend
	models     []string
	config     ChatConfig
	retryDelay time.Duration
	logger     *log.Logger

	session      *ChatSession
	currentModel string
	history      []*Content
	turnStart    []*Content
	lastUserText string
}

func NewFallbackDriver(backend Backend, models []string, config ChatConfig, history []*Content, logger *log.Logger) *FallbackDriver {
	seeded := make([]*Content, len(history))
	copy(seeded, history)
	return &FallbackDriver{
		backend:    backend,
		models:     models,
		config:     config,
		retryDelay: time.Second,
		logger:     logger,
		history:    seeded,
		turnStart:  seeded,
	}
}

// CurrentModel returns the model the live session is bound to, or empty if
// no session exists yet.
func (d *FallbackDriver) CurrentModel() string {
	return d.currentModel
}

// Send submits msg, rotating through the candidate models on failure.
//
// Special case: when the pending message is a batch of tool results and we
// had to fall back to an alternate model, the original user utterance is
// resent instead of the tool payload, and the session is replayed from the
// transcript as it stood when the turn began. The running transcript ends
// with the failed model's unanswered function call and already carries the
// utterance; replaying it would hand the replacement model a dangling
// functionCall plus a duplicate question, which the backend may reject.
func (d *FallbackDriver) Send(ctx context.Context, msg TurnMessage) (*GenerateContentResponse, error) {
	if !msg.isToolResults() {
		d.turnStart = make([]*Content, len(d.history))
		copy(d.turnStart, d.history)
	}

	var lastErr error

	for _, model := range d.models {
		attempt := msg
		replay := d.history
		if msg.isToolResults() && model != d.models[0] {
			d.logger.Printf("[FALLBACK] Mid-tool-loop fallback, resending original utterance")
			attempt = TurnMessage{Text: d.lastUserText}
			replay = d.turnStart
		}

		if d.session == nil || model != d.currentModel {
			d.logger.Printf("[FALLBACK] Binding session to model %s", model)
			d.currentModel = model
			d.session = NewChat(d.backend, model, d.config, replay)
		}

		res, err := d.session.Send(ctx, attempt.parts()...)
		if err == nil {
			if msg.Text != "" {
				d.lastUserText = msg.Text
			}
			d.history = d.session.History()
			return res, nil
		}

		d.logger.Printf("[WARN] Model %s failed: %v", model, err)
		lastErr = err
		d.session = nil

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.retryDelay):
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate models configured")
	}
	return nil, lastErr
}
