package genai

import "context"

// ChatConfig carries the per-session model configuration: system prompt,
// declared tools and sampling temperature.
type ChatConfig struct {
	SystemInstruction string
	Tools             []*Tool
	Temperature       float64
}

// ChatSession is a stateful conversational context bound to one model.
// Reconnection after a model switch is a pure function of the stored
// history: the full prior transcript is replayed on every call, so the
// session never depends on hidden backend state.
type ChatSession struct {
	backend Backend
	model   string
	config  ChatConfig
	history []*Content
}

// NewChat creates a session seeded with prior history (everything except the
// message about to be sent).
func NewChat(backend Backend, model string, config ChatConfig, history []*Content) *ChatSession {
	seeded := make([]*Content, len(history))
	copy(seeded, history)
	return &ChatSession{
		backend: backend,
		model:   model,
		config:  config,
		history: seeded,
	}
}

func (s *ChatSession) Model() string {
	return s.model
}

// History returns the transcript accumulated so far, including turns
// appended by Send.
func (s *ChatSession) History() []*Content {
	out := make([]*Content, len(s.history))
	copy(out, s.history)
	return out
}

// Send appends the given parts as a user turn, submits the whole transcript
// to the bound model and records the model's reply in the history.
func (s *ChatSession) Send(ctx context.Context, parts ...*Part) (*GenerateContentResponse, error) {
	turn := &Content{Role: RoleUser, Parts: parts}
	contents := append(append([]*Content{}, s.history...), turn)

	req := &GenerateContentRequest{
		Contents:         contents,
		Tools:            s.config.Tools,
		GenerationConfig: &GenerationConfig{Temperature: &s.config.Temperature},
	}
	if s.config.SystemInstruction != "" {
		req.SystemInstruction = &Content{Parts: []*Part{TextPart(s.config.SystemInstruction)}}
	}

	res, err := s.backend.GenerateContent(ctx, s.model, req)
	if err != nil {
		return nil, err
	}

	s.history = append(s.history, turn)
	if len(res.Candidates) > 0 && res.Candidates[0].Content != nil {
		reply := res.Candidates[0].Content
		if reply.Role == "" {
			reply.Role = RoleModel
		}
		s.history = append(s.history, reply)
	}
	return res, nil
}
