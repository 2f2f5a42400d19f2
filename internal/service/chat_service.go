package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"cubie-assistant-be/internal/dto"
	"cubie-assistant-be/internal/pkg/logger"
	"cubie-assistant-be/pkg/agent"
	"cubie-assistant-be/pkg/genai"
	"cubie-assistant-be/pkg/intent"
	"cubie-assistant-be/pkg/retrieval"
)

const (
	helpOverloadedReply = "⚠️ **System Overloaded:** I am receiving too many requests right now. Please wait a minute and try again."
	noAnswerReply       = "I couldn't generate a response."
	noDraftFoundReply   = "❌ No email draft found to approve."

	helpTopK             = 3
	analyticsTemperature = 0.3
	helpTemperature      = 0.5
)

type IChatService interface {
	Query(ctx context.Context, sessionID string, req *dto.QueryRequest) (*dto.QueryResponse, error)
	ResolveApproval(sessionID string, approved bool) string
}

type chatService struct {
	backend        genai.Backend
	chatModel      string
	fallbackModels []string
	classifier     *intent.Classifier
	index          *retrieval.Index
	runner         *agent.Runner
	dbSchema       string
	helpWhitelist  map[string]bool
	logger         logger.ILogger
	stdLog         *log.Logger
}

func NewChatService(
	backend genai.Backend,
	chatModel string,
	fallbackModels []string,
	classifier *intent.Classifier,
	index *retrieval.Index,
	runner *agent.Runner,
	dbSchema string,
	helpWhitelist map[string]bool,
	appLogger logger.ILogger,
	stdLog *log.Logger,
) IChatService {
	return &chatService{
		backend:        backend,
		chatModel:      chatModel,
		fallbackModels: fallbackModels,
		classifier:     classifier,
		index:          index,
		runner:         runner,
		dbSchema:       dbSchema,
		helpWhitelist:  helpWhitelist,
		logger:         appLogger,
		stdLog:         stdLog,
	}
}

// Query routes one user utterance: greeting shortcut, intent classification,
// then either the retrieval-grounded help answer or the tool-driven analytics
// turn. Model and tool failures become apologetic replies; only quota
// exhaustion surfaces as an error, so the transport can answer 429.
func (s *chatService) Query(ctx context.Context, sessionID string, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	question := strings.TrimSpace(req.Question)

	if greetings[strings.ToLower(question)] {
		return &dto.QueryResponse{Reply: greetingReply}, nil
	}

	// A pending email draft is resolved before classification or the mode
	// branch: draft_email_tool tells the user to answer "approve" or
	// "reject", and that answer must work from the help surface too.
	if reply, handled := s.runner.Intercept(sessionID, question); handled {
		return &dto.QueryResponse{Reply: reply}, nil
	}

	history := make([]intent.Turn, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, intent.Turn{Role: turn.Role, Content: turn.Content})
	}

	category := s.classifier.Classify(ctx, question, req.Mode, history)
	s.logger.Info("chat", "Intent classified", map[string]interface{}{
		"session": sessionID, "category": string(category), "explicit_mode": req.Mode,
	})

	mode := req.Mode
	if mode == "" {
		mode = "help"
	}
	// Data, chart, email and navigation requests are all served by the
	// analytics turn even when the frontend is on the help surface.
	if mode == "help" && category != intent.CategoryHelp {
		mode = "analytics"
	}

	if category == intent.CategoryEmail {
		lastAnswer := s.runner.Artifacts().LastAnswer(sessionID)
		if shouldAskEmailContext(question, lastAnswer) {
			return &dto.QueryResponse{Reply: emailClarificationReply}, nil
		}
	}

	if mode == "analytics" {
		return s.analyticsTurn(ctx, sessionID, question, req)
	}
	return s.helpTurn(ctx, sessionID, question, req)
}

func (s *chatService) analyticsTurn(ctx context.Context, sessionID, question string, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	config := genai.ChatConfig{
		SystemInstruction: applyPrefs(analyticsSystemPrompt(s.dbSchema), req.Prefs),
		Tools:             agent.Declarations(),
		Temperature:       analyticsTemperature,
	}
	driver := genai.NewFallbackDriver(s.backend, s.fallbackModels, config, toContents(req.History), s.stdLog)

	outcome, err := s.runner.Run(ctx, driver, sessionID, question)
	if err != nil {
		if genai.IsQuotaExhausted(err) {
			s.logger.Warn("chat", "Quota exhausted across all fallback models", map[string]interface{}{"session": sessionID})
			return nil, err
		}
		s.logger.Error("chat", "Analytics turn failed", map[string]interface{}{"session": sessionID, "error": err.Error()})
		return &dto.QueryResponse{Reply: fmt.Sprintf("⚠️ **System Error:** %v", err)}, nil
	}

	return &dto.QueryResponse{Reply: outcome.Reply, NavigationURL: outcome.NavigationURL}, nil
}

func (s *chatService) helpTurn(ctx context.Context, sessionID, question string, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	var docs []retrieval.ScoredDocument
	if s.index != nil {
		docs = s.index.Search(question, helpTopK)
	}
	plain := make([]retrieval.Document, 0, len(docs))
	for _, scored := range docs {
		plain = append(plain, scored.Document)
	}
	helpContext := retrieval.BuildContext(plain)

	config := genai.ChatConfig{
		SystemInstruction: applyPrefs(helpSystemPrompt, req.Prefs),
		Temperature:       helpTemperature,
	}
	session := genai.NewChat(s.backend, s.chatModel, config, toContents(req.History))

	userMessage := question + "\n\nHelp Context:\n" + helpContext
	res, err := session.Send(ctx, genai.TextPart(userMessage))
	if err != nil {
		if genai.IsQuotaExhausted(err) {
			s.logger.Warn("chat", "Help model overloaded", map[string]interface{}{"session": sessionID})
			return &dto.QueryResponse{Reply: helpOverloadedReply}, nil
		}
		s.logger.Error("chat", "Help turn failed", map[string]interface{}{"session": sessionID, "error": err.Error()})
		return &dto.QueryResponse{Reply: fmt.Sprintf("⚠️ **System Error:** %v", err)}, nil
	}

	reply := strings.TrimSpace(res.Text())
	if reply == "" {
		reply = noAnswerReply
	}

	if url := relatedGuideLink(question, docs, s.helpWhitelist); url != "" && !strings.Contains(reply, url) {
		reply += fmt.Sprintf("\n\n[Open related guide](%s)", url)
	}

	// Help answers feed the same side channel as analytics ones, so "email
	// me this" works right after a help explanation too.
	s.runner.Artifacts().Record(sessionID, reply, nil)

	return &dto.QueryResponse{Reply: reply}, nil
}

// ResolveApproval serves the explicit approve/reject endpoint by reusing the
// same interception path the conversational tokens go through.
func (s *chatService) ResolveApproval(sessionID string, approved bool) string {
	token := "approve"
	if !approved {
		token = "reject"
	}
	reply, handled := s.runner.Intercept(sessionID, token)
	if !handled {
		return noDraftFoundReply
	}
	return reply
}

func toContents(history []dto.ChatTurn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range history {
		// The system turn is singular and carried as the session's system
		// instruction; stray system entries in client history are dropped.
		if turn.Role == "system" {
			continue
		}
		role := genai.RoleUser
		if turn.Role == "assistant" || turn.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.TextPart(turn.Content)},
		})
	}
	return contents
}
