package intent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"cubie-assistant-be/pkg/genai"
)

// Category is the routing decision for one user utterance.
type Category string

const (
	CategoryHelp          Category = "help"
	CategoryAnalytics     Category = "analytics"
	CategoryVisualization Category = "visualization"
	CategoryNavigation    Category = "navigation"
	CategoryEmail         Category = "email"
)

// Turn is one prior exchange, used to give the generative stage short-range
// conversational context.
type Turn struct {
	Role    string
	Content string
}

const classifierInstruction = `You are an intent router for a logistics support assistant.
Classify the user's message into exactly one category:
NAVIGATION - the user wants to open, go to or launch a screen or page.
HELP - the user asks how to do something or what a feature is.
ANALYTICS - the user asks for numbers, counts, totals, rankings or reports over business data.
VISUALIZATION - the user asks for a chart, graph or plot of business data.
CHAT - small talk or anything else.
Reply with only the category word.`

// Classifier resolves the routing category for a query. Classification runs
// in three stages: a deterministic fast path on unambiguous phrasing, a
// zero-temperature generative call, then a pure keyword fallback when the
// model is unavailable or answers gibberish. The fast path and the fallback
// never touch the network.
type Classifier struct {
	backend genai.Backend
	model   string
	logger  *log.Logger
}

func NewClassifier(backend genai.Backend, model string, logger *log.Logger) *Classifier {
	return &Classifier{
		backend: backend,
		model:   model,
		logger:  logger,
	}
}

// Classify routes query to a category. explicitMode is the mode the frontend
// pinned ("analytics" when the user is on the analytics surface, empty
// otherwise); history is the running transcript, oldest first.
func (c *Classifier) Classify(ctx context.Context, query, explicitMode string, history []Turn) Category {
	if cat, ok := classifyFast(query, explicitMode); ok {
		return cat
	}

	cat, err := c.classifyGenerative(ctx, query, history)
	if err == nil {
		return cat
	}
	c.logger.Printf("[WARN] Generative intent classification failed, using keyword fallback: %v", err)

	return classifyByKeywords(query)
}

// classifyFast handles the phrasings that must never be second-guessed by the
// model: explicit send/email requests, and queries made while the frontend has
// pinned analytics mode.
func classifyFast(query, explicitMode string) (Category, bool) {
	q := strings.ToLower(query)

	for _, phrase := range emailPhrases {
		if strings.Contains(q, phrase) {
			return CategoryEmail, true
		}
	}

	if explicitMode == "analytics" {
		for _, kw := range visualizationKeywords {
			if strings.Contains(q, kw) {
				return CategoryVisualization, true
			}
		}
		return CategoryAnalytics, true
	}

	return "", false
}

func (c *Classifier) classifyGenerative(ctx context.Context, query string, history []Turn) (Category, error) {
	temp := 0.0
	req := &genai.GenerateContentRequest{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.TextPart(classifierInstruction)},
		},
		Contents: []*genai.Content{
			{Role: genai.RoleUser, Parts: []*genai.Part{genai.TextPart(classifierPrompt(query, history))}},
		},
		GenerationConfig: &genai.GenerationConfig{
			Temperature:     &temp,
			MaxOutputTokens: 10,
		},
	}

	res, err := c.backend.GenerateContent(ctx, c.model, req)
	if err != nil {
		return "", err
	}

	return parseCategory(res.Text())
}

// classifierPrompt includes at most the last two turns; older context tends
// to drag the router toward stale topics.
func classifierPrompt(query string, history []Turn) string {
	var sb strings.Builder
	start := len(history) - 2
	if start < 0 {
		start = 0
	}
	for _, turn := range history[start:] {
		sb.WriteString(turn.Role)
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("user: ")
	sb.WriteString(query)
	return sb.String()
}

func parseCategory(raw string) (Category, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(token, "NAVIGATION"):
		return CategoryNavigation, nil
	case strings.Contains(token, "VISUALIZATION"):
		return CategoryVisualization, nil
	case strings.Contains(token, "ANALYTICS"):
		return CategoryAnalytics, nil
	case strings.Contains(token, "HELP"), strings.Contains(token, "CHAT"):
		// Small talk goes down the help path: the help prompt already
		// knows how to deflect politely.
		return CategoryHelp, nil
	}
	return "", fmt.Errorf("unrecognized category token %q", raw)
}

// classifyByKeywords is the offline fallback. It is deliberately conservative:
// help wins ties, and navigation needs both a target and an action verb.
func classifyByKeywords(query string) Category {
	q := strings.ToLower(query)

	for _, pattern := range helpPatterns {
		if strings.Contains(q, pattern) {
			return CategoryHelp
		}
	}

	hasTarget := false
	for _, target := range navTargets {
		if strings.Contains(q, target) {
			hasTarget = true
			break
		}
	}
	if hasTarget {
		for _, verb := range navVerbs {
			if containsWord(q, verb) {
				return CategoryNavigation
			}
		}
	}

	for _, kw := range analyticsKeywords {
		if strings.Contains(q, kw) {
			return CategoryAnalytics
		}
	}

	return CategoryHelp
}

// containsWord matches verb as a whole word so that "go" does not fire
// inside "cargo" or "category".
func containsWord(text, word string) bool {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if field == word {
			return true
		}
	}
	return false
}
