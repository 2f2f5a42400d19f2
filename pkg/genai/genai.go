package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrQuotaExhausted is returned when the generative backend rejects the
// request because the project is out of quota (HTTP 429 / RESOURCE_EXHAUSTED).
// Callers use this to distinguish "overloaded" from generic failure.
var ErrQuotaExhausted = errors.New("generative backend quota exhausted")

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Part is a single piece of a message: plain text, a tool invocation
// requested by the model, or a tool result fed back to it.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

func TextPart(text string) *Part {
	return &Part{Text: text}
}

func FunctionResponsePart(name string, response map[string]any) *Part {
	return &Part{FunctionResponse: &FunctionResponse{Name: name, Response: response}}
}

type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

type Content struct {
	Role  string  `json:"role,omitempty"`
	Parts []*Part `json:"parts"`
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Schema is the JSON-schema-like parameter contract declared per tool.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

type Tool struct {
	FunctionDeclarations []*FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type GenerateContentRequest struct {
	Contents          []*Content        `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Tools             []*Tool           `json:"tools,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type Candidate struct {
	Content *Content `json:"content"`
}

type GenerateContentResponse struct {
	Candidates []*Candidate `json:"candidates"`
}

// Text returns the concatenated text parts of the first candidate.
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// FunctionCalls returns the tool invocations of the first candidate in the
// order the model emitted them.
func (r *GenerateContentResponse) FunctionCalls() []*FunctionCall {
	if r == nil || len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return nil
	}
	var calls []*FunctionCall
	for _, part := range r.Candidates[0].Content.Parts {
		if part != nil && part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}
	return calls
}

// Backend is the transport used to reach the generative model. The concrete
// Client talks to the Gemini REST API; tests substitute a fake.
type Backend interface {
	GenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error)
}

type Client struct {
	BaseURL string
	ApiKey  string
	Client  *http.Client
}

var _ Backend = &Client{}

func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		ApiKey:  apiKey,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *Client) GenerateContent(ctx context.Context, model string, genReq *GenerateContentRequest) (*GenerateContentResponse, error) {
	payload, err := json.Marshal(genReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.BaseURL, strings.TrimPrefix(model, "models/"))

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusTooManyRequests || strings.Contains(string(resBody), "RESOURCE_EXHAUSTED") {
			return nil, fmt.Errorf("%w: status %d, body %s", ErrQuotaExhausted, res.StatusCode, string(resBody))
		}
		return nil, fmt.Errorf("gemini error: status %d, body %s", res.StatusCode, string(resBody))
	}

	var genRes GenerateContentResponse
	if err := json.Unmarshal(resBody, &genRes); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(genRes.Candidates) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	return &genRes, nil
}

// IsQuotaExhausted reports whether err is (or wraps) a quota exhaustion
// failure from the backend.
func IsQuotaExhausted(err error) bool {
	if errors.Is(err, ErrQuotaExhausted) {
		return true
	}
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
