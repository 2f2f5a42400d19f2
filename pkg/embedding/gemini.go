package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultGeminiModel = "gemini-embedding-001"

type GeminiProvider struct {
	ApiKey string
	Model  string
	Client *http.Client
}

var _ Provider = &GeminiProvider{}

func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{
		ApiKey: apiKey,
		Model:  defaultGeminiModel,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type geminiEmbedRequest struct {
	Model    string             `json:"model"`
	Content  geminiEmbedContent `json:"content"`
	TaskType string             `json:"taskType,omitempty"`
}

type geminiEmbedContent struct {
	Parts []geminiEmbedPart `json:"parts"`
}

type geminiEmbedPart struct {
	Text string `json:"text"`
}

func (p *GeminiProvider) Generate(text string, taskType string) (*Response, error) {
	payload := geminiEmbedRequest{
		Model: "models/" + p.Model,
		Content: geminiEmbedContent{
			Parts: []geminiEmbedPart{{Text: text}},
		},
		TaskType: taskType,
	}
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:embedContent",
		p.Model,
	)

	req, err := http.NewRequest("POST", endpoint, bytes.NewBuffer(payloadJson))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	resBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini embedding error: status %d, body %s", res.StatusCode, string(resBytes))
	}

	var embeddingRes Response
	if err := json.Unmarshal(resBytes, &embeddingRes); err != nil {
		return nil, err
	}

	return &embeddingRes, nil
}
