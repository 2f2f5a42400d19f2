package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
)

// OllamaProvider embeds via a local Ollama instance (e.g. nomic-embed-text).
type OllamaProvider struct {
	BaseURL string
	Model   string
}

var _ Provider = &OllamaProvider{}

func NewOllamaProvider(baseURL string, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (p *OllamaProvider) Generate(text string, taskType string) (*Response, error) {
	// taskType is accepted for interface compatibility; Ollama has no notion
	// of retrieval task types.

	reqBody := ollamaEmbedRequest{
		Model:  p.Model,
		Prompt: text,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/embeddings", p.BaseURL)
	res, err := http.Post(endpoint, "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embedding error: %s", string(bodyBytes))
	}

	var ollamaRes ollamaEmbedResponse
	if err := json.Unmarshal(bodyBytes, &ollamaRes); err != nil {
		return nil, err
	}

	values := make([]float32, len(ollamaRes.Embedding))
	for i, v := range ollamaRes.Embedding {
		values[i] = float32(v)
	}

	return &Response{
		Embedding: Vector{Values: normalize(values)},
	}, nil
}

// normalize scales a vector to unit length so cosine similarity reduces to a
// dot product regardless of the provider's output magnitude.
func normalize(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
