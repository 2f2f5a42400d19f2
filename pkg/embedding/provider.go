package embedding

// Task types passed through to providers that distinguish query vs document
// embeddings (Gemini does; Ollama ignores them).
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// Provider generates a fixed-dimensionality embedding vector for a text.
type Provider interface {
	Generate(text string, taskType string) (*Response, error)
}

type Response struct {
	Embedding Vector `json:"embedding"`
}

type Vector struct {
	Values []float32 `json:"values"`
}
