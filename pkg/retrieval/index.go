package retrieval

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"cubie-assistant-be/pkg/embedding"
)

// Document is one indexed help section. Documents are immutable after load.
type Document struct {
	SectionTitle string
	Content      string
	SourceURL    string
	Cube         string
	Tags         []string
}

type ScoredDocument struct {
	Score    float64
	Document Document
}

// Terms that bump a document when they appear in both query and document.
var boostTerms = []string{
	"kpi", "dashboard", "visualization", "metrics", "summary", "trend", "table", "shipment",
}

// Named subsystem categories; matching one in both query and document cube
// earns a fixed bonus.
var cubeTerms = []string{
	"rate cube", "audit cube", "admin cube", "track cube",
}

const (
	keywordBoost = 0.02
	cubeBoost    = 0.05

	// Sections still being authored carry this marker and are excluded
	// from retrieval unless nothing else remains.
	notReadyMarker = "under construction"
)

// Index scores a fixed in-memory document set against query embeddings.
type Index struct {
	embedder embedding.Provider
	docs     []Document
	vectors  [][]float32
	logger   *log.Logger
}

func NewIndex(embedder embedding.Provider, docs []Document, vectors [][]float32, logger *log.Logger) (*Index, error) {
	if len(docs) != len(vectors) {
		return nil, fmt.Errorf("document/embedding count mismatch: %d docs, %d vectors", len(docs), len(vectors))
	}
	return &Index{
		embedder: embedder,
		docs:     docs,
		vectors:  vectors,
		logger:   logger,
	}, nil
}

func (ix *Index) Len() int {
	return len(ix.docs)
}

// SourceURLs returns the distinct page URLs present in the index. Callers use
// this as a whitelist so answers never link to fabricated pages.
func (ix *Index) SourceURLs() []string {
	seen := make(map[string]bool)
	var urls []string
	for _, doc := range ix.docs {
		if doc.SourceURL != "" && !seen[doc.SourceURL] {
			seen[doc.SourceURL] = true
			urls = append(urls, doc.SourceURL)
		}
	}
	return urls
}

// Search returns the topK documents ranked by boosted cosine similarity.
// Documents carrying the not-ready marker are excluded, unless excluding
// them would empty the candidate set entirely. If the embedding call fails
// the result is an empty set: retrieval degrades, the caller's prompt just
// loses its context.
func (ix *Index) Search(query string, topK int) []ScoredDocument {
	embeddingRes, err := ix.embedder.Generate(query, embedding.TaskRetrievalQuery)
	if err != nil {
		ix.logger.Printf("[WARN] Query embedding failed, returning no context: %v", err)
		return nil
	}
	queryVec := embeddingRes.Embedding.Values

	scored := ix.score(queryVec, query, true)
	if len(scored) == 0 {
		scored = ix.score(queryVec, query, false)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

func (ix *Index) score(queryVec []float32, query string, filterNotReady bool) []ScoredDocument {
	var scored []ScoredDocument
	for i, doc := range ix.docs {
		if filterNotReady && notReady(doc) {
			continue
		}
		sim := cosineSimilarity(queryVec, ix.vectors[i])
		scored = append(scored, ScoredDocument{
			Score:    boostScore(sim, doc, query),
			Document: doc,
		})
	}
	return scored
}

func notReady(doc Document) bool {
	return strings.Contains(strings.ToLower(doc.SectionTitle), notReadyMarker) ||
		strings.Contains(strings.ToLower(doc.Content), notReadyMarker)
}

// boostScore adds a fixed increment per keyword shared between query and
// document, plus a bonus when both reference the same subsystem cube.
func boostScore(score float64, doc Document, query string) float64 {
	content := strings.ToLower(doc.SectionTitle + " " + doc.Content)
	q := strings.ToLower(query)

	for _, term := range boostTerms {
		if strings.Contains(content, term) && strings.Contains(q, term) {
			score += keywordBoost
		}
	}

	docCube := strings.ToLower(doc.Cube)
	for _, cube := range cubeTerms {
		if strings.Contains(q, cube) && strings.Contains(docCube, cube) {
			score += cubeBoost
			break
		}
	}
	return score
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// BuildContext formats documents into the prompt context block.
func BuildContext(docs []Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, fmt.Sprintf(
			"Section: %s\nURL: %s\nContent: %s",
			doc.SectionTitle, doc.SourceURL, doc.Content,
		))
	}
	return strings.Join(parts, "\n\n")
}
