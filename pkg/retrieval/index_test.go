package retrieval

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cubie-assistant-be/pkg/embedding"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Generate(_, _ string) (*embedding.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &embedding.Response{Embedding: embedding.Vector{Values: s.vector}}, nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newIndexForTest(t *testing.T, embedder embedding.Provider, docs []Document, vectors [][]float32) *Index {
	t.Helper()
	ix, err := NewIndex(embedder, docs, vectors, testLogger())
	require.NoError(t, err)
	return ix
}

func TestNewIndexRejectsMismatchedLengths(t *testing.T) {
	_, err := NewIndex(&stubEmbedder{}, []Document{{SectionTitle: "a"}}, nil, testLogger())
	assert.Error(t, err)
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	docs := []Document{
		{SectionTitle: "Rate Calculator Basics", Content: "calculate rates"},
		{SectionTitle: "Audit Exceptions", Content: "review exceptions"},
	}
	vectors := [][]float32{
		{1, 0},
		{0, 1},
	}
	ix := newIndexForTest(t, &stubEmbedder{vector: []float32{0.9, 0.1}}, docs, vectors)

	got := ix.Search("anything", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "Rate Calculator Basics", got[0].Document.SectionTitle)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestSearchKeywordBoostBreaksTies(t *testing.T) {
	docs := []Document{
		{SectionTitle: "General Overview", Content: "introduction"},
		{SectionTitle: "Shipment Dashboard", Content: "shipment kpi dashboard"},
	}
	vectors := [][]float32{
		{1, 0},
		{1, 0},
	}
	ix := newIndexForTest(t, &stubEmbedder{vector: []float32{1, 0}}, docs, vectors)

	got := ix.Search("show the shipment dashboard kpi", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "Shipment Dashboard", got[0].Document.SectionTitle)
}

func TestSearchCubeBonus(t *testing.T) {
	docs := []Document{
		{SectionTitle: "Pricing", Content: "pricing details", Cube: "Admin Cube"},
		{SectionTitle: "Pricing", Content: "pricing details", Cube: "Rate Cube"},
	}
	vectors := [][]float32{
		{1, 0},
		{1, 0},
	}
	ix := newIndexForTest(t, &stubEmbedder{vector: []float32{1, 0}}, docs, vectors)

	got := ix.Search("pricing in the rate cube", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "Rate Cube", got[0].Document.Cube)
}

func TestSearchFiltersNotReadyDocuments(t *testing.T) {
	docs := []Document{
		{SectionTitle: "Reports (Under Construction)", Content: "coming soon"},
		{SectionTitle: "Reports", Content: "full guide"},
	}
	vectors := [][]float32{
		{1, 0},
		{0.5, 0.5},
	}
	ix := newIndexForTest(t, &stubEmbedder{vector: []float32{1, 0}}, docs, vectors)

	got := ix.Search("reports", 2)
	require.Len(t, got, 1)
	assert.Equal(t, "full guide", got[0].Document.Content)
}

func TestSearchFallsBackToUnfilteredWhenAllExcluded(t *testing.T) {
	docs := []Document{
		{SectionTitle: "Reports", Content: "this page is under construction"},
		{SectionTitle: "Dashboards", Content: "also under construction"},
	}
	vectors := [][]float32{
		{1, 0},
		{0, 1},
	}
	ix := newIndexForTest(t, &stubEmbedder{vector: []float32{1, 0}}, docs, vectors)

	got := ix.Search("reports", 2)
	require.Len(t, got, 2, "filtering to zero must fall back to the full set")
	assert.Equal(t, "Reports", got[0].Document.SectionTitle)
}

func TestSearchEmbeddingFailureReturnsEmpty(t *testing.T) {
	docs := []Document{{SectionTitle: "Reports", Content: "guide"}}
	vectors := [][]float32{{1, 0}}
	ix := newIndexForTest(t, &stubEmbedder{err: errors.New("embedder down")}, docs, vectors)

	assert.Empty(t, ix.Search("reports", 2))
}

func TestSearchTopKTruncates(t *testing.T) {
	docs := make([]Document, 5)
	vectors := make([][]float32, 5)
	for i := range docs {
		docs[i] = Document{SectionTitle: "doc", Content: "content"}
		vectors[i] = []float32{1, float32(i)}
	}
	ix := newIndexForTest(t, &stubEmbedder{vector: []float32{1, 0}}, docs, vectors)

	assert.Len(t, ix.Search("doc", 3), 3)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}

func TestBuildContext(t *testing.T) {
	got := BuildContext([]Document{
		{SectionTitle: "A", SourceURL: "http://docs/a", Content: "alpha"},
		{SectionTitle: "B", SourceURL: "http://docs/b", Content: "beta"},
	})
	assert.Equal(t, "Section: A\nURL: http://docs/a\nContent: alpha\n\nSection: B\nURL: http://docs/b\nContent: beta", got)
}
