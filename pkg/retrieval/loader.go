package retrieval

import (
	"encoding/json"
	"fmt"
	"log"

	"gorm.io/gorm"

	"cubie-assistant-be/internal/entity"
	"cubie-assistant-be/pkg/embedding"
)

// LoadIndex reads the help-document snapshot (documents plus precomputed
// embeddings) from the database into an in-memory index. The snapshot is
// produced by the out-of-process regeneration step; this only ever reads.
func LoadIndex(db *gorm.DB, embedder embedding.Provider, logger *log.Logger) (*Index, error) {
	var rows []entity.HelpDocument
	if err := db.Order("position asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load help documents: %w", err)
	}

	docs := make([]Document, 0, len(rows))
	vectors := make([][]float32, 0, len(rows))
	for _, row := range rows {
		var tags []string
		if len(row.Tags) > 0 {
			if err := json.Unmarshal(row.Tags, &tags); err != nil {
				logger.Printf("[WARN] Bad tags payload on %q: %v", row.SectionTitle, err)
			}
		}
		docs = append(docs, Document{
			SectionTitle: row.SectionTitle,
			Content:      row.Content,
			SourceURL:    row.SourceURL,
			Cube:         row.Cube,
			Tags:         tags,
		})
		vectors = append(vectors, row.Embedding.Slice())
	}

	logger.Printf("[INFO] Loaded %d help documents into retrieval index", len(docs))
	return NewIndex(embedder, docs, vectors, logger)
}
