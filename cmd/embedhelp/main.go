package main

import (
	"log"
	"time"

	"github.com/fatih/color"
	"github.com/pgvector/pgvector-go"

	"cubie-assistant-be/internal/config"
	"cubie-assistant-be/internal/entity"
	"cubie-assistant-be/pkg/database"
	"cubie-assistant-be/pkg/embedding"
)

// Regenerates the embedding column for every help document. Run after editing
// help content or switching embedding providers.
func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("Unable to connect to GORM DB: %v", err)
	}

	var provider embedding.Provider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		provider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	} else {
		provider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
	}

	var docs []entity.HelpDocument
	if err := db.Order("position asc").Find(&docs).Error; err != nil {
		log.Fatalf("Failed to load help documents: %v", err)
	}
	color.Cyan("Regenerating embeddings for %d help documents", len(docs))

	failed := 0
	for i, doc := range docs {
		text := doc.SectionTitle + "\n" + doc.Content
		res, err := provider.Generate(text, embedding.TaskRetrievalDocument)
		if err != nil {
			color.Red("[%d/%d] %s: %v", i+1, len(docs), doc.SectionTitle, err)
			failed++
			continue
		}

		vec := pgvector.NewVector(res.Embedding.Values)
		if err := db.Model(&entity.HelpDocument{}).Where("id = ?", doc.Id).Update("embedding", vec).Error; err != nil {
			color.Red("[%d/%d] %s: update failed: %v", i+1, len(docs), doc.SectionTitle, err)
			failed++
			continue
		}
		color.Green("[%d/%d] %s", i+1, len(docs), doc.SectionTitle)

		// stay under the embedding API rate limit
		time.Sleep(200 * time.Millisecond)
	}

	if failed > 0 {
		color.Yellow("Done with %d failures", failed)
		return
	}
	color.Cyan("Done")
}
