package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// HelpDocument is one section of the help documentation snapshot. Rows are
// written by the out-of-process regeneration step and only ever read here.
type HelpDocument struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position     int       `gorm:"index"` // original document order, used for stable ranking
	SectionTitle string
	Content      string
	SourceURL    string
	Cube         string          // owning subsystem (e.g. "Rate Cube")
	Tags         datatypes.JSON  // category tags as a JSON string array
	Embedding    pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt    time.Time
}

func (HelpDocument) TableName() string {
	return "help_documents"
}
