package models

import "time"

// KnowledgeEntry is a unit of project knowledge: free text plus the embedding
// that places it in the vector index. Entries are created on ingestion, never
// mutated, and deleted with their owning project.
type KnowledgeEntry struct {
	ID        string    `json:"id"` // generator-issued, "know_" prefix
	ProjectID string    `json:"project_id"`
	Content   string    `json:"content"`
	Source    string    `json:"source"` // e.g. "socratic_answer", "document:design.md"
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
