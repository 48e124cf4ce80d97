package models

// Severity ranks how serious a technology conflict is.
type Severity string

// Conflict severities, highest first.
const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

var severityRank = map[Severity]int{
	SeverityHigh:   2,
	SeverityMedium: 1,
	SeverityLow:    0,
}

// Rank returns a numeric order for sorting, higher = more severe.
func (s Severity) Rank() int {
	return severityRank[s]
}

// ConflictInfo describes one set of mutually incompatible technology
// decisions within a category. Created transiently by conflict detection;
// not persisted unless explicitly recorded as a note.
type ConflictInfo struct {
	Category    string   `json:"category"`
	Values      []string `json:"values"` // the conflicting decision values
	Severity    Severity `json:"severity"`
	Explanation string   `json:"explanation"`
}
