package models

// OutlinePayload is stored alongside each file's outline vector.
type OutlinePayload struct {
	FilePath   string   `json:"file_path"`
	Language   string   `json:"language"`
	CodeHash   string   `json:"code_hash"`
	EntryCount int      `json:"entry_count"`
	Entries    []string `json:"entries"`
	Content    string   `json:"content"`
}

// ToMap flattens the payload into the generic map stored in Qdrant.
func (p OutlinePayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"file_path":   p.FilePath,
		"language":    p.Language,
		"code_hash":   p.CodeHash,
		"entry_count": p.EntryCount,
		"entries":     p.Entries,
		"content":     p.Content,
	}
}

// SearchHit is one outline returned by a semantic search.
type SearchHit struct {
	FilePath string   `json:"file_path"`
	Language string   `json:"language"`
	Score    float32  `json:"score"`
	Entries  []string `json:"entries"`
}

// OutlineSummary is the model's description of one file's outline.
type OutlineSummary struct {
	Summary          string   `json:"summary"`
	Responsibilities []string `json:"responsibilities"`
}

// PairCandidate is two outlines whose vectors are close.
type PairCandidate struct {
	A     OutlinePayload
	B     OutlinePayload
	Score float64
}

// SimilarGroup is a set of files with near-identical outlines.
type SimilarGroup struct {
	FilePaths []string `json:"file_paths"`
	AvgScore  float64  `json:"avg_score"`
}
