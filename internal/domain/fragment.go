package domain

// RetrievedFragment is one vector index hit. Immutable once produced.
type RetrievedFragment struct {
	FragmentID    string  `json:"fragment_id"`
	DocumentID    string  `json:"document_id"`
	Title         string  `json:"title,omitempty"`
	Page          int     `json:"page"`
	Text          string  `json:"text"`
	Grade         string  `json:"grade"`
	Subject       string  `json:"subject"`
	RawSimilarity float64 `json:"raw_similarity_score"`
}

// RankedFragment is a RetrievedFragment with its relevance score.
type RankedFragment struct {
	RetrievedFragment
	RerankScore float64 `json:"rerank_score"`
}

// InScope reports whether the fragment belongs to scope.
func (f RetrievedFragment) InScope(s Scope) bool {
	return f.Grade == s.Grade && f.Subject == s.Subject
}
