package domain

import "fmt"

// Sufficiency grades how well the material covers the question.
type Sufficiency string

const (
	Sufficient   Sufficiency = "sufficient"
	Partial      Sufficiency = "partial"
	Insufficient Sufficiency = "insufficient"
)

// FallbackText is returned whenever the answer is not sufficient, refusals included.
const FallbackText = "I couldn't find enough information in the curriculum materials to answer this question."

// Citation links an answer to the page it was grounded in.
type Citation struct {
	DocumentID     string  `json:"document_id"`
	Page           int     `json:"page"`
	FragmentID     string  `json:"fragment_id"`
	StableLink     string  `json:"stable_link"`
	Title          string  `json:"title,omitempty"`
	Snippet        string  `json:"snippet,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Answer is the result of one query pass.
type Answer struct {
	MessageID        string      `json:"message_id,omitempty"`
	Text             string      `json:"text"`
	Confidence       float64     `json:"confidence"`
	Analogy          string      `json:"analogy,omitempty"`
	RealWorldContext string      `json:"realworld_context,omitempty"`
	Citations        []Citation  `json:"citations"`
	Sufficient       bool        `json:"sufficient"`
	Sufficiency      Sufficiency `json:"sufficiency"`
}

// InsufficientAnswer is the fixed answer for questions the material cannot support.
func InsufficientAnswer() Answer {
	return Answer{
		Text:        FallbackText,
		Citations:   []Citation{},
		Sufficient:  false,
		Sufficiency: Insufficient,
	}
}

// RefusalAnswer is the fixed answer for rejected input. It reads the same as
// InsufficientAnswer; callers tell them apart through their own result flags.
func RefusalAnswer() Answer {
	return InsufficientAnswer()
}

// StableLink is the document viewer URL for a cited page.
func StableLink(documentID string, page int) string {
	return fmt.Sprintf("/api/v1/docs/%s/view?page=%d", documentID, page)
}
