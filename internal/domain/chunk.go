package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// Chunk is a unit of text cut from one page of a document and stored in the index.
type Chunk struct {
	ID           string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	Title        string  `json:"title"`
	Grade        string  `json:"grade"`
	Subject      string  `json:"subject"`
	Page         int     `json:"page"`
	Index        int     `json:"chunk_index"`
	Text         string  `json:"text"`
	QualityScore float64 `json:"quality_score"`
}

var chunkNamespace = uuid.MustParse("6f1c52a4-3e0b-4c1e-9a57-2b8e4f0d9c11")

// ChunkID derives a stable id from the file fingerprint and chunk position,
// so re-running an ingestion batch overwrites instead of duplicating.
func ChunkID(fingerprint string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fingerprint+":"+strconv.Itoa(index))).String()
}
