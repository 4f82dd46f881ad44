package models

// Document lifecycle states.
const (
	DocumentPending    = "pending"
	DocumentProcessing = "processing"
	DocumentReady      = "ready"
	DocumentFailed     = "failed"
)

// DocumentModel is an uploaded curriculum source file.
type DocumentModel struct {
	Base
	Fingerprint string `json:"fingerprint"  gorm:"type:varchar(64);index;not null"`
	Title       string `json:"title"        gorm:"not null"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Grade       string `json:"grade"        gorm:"type:varchar(8);index:idx_documents_scope"`
	Subject     string `json:"subject"      gorm:"type:varchar(64);index:idx_documents_scope"`
	BlobKey     string `json:"-"            gorm:"not null"`
	Pages       int    `json:"pages"`
	Chunks      int    `json:"chunks"`
	Status      string `json:"status"       gorm:"type:varchar(16);index;default:'pending'"`
	UploadedBy  string `json:"uploaded_by"`
}

func (DocumentModel) TableName() string { return "documents" }
