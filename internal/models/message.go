package models

// MessageModel is a persisted answer to a question.
type MessageModel struct {
	Base
	ActorID          string                 `json:"actor_id"          gorm:"index"`
	SessionID        string                 `json:"session_id"        gorm:"index"`
	Mode             string                 `json:"mode"              gorm:"type:varchar(16)"`
	Question         string                 `json:"question"          gorm:"type:text;not null"`
	Answer           string                 `json:"answer"            gorm:"type:longtext"`
	Sufficiency      string                 `json:"sufficiency"       gorm:"type:varchar(16)"`
	Confidence       float64                `json:"confidence"`
	Grade            string                 `json:"grade"             gorm:"type:varchar(8)"`
	Subject          string                 `json:"subject"           gorm:"type:varchar(64)"`
	Analogy          string                 `json:"analogy,omitempty" gorm:"type:text"`
	RealWorldContext string                 `json:"realworld_context,omitempty" gorm:"type:text"`
	Citations        []MessageCitationModel `json:"citations"         gorm:"foreignKey:MessageID"`
}

func (MessageModel) TableName() string { return "messages" }

// MaxSnippetLength bounds citation snippets.
const MaxSnippetLength = 200

// MessageCitationModel is one ordered citation attached to a message.
type MessageCitationModel struct {
	Base
	MessageID      string  `json:"message_id"      gorm:"type:char(36);index:idx_citations_message,priority:1;not null"`
	OrderIndex     int     `json:"order"           gorm:"index:idx_citations_message,priority:2"`
	DocumentID     string  `json:"document_id"     gorm:"type:char(36);index"`
	Page           int     `json:"page"`
	FragmentID     string  `json:"fragment_id"`
	Title          string  `json:"title"`
	Snippet        string  `json:"snippet"         gorm:"type:text"`
	StableLink     string  `json:"stable_link"`
	RelevanceScore float64 `json:"relevance_score"`
}

func (MessageCitationModel) TableName() string { return "message_citations" }
