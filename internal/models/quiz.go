package models

// QuizModel is a generated quiz. Items are filled by the quiz job.
type QuizModel struct {
	Base
	JobID            string          `json:"job_id"             gorm:"type:char(36);index"`
	ActorID          string          `json:"actor_id"           gorm:"index"`
	TopicIDs         StringArray     `json:"topic_ids"          gorm:"type:text"`
	Difficulty       string          `json:"difficulty"         gorm:"type:varchar(16)"`
	NumQuestions     int             `json:"num_questions"`
	IncludeAnswerKey bool            `json:"include_answer_key"`
	Status           string          `json:"status"             gorm:"type:varchar(16);default:'pending'"`
	Error            string          `json:"error,omitempty"    gorm:"type:text"`
	Items            []QuizItemModel `json:"items"              gorm:"foreignKey:QuizID"`
}

func (QuizModel) TableName() string { return "quizzes" }

// QuizItemModel is one question of a quiz.
type QuizItemModel struct {
	Base
	QuizID      string         `json:"quiz_id"               gorm:"type:char(36);index;not null"`
	OrderIndex  int            `json:"order"`
	Question    string         `json:"question"              gorm:"type:text;not null"`
	Options     StringArray    `json:"options"               gorm:"type:text"`
	Answer      string         `json:"answer,omitempty"      gorm:"type:text"`
	Explanation string         `json:"explanation,omitempty" gorm:"type:text"`
	Citations   []QuizCitation `json:"citations"             gorm:"type:text;serializer:json"`
}

func (QuizItemModel) TableName() string { return "quiz_items" }

// QuizCitation points an answer key entry at its source page.
type QuizCitation struct {
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	StableLink string `json:"stable_link"`
}
