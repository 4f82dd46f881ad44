package models

// TeacherProfileModel stores per-teacher answer preferences.
type TeacherProfileModel struct {
	Base
	ActorID          string `json:"actor_id"          gorm:"type:varchar(128);uniqueIndex;not null"`
	AnalogyEnabled   bool   `json:"analogy_enabled"`
	RealWorldEnabled bool   `json:"realworld_enabled"`
	DefaultGrade     string `json:"default_grade"     gorm:"type:varchar(8)"`
	DefaultSubject   string `json:"default_subject"   gorm:"type:varchar(64)"`
}

func (TeacherProfileModel) TableName() string { return "teacher_profiles" }
