package model

import "time"

type AnswerKind string

const (
	AnswerText   AnswerKind = "text"
	AnswerChoice AnswerKind = "choice"
	AnswerLikert AnswerKind = "likert"
)

// AssignmentAnswer 每题至多一条，重复提交覆盖
type AssignmentAnswer struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	AssignmentID  uint       `gorm:"uniqueIndex:idx_answer_question;not null" json:"assignmentId"`
	QuestionID    uint       `gorm:"uniqueIndex:idx_answer_question;not null" json:"questionId"`
	Kind          AnswerKind `gorm:"size:10;not null" json:"kind"`
	TextValue     string     `gorm:"type:text" json:"textValue,omitempty"`
	OptionID      string     `gorm:"size:64" json:"optionId,omitempty"`
	Position      int        `gorm:"default:0" json:"position,omitempty"`
	ScoreObtained float64    `json:"scoreObtained"`
	MaxScore      float64    `json:"maxScore"`
	AnsweredAt    time.Time  `json:"answeredAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (AssignmentAnswer) TableName() string {
	return "assignment_answers"
}
