package model

import "gorm.io/datatypes"

type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionLikert         QuestionType = "likert"
	QuestionText           QuestionType = "text"
)

// QuestionOption 题目选项；Likert 题的分值由 LikertPoints/IsReversed 在读取时计算
type QuestionOption struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	IsCorrect bool    `json:"isCorrect,omitempty"`
}

// swagger:model Question
type Question struct {
	BaseModel
	Text         string                              `gorm:"type:text;not null" json:"text"`
	QuestionType QuestionType                        `gorm:"size:30;not null" json:"questionType"`
	Options      datatypes.JSONSlice[QuestionOption] `json:"options"`
	IsLikert     bool                                `gorm:"default:false" json:"isLikert"`
	IsReversed   bool                                `gorm:"default:false" json:"isReversed"`
	LikertPoints int                                 `gorm:"default:0" json:"likertPoints"` // 3/5/7
	DomainID     *uint                               `gorm:"index" json:"domainId,omitempty"`
	SubdomainID  *uint                               `gorm:"index" json:"subdomainId,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) Likert() bool {
	return q.IsLikert || q.QuestionType == QuestionLikert
}

// swagger:model Domain
type Domain struct {
	BaseModel
	Name string `gorm:"size:150;not null" json:"name"`
}

func (Domain) TableName() string {
	return "domains"
}

// swagger:model Subdomain
type Subdomain struct {
	BaseModel
	DomainID uint   `gorm:"index;not null" json:"domainId"`
	Name     string `gorm:"size:150;not null" json:"name"`
}

func (Subdomain) TableName() string {
	return "subdomains"
}
