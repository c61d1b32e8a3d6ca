package model

// swagger:model TestDefinition
type TestDefinition struct {
	BaseModel
	Name            string `gorm:"size:255;not null" json:"name"`
	Description     string `gorm:"type:text" json:"description"`
	DurationMinutes int    `gorm:"default:0" json:"durationMinutes"`
}

func (TestDefinition) TableName() string {
	return "tests"
}

type TestQuestion struct {
	BaseModel
	TestID     uint `gorm:"index;not null" json:"testId"`
	QuestionID uint `gorm:"index;not null" json:"questionId"`
	Order      int  `gorm:"column:sort_order;default:0" json:"order"`
}

func (TestQuestion) TableName() string {
	return "test_questions"
}
