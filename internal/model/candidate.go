package model

// Candidate 候选人档案（由招聘模块维护，此处只读）
// swagger:model Candidate
type Candidate struct {
	BaseModel
	UserID       *uint  `gorm:"index" json:"userId,omitempty"`
	Name         string `gorm:"size:150;not null" json:"name"`
	Email        string `gorm:"size:150" json:"email"`
	Organization string `gorm:"size:150" json:"organization"`
}

func (Candidate) TableName() string {
	return "candidates"
}
