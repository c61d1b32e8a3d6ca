package model

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisResult 外部心理测评分析结果，每次成功调用整体覆盖。
// RequestPayload 为空表示旧记录，读取时需回退计算统计数。
type AnalysisResult struct {
	AssignmentID   uint           `gorm:"primaryKey;autoIncrement:false" json:"assignmentId"`
	RawResponse    datatypes.JSON `gorm:"not null" json:"rawResponse"`
	GeneratedAt    time.Time      `gorm:"not null" json:"generatedAt"`
	RequestPayload datatypes.JSON `json:"requestPayload,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (AnalysisResult) TableName() string {
	return "assignment_analyses"
}
