package repository

import (
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnalysisRepository struct {
	DB *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{DB: db}
}

// Save 每次成功分析整体覆盖上一条结果
func (r *AnalysisRepository) Save(result *model.AnalysisResult) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "assignment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"raw_response", "generated_at", "request_payload", "updated_at"}),
	}).Create(result).Error
}

func (r *AnalysisRepository) FindByAssignmentID(assignmentID uint) (*model.AnalysisResult, error) {
	var result model.AnalysisResult
	if err := r.DB.Where("assignment_id = ?", assignmentID).First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}
