package repository

import (
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"gorm.io/gorm"
)

type CandidateRepository struct {
	DB *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{DB: db}
}

func (r *CandidateRepository) FindByID(id uint) (*model.Candidate, error) {
	var c model.Candidate
	if err := r.DB.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CandidateRepository) FindByUserID(userID uint) (*model.Candidate, error) {
	var c model.Candidate
	if err := r.DB.Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CandidateRepository) FindByIDs(ids []uint) (map[uint]model.Candidate, error) {
	result := make(map[uint]model.Candidate, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var list []model.Candidate
	if err := r.DB.Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for _, c := range list {
		result[c.ID] = c
	}
	return result, nil
}
