package repository

import (
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

func (r *TestRepository) FindByID(id uint) (*model.TestDefinition, error) {
	var t model.TestDefinition
	if err := r.DB.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// NamesByIDs 找不到的 id 不出现在结果中
func (r *TestRepository) NamesByIDs(ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var tests []model.TestDefinition
	if err := r.DB.Select("id", "name").Where("id IN ?", ids).Find(&tests).Error; err != nil {
		return nil, err
	}
	for _, t := range tests {
		names[t.ID] = t.Name
	}
	return names, nil
}
