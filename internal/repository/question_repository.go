package repository

import (
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"gorm.io/gorm"
)

// QuestionRepository 题目、领域与子领域的只读访问
type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// FindByTest 按测试内顺序返回题目
func (r *QuestionRepository) FindByTest(testID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.Model(&model.Question{}).
		Joins("JOIN test_questions ON test_questions.question_id = questions.id AND test_questions.deleted_at IS NULL").
		Where("test_questions.test_id = ?", testID).
		Order("test_questions.sort_order ASC, questions.id ASC").
		Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) FindByID(id uint) (*model.Question, error) {
	var q model.Question
	if err := r.DB.First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepository) FindByIDs(ids []uint) (map[uint]*model.Question, error) {
	result := make(map[uint]*model.Question, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var questions []model.Question
	if err := r.DB.Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, err
	}
	for i := range questions {
		result[questions[i].ID] = &questions[i]
	}
	return result, nil
}

func (r *QuestionRepository) DomainNames(ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var domains []model.Domain
	if err := r.DB.Where("id IN ?", ids).Find(&domains).Error; err != nil {
		return nil, err
	}
	for _, d := range domains {
		names[d.ID] = d.Name
	}
	return names, nil
}

func (r *QuestionRepository) Subdomains(ids []uint) (map[uint]model.Subdomain, error) {
	result := make(map[uint]model.Subdomain, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var subs []model.Subdomain
	if err := r.DB.Where("id IN ?", ids).Find(&subs).Error; err != nil {
		return nil, err
	}
	for _, s := range subs {
		result[s.ID] = s
	}
	return result, nil
}
