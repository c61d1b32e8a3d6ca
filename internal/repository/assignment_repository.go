package repository

import (
	"time"

	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

// AssignmentFilter 列表查询条件，零值表示不过滤
type AssignmentFilter struct {
	CandidateID    uint
	TestID         uint
	Status         model.AssignmentStatus
	IsFeedbackForm *bool
}

func (r *AssignmentRepository) Create(a *model.Assignment) error {
	return r.DB.Create(a).Error
}

// CreateWithFeedback 在同一事务中写入候选人测评、主管反馈表、链接记录和反向引用
func (r *AssignmentRepository) CreateWithFeedback(primary, feedback *model.Assignment) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(primary).Error; err != nil {
			return err
		}
		feedback.IsFeedbackForm = true
		feedback.LinkedCandidateAssignmentID = &primary.ID
		if err := tx.Create(feedback).Error; err != nil {
			return err
		}
		return tx.Create(&model.AssignmentLink{
			CandidateAssignmentID: primary.ID,
			FeedbackAssignmentID:  feedback.ID,
		}).Error
	})
}

func (r *AssignmentRepository) Exists(id uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Assignment{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *AssignmentRepository) FindByID(id uint) (*model.Assignment, error) {
	var a model.Assignment
	if err := r.DB.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) FindByIDs(ids []uint) ([]model.Assignment, error) {
	var list []model.Assignment
	if len(ids) == 0 {
		return list, nil
	}
	err := r.DB.Where("id IN ?", ids).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *AssignmentRepository) List(filter AssignmentFilter, page, limit int) ([]model.Assignment, int64, error) {
	var (
		list  []model.Assignment
		total int64
	)

	query := r.DB.Model(&model.Assignment{})
	if filter.CandidateID != 0 {
		query = query.Where("candidate_id = ?", filter.CandidateID)
	}
	if filter.TestID != 0 {
		query = query.Where("test_id = ?", filter.TestID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.IsFeedbackForm != nil {
		query = query.Where("is_feedback_form = ?", *filter.IsFeedbackForm)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("scheduled_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

// ListFeedbackForms supervisorID 为 nil 时返回全部反馈表
func (r *AssignmentRepository) ListFeedbackForms(supervisorID *uint) ([]model.Assignment, error) {
	var list []model.Assignment
	query := r.DB.Where("is_feedback_form = ?", true)
	if supervisorID != nil {
		query = query.Where("supervisor_id = ?", *supervisorID)
	}
	err := query.Order("scheduled_at DESC, id DESC").Find(&list).Error
	return list, err
}

// MarkStarted 仅 pending 状态生效，返回受影响行数
func (r *AssignmentRepository) MarkStarted(id uint, at time.Time) (int64, error) {
	res := r.DB.Model(&model.Assignment{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":     model.StatusStarted,
			"start_time": at,
		})
	return res.RowsAffected, res.Error
}

// Complete 一次性写入状态、结束时间与分数；已完成的记录不会被再次修改
func (r *AssignmentRepository) Complete(id uint, endTime time.Time, fields map[string]interface{}) (int64, error) {
	updates := map[string]interface{}{
		"status":   model.StatusCompleted,
		"end_time": endTime,
	}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.DB.Model(&model.Assignment{}).
		Where("id = ? AND status <> ?", id, model.StatusCompleted).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// UpdateScores 仅用于已完成测评的重新计分
func (r *AssignmentRepository) UpdateScores(id uint, fields map[string]interface{}) error {
	return r.DB.Model(&model.Assignment{}).
		Where("id = ? AND status = ?", id, model.StatusCompleted).
		Updates(fields).Error
}

func (r *AssignmentRepository) UpdateProgress(id uint, currentPage, totalPages int) error {
	return r.DB.Model(&model.Assignment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"current_page": currentPage,
		"total_pages":  totalPages,
	}).Error
}

// DeletePending 删除 pending 测评及其附属记录，返回是否删除了测评本身
func (r *AssignmentRepository) DeletePending(id uint) (bool, error) {
	deleted := false
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, model.StatusPending).Delete(&model.Assignment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		if err := tx.Where("assignment_id = ?", id).Delete(&model.AssignmentAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("assignment_id = ?", id).Delete(&model.ActivityEvent{}).Error; err != nil {
			return err
		}
		return tx.Where("candidate_assignment_id = ? OR feedback_assignment_id = ?", id, id).
			Delete(&model.AssignmentLink{}).Error
	})
	return deleted, err
}

// ExpireOverdue 把超过截止时间且未完成的测评标记为 expired
func (r *AssignmentRepository) ExpireOverdue(now time.Time) (int64, error) {
	res := r.DB.Model(&model.Assignment{}).
		Where("status IN ? AND expires_at < ?", []model.AssignmentStatus{model.StatusPending, model.StatusStarted}, now).
		Update("status", model.StatusExpired)
	return res.RowsAffected, res.Error
}

// 作答

func (r *AssignmentRepository) UpsertAnswer(a *model.AssignmentAnswer) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "assignment_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind", "text_value", "option_id", "position",
			"score_obtained", "max_score", "answered_at", "updated_at",
		}),
	}).Create(a).Error
}

func (r *AssignmentRepository) Answers(assignmentID uint) ([]model.AssignmentAnswer, error) {
	var answers []model.AssignmentAnswer
	err := r.DB.Where("assignment_id = ?", assignmentID).Order("id ASC").Find(&answers).Error
	return answers, err
}

func (r *AssignmentRepository) CountAnswers(assignmentID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.AssignmentAnswer{}).Where("assignment_id = ?", assignmentID).Count(&count).Error
	return count, err
}

// CountAnswersWithSubdomain 统计关联到带子领域题目的作答数
func (r *AssignmentRepository) CountAnswersWithSubdomain(assignmentID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.AssignmentAnswer{}).
		Joins("JOIN questions ON questions.id = assignment_answers.question_id").
		Where("assignment_answers.assignment_id = ? AND questions.subdomain_id IS NOT NULL", assignmentID).
		Count(&count).Error
	return count, err
}

// 行为事件

// AppendEvent 分配下一个序号并按事件类型更新计数器，整体在一个事务内完成
func (r *AssignmentRepository) AppendEvent(e *model.ActivityEvent) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"event_seq": gorm.Expr("event_seq + 1"),
		}
		switch e.Type {
		case model.ActivityFullscreenExit:
			updates["fullscreen_violations"] = gorm.Expr("fullscreen_violations + 1")
		case model.ActivityFullscreenEnter:
			if e.Duration != nil && *e.Duration > 0 {
				updates["offscreen_time"] = gorm.Expr("offscreen_time + ?", *e.Duration)
			}
		}

		res := tx.Model(&model.Assignment{}).Where("id = ?", e.AssignmentID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var seq uint64
		if err := tx.Model(&model.Assignment{}).Where("id = ?", e.AssignmentID).
			Select("event_seq").Scan(&seq).Error; err != nil {
			return err
		}
		e.Seq = seq
		return tx.Create(e).Error
	})
}

func (r *AssignmentRepository) Events(assignmentID uint) ([]model.ActivityEvent, error) {
	var events []model.ActivityEvent
	err := r.DB.Where("assignment_id = ?", assignmentID).Order("seq ASC").Find(&events).Error
	return events, err
}

// 关联

func (r *AssignmentRepository) LinkedFeedbackIDs(candidateAssignmentID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.AssignmentLink{}).
		Where("candidate_assignment_id = ?", candidateAssignmentID).
		Order("feedback_assignment_id ASC").
		Pluck("feedback_assignment_id", &ids).Error
	return ids, err
}

func (r *AssignmentRepository) AllLinks() ([]model.AssignmentLink, error) {
	var links []model.AssignmentLink
	err := r.DB.Order("id ASC").Find(&links).Error
	return links, err
}

// FeedbackFormsWithBackReference 带反向引用的反馈表
func (r *AssignmentRepository) FeedbackFormsWithBackReference() ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.DB.Where("is_feedback_form = ? AND linked_candidate_assignment_id IS NOT NULL", true).
		Order("id ASC").Find(&list).Error
	return list, err
}

// EnsureLink 已存在时忽略，返回是否新写入
func (r *AssignmentRepository) EnsureLink(candidateAssignmentID, feedbackAssignmentID uint) (bool, error) {
	res := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.AssignmentLink{
		CandidateAssignmentID: candidateAssignmentID,
		FeedbackAssignmentID:  feedbackAssignmentID,
	})
	return res.RowsAffected > 0, res.Error
}

func (r *AssignmentRepository) SetBackReference(feedbackAssignmentID, candidateAssignmentID uint) error {
	return r.DB.Model(&model.Assignment{}).Where("id = ?", feedbackAssignmentID).Updates(map[string]interface{}{
		"is_feedback_form":               true,
		"linked_candidate_assignment_id": candidateAssignmentID,
	}).Error
}

func (r *AssignmentRepository) DeleteLink(id uint) error {
	return r.DB.Delete(&model.AssignmentLink{}, id).Error
}
