package service

import (
	"errors"

	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/musama5293/NPI-Portal-sub001/internal/repository"
	"github.com/musama5293/NPI-Portal-sub001/internal/util"
	"github.com/musama5293/NPI-Portal-sub001/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LinkedService 候选人测评与主管反馈表之间的双向关联
type LinkedService struct {
	AssignmentRepo *repository.AssignmentRepository
}

func NewLinkedService(assignmentRepo *repository.AssignmentRepository) *LinkedService {
	return &LinkedService{AssignmentRepo: assignmentRepo}
}

// GetLinked 反馈表返回其候选人测评（无法解析时为空）；候选人测评返回全部反馈表，跳过无法解析的 id
func (s *LinkedService) GetLinked(id uint, requester *util.Claims) (*model.LinkedAssignments, error) {
	a, err := s.AssignmentRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAssignmentNotFound
		}
		return nil, err
	}
	if err := authorize(a, requester); err != nil {
		return nil, err
	}

	result := &model.LinkedAssignments{
		AssignmentID:   a.ID,
		IsFeedbackForm: a.IsFeedbackForm,
		Linked:         []model.Assignment{},
	}

	if a.IsFeedbackForm {
		if a.LinkedCandidateAssignmentID == nil {
			return result, nil
		}
		linked, err := s.AssignmentRepo.FindByID(*a.LinkedCandidateAssignmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return result, nil
			}
			return nil, err
		}
		result.Linked = append(result.Linked, *linked)
		return result, nil
	}

	ids, err := s.AssignmentRepo.LinkedFeedbackIDs(a.ID)
	if err != nil {
		return nil, err
	}
	linked, err := s.AssignmentRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	result.Linked = append(result.Linked, linked...)
	return result, nil
}

// ReconcileLinks 修复关联不对称的数据：
// 反馈表的反向引用为准，补写缺失的链接记录、删除与反向引用冲突的链接、
// 为只有链接记录的反馈表补写反向引用。
func (s *LinkedService) ReconcileLinks() (*model.ReconcileResult, error) {
	result := &model.ReconcileResult{}

	forms, err := s.AssignmentRepo.FeedbackFormsWithBackReference()
	if err != nil {
		return nil, err
	}
	backRef := make(map[uint]uint, len(forms))
	for _, f := range forms {
		candidateID := *f.LinkedCandidateAssignmentID
		exists, err := s.AssignmentRepo.Exists(candidateID)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		backRef[f.ID] = candidateID
		created, err := s.AssignmentRepo.EnsureLink(candidateID, f.ID)
		if err != nil {
			return nil, err
		}
		if created {
			result.LinksCreated++
		}
	}

	links, err := s.AssignmentRepo.AllLinks()
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		if owner, ok := backRef[link.FeedbackAssignmentID]; ok {
			if owner != link.CandidateAssignmentID {
				if err := s.AssignmentRepo.DeleteLink(link.ID); err != nil {
					return nil, err
				}
				result.LinksRemoved++
			}
			continue
		}

		exists, err := s.AssignmentRepo.Exists(link.FeedbackAssignmentID)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		if err := s.AssignmentRepo.SetBackReference(link.FeedbackAssignmentID, link.CandidateAssignmentID); err != nil {
			return nil, err
		}
		backRef[link.FeedbackAssignmentID] = link.CandidateAssignmentID
		result.BackReferencesSet++
	}

	logger.Log.Info("Assignment links reconciled",
		zap.Int("links_created", result.LinksCreated),
		zap.Int("links_removed", result.LinksRemoved),
		zap.Int("back_references_set", result.BackReferencesSet))
	return result, nil
}
