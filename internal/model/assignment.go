package model

import (
	"time"

	"gorm.io/datatypes"
)

type AssignmentStatus string

const (
	StatusPending   AssignmentStatus = "pending"
	StatusStarted   AssignmentStatus = "started"
	StatusCompleted AssignmentStatus = "completed"
	StatusExpired   AssignmentStatus = "expired"
)

type DomainScore struct {
	DomainID   uint    `json:"domainId"`
	Name       string  `json:"name"`
	Obtained   float64 `json:"obtained"`
	Max        float64 `json:"max"`
	Percentage int     `json:"percentage"`
}

type SubdomainScore struct {
	SubdomainID uint    `json:"subdomainId"`
	DomainID    uint    `json:"domainId"`
	Name        string  `json:"name"`
	Obtained    float64 `json:"obtained"`
	Max         float64 `json:"max"`
	Percentage  int     `json:"percentage"`
}

// Assignment 一次测评（或主管反馈表）的实例。ID 由调用方指定。
// 答案与行为事件存放在独立的表中，按 assignment_id 关联。
// swagger:model Assignment
type Assignment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	TestID       uint  `gorm:"index;not null" json:"testId"`
	CandidateID  uint  `gorm:"index;not null" json:"candidateId"`
	SupervisorID *uint `gorm:"index" json:"supervisorId,omitempty"`

	IsFeedbackForm              bool  `gorm:"default:false" json:"isFeedbackForm"`
	LinkedCandidateAssignmentID *uint `gorm:"index" json:"linkedCandidateAssignmentId,omitempty"`

	ScheduledAt time.Time        `gorm:"not null" json:"scheduledAt"`
	ExpiresAt   time.Time        `gorm:"index;not null" json:"expiresAt"`
	Status      AssignmentStatus `gorm:"size:20;index;default:'pending'" json:"status"`
	StartTime   *time.Time       `json:"startTime,omitempty"`
	EndTime     *time.Time       `json:"endTime,omitempty"`

	Score           float64                             `gorm:"default:0" json:"score"`
	DomainScores    datatypes.JSONSlice[DomainScore]    `json:"domainScores"`
	SubdomainScores datatypes.JSONSlice[SubdomainScore] `json:"subdomainScores"`

	FullscreenViolations int     `gorm:"default:0" json:"fullscreenViolations"`
	OffscreenTime        float64 `gorm:"default:0" json:"offscreenTime"` // 秒
	EventSeq             uint64  `gorm:"default:0" json:"-"`

	CurrentPage int `gorm:"default:0" json:"currentPage"`
	TotalPages  int `gorm:"default:0" json:"totalPages"`
}

func (Assignment) TableName() string {
	return "assignments"
}

// InWindow 判断 now 是否落在 [ScheduledAt, ExpiresAt]
func (a *Assignment) InWindow(now time.Time) bool {
	return !now.Before(a.ScheduledAt) && !now.After(a.ExpiresAt)
}

func (a *Assignment) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// AssignmentLink 候选人测评 -> 主管反馈表
type AssignmentLink struct {
	ID                    uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CandidateAssignmentID uint      `gorm:"uniqueIndex:idx_assignment_link;not null" json:"candidateAssignmentId"`
	FeedbackAssignmentID  uint      `gorm:"uniqueIndex:idx_assignment_link;not null" json:"feedbackAssignmentId"`
	CreatedAt             time.Time `json:"createdAt"`
}

func (AssignmentLink) TableName() string {
	return "assignment_links"
}
