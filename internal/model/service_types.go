package model

import (
	"encoding/json"
	"time"
)

// CreateAssignmentRequest 单个测评的创建参数；id 由调用方指定
type CreateAssignmentRequest struct {
	ID             uint      `json:"id" binding:"required"`
	TestID         uint      `json:"testId" binding:"required"`
	CandidateID    uint      `json:"candidateId" binding:"required"`
	SupervisorID   *uint     `json:"supervisorId"`
	IsFeedbackForm bool      `json:"isFeedbackForm"`
	ScheduledAt    time.Time `json:"scheduledAt" binding:"required"`
	ExpiresAt      time.Time `json:"expiresAt" binding:"required,gtfield=ScheduledAt"`
}

// BatchAssignmentItem 批量创建中的一项；WithSupervisorForm 时自动创建关联的主管反馈表
type BatchAssignmentItem struct {
	CreateAssignmentRequest
	WithSupervisorForm   bool  `json:"withSupervisorForm"`
	FeedbackSupervisorID *uint `json:"feedbackSupervisorId" binding:"required_if=WithSupervisorForm true"`
	FeedbackTestID       *uint `json:"feedbackTestId"`
}

type BatchAssignmentRequest struct {
	Items []BatchAssignmentItem `json:"items"`
}

type BatchSuccess struct {
	Index      int   `json:"index"`
	ID         uint  `json:"id"`
	FeedbackID *uint `json:"feedbackId,omitempty"`
}

type BatchFailure struct {
	Index int    `json:"index"`
	ID    uint   `json:"id"`
	Error string `json:"error"`
}

type BatchResult struct {
	Succeeded []BatchSuccess `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// AssignmentView 带显示名的测评
type AssignmentView struct {
	Assignment
	TestName          string `json:"testName"`
	CandidateName     string `json:"candidateName"`
	LinkedFeedbackIDs []uint `json:"linkedFeedbackIds,omitempty"`
}

type SubmitAnswerRequest struct {
	QuestionID uint        `json:"questionId" binding:"required"`
	Response   interface{} `json:"response"`
}

type ActivityRequest struct {
	Type           ActivityType    `json:"type" binding:"required"`
	QuestionID     *uint           `json:"questionId"`
	Duration       *float64        `json:"duration"`
	NavigationType string          `json:"navigationType"`
	Page           *int            `json:"page"`
	Payload        json.RawMessage `json:"payload" swaggertype:"object"`
	Timestamp      *time.Time      `json:"timestamp"`
}

type ProgressRequest struct {
	CurrentPage int `json:"currentPage" binding:"min=0"`
	TotalPages  int `json:"totalPages" binding:"min=0"`
}

type CompleteRequest struct {
	Score float64 `json:"score" binding:"min=0,max=100"`
}

// OptionView 非管理员看不到分值与正确性
type OptionView struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Score     *float64 `json:"score,omitempty"`
	IsCorrect *bool    `json:"isCorrect,omitempty"`
}

type QuestionView struct {
	ID           uint         `json:"id"`
	Text         string       `json:"text"`
	QuestionType QuestionType `json:"questionType"`
	Options      []OptionView `json:"options"`
	IsLikert     bool         `json:"isLikert"`
	LikertPoints int          `json:"likertPoints,omitempty"`
	IsReversed   *bool        `json:"isReversed,omitempty"`
	DomainID     *uint        `json:"domainId,omitempty"`
	SubdomainID  *uint        `json:"subdomainId,omitempty"`
}

// SavedAnswer 已保存的作答，用于续答
type SavedAnswer struct {
	QuestionID uint        `json:"questionId"`
	Kind       AnswerKind  `json:"kind"`
	Value      interface{} `json:"value"`
}

type QuestionSheet struct {
	Assignment Assignment     `json:"assignment"`
	TestName   string         `json:"testName"`
	Questions  []QuestionView `json:"questions"`
	Answers    []SavedAnswer  `json:"answers"`
}

type CompletionResult struct {
	AssignmentID     uint             `json:"assignmentId"`
	Status           AssignmentStatus `json:"status"`
	Score            float64          `json:"score"`
	DomainScores     []DomainScore    `json:"domainScores"`
	SubdomainScores  []SubdomainScore `json:"subdomainScores"`
	EndTime          *time.Time       `json:"endTime,omitempty"`
	AlreadyCompleted bool             `json:"alreadyCompleted,omitempty"`
}

type AnswerScore struct {
	QuestionID    uint    `json:"questionId"`
	QuestionText  string  `json:"questionText"`
	SubdomainID   *uint   `json:"subdomainId,omitempty"`
	Response      string  `json:"response"`
	ScoreObtained float64 `json:"scoreObtained"`
	MaxScore      float64 `json:"maxScore"`
}

type LinkedAssignments struct {
	AssignmentID   uint         `json:"assignmentId"`
	IsFeedbackForm bool         `json:"isFeedbackForm"`
	Linked         []Assignment `json:"linked"`
}

type ReconcileResult struct {
	LinksCreated      int `json:"linksCreated"`
	LinksRemoved      int `json:"linksRemoved"`
	BackReferencesSet int `json:"backReferencesSet"`
}
