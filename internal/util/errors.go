package util

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidRequest     = errors.New("invalid request")

	ErrAssignmentNotFound  = errors.New("assignment not found")
	ErrTestNotFound        = errors.New("test not found")
	ErrCandidateNotFound   = errors.New("candidate not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrDuplicateAssignment = errors.New("assignment id already exists")
	ErrEmptyBatch          = errors.New("batch is empty")
	ErrNoAnswers           = errors.New("assignment has no answers")
	ErrAssignmentCompleted = errors.New("assignment already completed")
	ErrAssignmentExpired   = errors.New("assignment has expired")
	ErrOutsideWindow       = errors.New("assignment is outside its scheduled window")
	ErrNotPending          = errors.New("only pending assignments can be deleted")
	ErrInvalidActivity     = errors.New("unknown activity type")
	ErrInvalidAnswer       = errors.New("invalid answer")
	ErrNotCompleted        = errors.New("assignment is not completed")
	ErrAnalysisInProgress  = errors.New("analysis already in progress")
	ErrAnalysisNotFound    = errors.New("analysis not found")
)

// 分析服务失败类型
const (
	AnalysisTimeout    = "timeout"
	AnalysisRemote     = "remote"
	AnalysisConnection = "connection"
)

// AnalysisError 外部分析服务调用失败；Kind 为 remote 时携带对端状态码与响应体
type AnalysisError struct {
	Kind       string
	StatusCode int
	Body       string
	Err        error
}

func (e *AnalysisError) Error() string {
	switch e.Kind {
	case AnalysisRemote:
		return fmt.Sprintf("analysis service returned %d: %s", e.StatusCode, e.Body)
	case AnalysisTimeout:
		return "analysis service timed out"
	default:
		if e.Err != nil {
			return "analysis service unreachable: " + e.Err.Error()
		}
		return "analysis service unreachable"
	}
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
