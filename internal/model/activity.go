package model

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityType string

const (
	ActivityPageChange        ActivityType = "page_change"
	ActivityQuestionViewStart ActivityType = "question_view_start"
	ActivityQuestionViewEnd   ActivityType = "question_view_end"
	ActivityOptionSelect      ActivityType = "option_select"
	ActivityFullscreenExit    ActivityType = "fullscreen_exit"
	ActivityFullscreenEnter   ActivityType = "fullscreen_enter"
	ActivityTestSubmit        ActivityType = "test_submit"
)

func (t ActivityType) Valid() bool {
	switch t {
	case ActivityPageChange, ActivityQuestionViewStart, ActivityQuestionViewEnd,
		ActivityOptionSelect, ActivityFullscreenExit, ActivityFullscreenEnter, ActivityTestSubmit:
		return true
	}
	return false
}

// ActivityEvent 只追加，Seq 在同一 assignment 内单调递增
type ActivityEvent struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	AssignmentID   uint           `gorm:"uniqueIndex:idx_activity_seq;not null" json:"assignmentId"`
	Seq            uint64         `gorm:"uniqueIndex:idx_activity_seq;not null" json:"seq"`
	Type           ActivityType   `gorm:"size:40;not null" json:"type"`
	QuestionID     *uint          `gorm:"index" json:"questionId,omitempty"`
	Duration       *float64       `json:"duration,omitempty"` // 秒
	NavigationType string         `gorm:"size:30" json:"navigationType,omitempty"`
	Page           *int           `json:"page,omitempty"`
	Payload        datatypes.JSON `json:"payload,omitempty"`
	OccurredAt     time.Time      `gorm:"not null" json:"occurredAt"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func (ActivityEvent) TableName() string {
	return "assignment_activity_events"
}
