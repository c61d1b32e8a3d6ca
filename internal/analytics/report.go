package analytics

import (
	"sort"
	"time"

	"github.com/musama5293/NPI-Portal-sub001/internal/model"
)

// 单题作答时长的来源
const (
	SourceExplicit     = "explicit"
	SourceOptionSelect = "option_select"
	SourceSubmit       = "submit"
)

// Visit 一次显式记录的停留
type Visit struct {
	Seconds        float64 `json:"seconds"`
	NavigationType string  `json:"navigationType,omitempty"`
}

type QuestionTiming struct {
	QuestionID uint    `json:"questionId"`
	Seconds    float64 `json:"seconds"`
	Source     string  `json:"source"`
	Visits     []Visit `json:"visits,omitempty"`
}

// Counters 事件到达时增量维护的计数器，来自 assignment 记录
type Counters struct {
	FullscreenViolations int
	OffscreenTime        float64
}

type Report struct {
	TotalSessionSeconds  float64          `json:"totalSessionSeconds"`
	FullscreenViolations int              `json:"fullscreenViolations"`
	OffscreenTime        float64          `json:"offscreenTime"`
	EventCount           int              `json:"eventCount"`
	PageChanges          int              `json:"pageChanges"`
	QuestionTimings      []QuestionTiming `json:"questionTimings"`
}

// BuildReport 从事件流重建每题停留时间，按题目依次尝试：
//  1. question_view_end 上携带的时长，重复访问累加；
//  2. 该题 question_view_start 到下一次同题 option_select 的间隔；
//  3. 提交时仍处于激活状态的题目，取 question_view_start 到 test_submit 的间隔。
//
// 结果按题目首次出现的顺序排列。
func BuildReport(events []model.ActivityEvent, start, end *time.Time, counters Counters) *Report {
	ordered := make([]model.ActivityEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	report := &Report{
		FullscreenViolations: counters.FullscreenViolations,
		OffscreenTime:        counters.OffscreenTime,
		EventCount:           len(ordered),
		QuestionTimings:      []QuestionTiming{},
	}
	if start != nil && end != nil && end.After(*start) {
		report.TotalSessionSeconds = end.Sub(*start).Seconds()
	}

	var order []uint
	seen := make(map[uint]bool)
	explicit := make(map[uint][]Visit)
	for _, e := range ordered {
		if e.Type == model.ActivityPageChange {
			report.PageChanges++
		}
		if e.QuestionID == nil {
			continue
		}
		qid := *e.QuestionID
		if !seen[qid] {
			seen[qid] = true
			order = append(order, qid)
		}
		if e.Type == model.ActivityQuestionViewEnd && e.Duration != nil && *e.Duration > 0 {
			explicit[qid] = append(explicit[qid], Visit{Seconds: *e.Duration, NavigationType: e.NavigationType})
		}
	}

	timings := make(map[uint]*QuestionTiming)
	for qid, visits := range explicit {
		t := &QuestionTiming{QuestionID: qid, Source: SourceExplicit, Visits: visits}
		for _, v := range visits {
			t.Seconds += v.Seconds
		}
		timings[qid] = t
	}

	// view_start -> option_select
	viewStart := make(map[uint]time.Time)
	for _, e := range ordered {
		if e.QuestionID == nil {
			continue
		}
		qid := *e.QuestionID
		if _, ok := explicit[qid]; ok {
			continue
		}
		switch e.Type {
		case model.ActivityQuestionViewStart:
			viewStart[qid] = e.OccurredAt
		case model.ActivityOptionSelect:
			began, ok := viewStart[qid]
			if !ok || e.OccurredAt.Before(began) {
				continue
			}
			delete(viewStart, qid)
			t, ok := timings[qid]
			if !ok {
				t = &QuestionTiming{QuestionID: qid, Source: SourceOptionSelect}
				timings[qid] = t
			}
			t.Seconds += e.OccurredAt.Sub(began).Seconds()
		}
	}

	// 提交时的激活题目
	var active *uint
	var activeSince time.Time
	for _, e := range ordered {
		switch e.Type {
		case model.ActivityQuestionViewStart:
			if e.QuestionID != nil {
				qid := *e.QuestionID
				active, activeSince = &qid, e.OccurredAt
			}
		case model.ActivityQuestionViewEnd:
			if active != nil && e.QuestionID != nil && *e.QuestionID == *active {
				active = nil
			}
		case model.ActivityTestSubmit:
			if active == nil {
				continue
			}
			if _, ok := timings[*active]; !ok && !e.OccurredAt.Before(activeSince) {
				timings[*active] = &QuestionTiming{
					QuestionID: *active,
					Seconds:    e.OccurredAt.Sub(activeSince).Seconds(),
					Source:     SourceSubmit,
				}
			}
			active = nil
		}
	}

	for _, qid := range order {
		if t, ok := timings[qid]; ok {
			report.QuestionTimings = append(report.QuestionTimings, *t)
		}
	}
	return report
}
