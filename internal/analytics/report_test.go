package analytics

import (
	"testing"
	"time"

	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type stream struct {
	events []model.ActivityEvent
}

func (s *stream) add(typ model.ActivityType, qid uint, offset time.Duration, opts ...func(*model.ActivityEvent)) *stream {
	e := model.ActivityEvent{
		Seq:        uint64(len(s.events) + 1),
		Type:       typ,
		OccurredAt: base.Add(offset),
	}
	if qid != 0 {
		id := qid
		e.QuestionID = &id
	}
	for _, opt := range opts {
		opt(&e)
	}
	s.events = append(s.events, e)
	return s
}

func withDuration(sec float64, nav string) func(*model.ActivityEvent) {
	return func(e *model.ActivityEvent) {
		e.Duration = &sec
		e.NavigationType = nav
	}
}

func timingFor(t *testing.T, r *Report, qid uint) QuestionTiming {
	t.Helper()
	for _, qt := range r.QuestionTimings {
		if qt.QuestionID == qid {
			return qt
		}
	}
	require.Failf(t, "missing timing", "question %d", qid)
	return QuestionTiming{}
}

func TestBuildReport_ExplicitDurationsSumAcrossRevisits(t *testing.T) {
	s := &stream{}
	s.add(model.ActivityQuestionViewStart, 1, 0).
		add(model.ActivityQuestionViewEnd, 1, 12*time.Second, withDuration(12, "next")).
		add(model.ActivityQuestionViewStart, 2, 13*time.Second).
		add(model.ActivityQuestionViewEnd, 2, 20*time.Second, withDuration(7, "previous")).
		add(model.ActivityQuestionViewStart, 1, 21*time.Second).
		add(model.ActivityOptionSelect, 1, 25*time.Second).
		add(model.ActivityQuestionViewEnd, 1, 26*time.Second, withDuration(5, "jump"))

	r := BuildReport(s.events, nil, nil, Counters{})

	q1 := timingFor(t, r, 1)
	assert.Equal(t, SourceExplicit, q1.Source)
	assert.Equal(t, 17.0, q1.Seconds)
	assert.Equal(t, []Visit{{Seconds: 12, NavigationType: "next"}, {Seconds: 5, NavigationType: "jump"}}, q1.Visits)

	q2 := timingFor(t, r, 2)
	assert.Equal(t, 7.0, q2.Seconds)
	assert.Equal(t, 7, r.EventCount)
}

func TestBuildReport_FallsBackToOptionSelectGap(t *testing.T) {
	s := &stream{}
	s.add(model.ActivityQuestionViewStart, 3, 0).
		add(model.ActivityOptionSelect, 4, 2*time.Second).
		add(model.ActivityOptionSelect, 3, 9*time.Second).
		add(model.ActivityOptionSelect, 3, 15*time.Second)

	r := BuildReport(s.events, nil, nil, Counters{})

	require.Len(t, r.QuestionTimings, 1)
	q3 := r.QuestionTimings[0]
	assert.Equal(t, SourceOptionSelect, q3.Source)
	assert.Equal(t, 9.0, q3.Seconds)
}

func TestBuildReport_ActiveQuestionAtSubmit(t *testing.T) {
	s := &stream{}
	s.add(model.ActivityQuestionViewStart, 5, 0).
		add(model.ActivityOptionSelect, 5, 4*time.Second).
		add(model.ActivityQuestionViewStart, 6, 5*time.Second).
		add(model.ActivityTestSubmit, 0, 35*time.Second)

	r := BuildReport(s.events, nil, nil, Counters{})

	require.Len(t, r.QuestionTimings, 2)
	assert.Equal(t, uint(5), r.QuestionTimings[0].QuestionID)
	assert.Equal(t, 4.0, r.QuestionTimings[0].Seconds)

	q6 := r.QuestionTimings[1]
	assert.Equal(t, SourceSubmit, q6.Source)
	assert.Equal(t, 30.0, q6.Seconds)
}

func TestBuildReport_SubmitDoesNotOverrideExistingDuration(t *testing.T) {
	s := &stream{}
	s.add(model.ActivityQuestionViewStart, 7, 0).
		add(model.ActivityOptionSelect, 7, 3*time.Second).
		add(model.ActivityTestSubmit, 0, 60*time.Second)

	r := BuildReport(s.events, nil, nil, Counters{})

	q7 := timingFor(t, r, 7)
	assert.Equal(t, SourceOptionSelect, q7.Source)
	assert.Equal(t, 3.0, q7.Seconds)
}

func TestBuildReport_SessionAndCounters(t *testing.T) {
	start := base
	end := base.Add(25 * time.Minute)
	s := &stream{}
	s.add(model.ActivityPageChange, 0, time.Minute).add(model.ActivityPageChange, 0, 2*time.Minute)

	r := BuildReport(s.events, &start, &end, Counters{FullscreenViolations: 2, OffscreenTime: 14.5})

	assert.Equal(t, 1500.0, r.TotalSessionSeconds)
	assert.Equal(t, 2, r.FullscreenViolations)
	assert.Equal(t, 14.5, r.OffscreenTime)
	assert.Equal(t, 2, r.PageChanges)
	assert.Empty(t, r.QuestionTimings)
}

func TestBuildReport_OrdersBySeq(t *testing.T) {
	s := &stream{}
	s.add(model.ActivityQuestionViewStart, 8, 0).add(model.ActivityOptionSelect, 8, 6*time.Second)
	reversed := []model.ActivityEvent{s.events[1], s.events[0]}

	r := BuildReport(reversed, nil, nil, Counters{})

	assert.Equal(t, 6.0, timingFor(t, r, 8).Seconds)
}
