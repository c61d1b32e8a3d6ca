package repository

import (
	"testing"
	"time"

	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/musama5293/NPI-Portal-sub001/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAssignment(f *testutil.Fixture, id uint, now time.Time) *model.Assignment {
	from, to := testutil.Window(now)
	return &model.Assignment{
		ID:          id,
		TestID:      f.Test.ID,
		CandidateID: f.Candidate.ID,
		ScheduledAt: from,
		ExpiresAt:   to,
		Status:      model.StatusPending,
	}
}

func TestAssignmentRepository_AppendEvent(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	repo := NewAssignmentRepository(db)
	now := time.Now()
	require.NoError(t, repo.Create(newAssignment(f, 42, now)))

	offscreen := 3.5
	events := []model.ActivityEvent{
		{AssignmentID: 42, Type: model.ActivityPageChange, OccurredAt: now},
		{AssignmentID: 42, Type: model.ActivityFullscreenExit, OccurredAt: now},
		{AssignmentID: 42, Type: model.ActivityFullscreenEnter, Duration: &offscreen, OccurredAt: now},
		{AssignmentID: 42, Type: model.ActivityFullscreenExit, OccurredAt: now},
	}
	for i := range events {
		require.NoError(t, repo.AppendEvent(&events[i]))
		assert.Equal(t, uint64(i+1), events[i].Seq)
	}

	stored, err := repo.Events(42)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	assert.Equal(t, model.ActivityFullscreenExit, stored[3].Type)

	a, err := repo.FindByID(42)
	require.NoError(t, err)
	assert.Equal(t, 2, a.FullscreenViolations)
	assert.Equal(t, 3.5, a.OffscreenTime)
	assert.Equal(t, uint64(4), a.EventSeq)

	err = repo.AppendEvent(&model.ActivityEvent{AssignmentID: 999, Type: model.ActivityPageChange, OccurredAt: now})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAssignmentRepository_UpsertAnswer(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	repo := NewAssignmentRepository(db)
	now := time.Now()
	require.NoError(t, repo.Create(newAssignment(f, 7, now)))

	qid := f.Questions[0].ID
	require.NoError(t, repo.UpsertAnswer(&model.AssignmentAnswer{
		AssignmentID: 7, QuestionID: qid, Kind: model.AnswerLikert, Position: 2,
		ScoreObtained: 2, MaxScore: 5, AnsweredAt: now,
	}))
	require.NoError(t, repo.UpsertAnswer(&model.AssignmentAnswer{
		AssignmentID: 7, QuestionID: qid, Kind: model.AnswerLikert, Position: 4,
		ScoreObtained: 4, MaxScore: 5, AnsweredAt: now.Add(time.Minute),
	}))

	answers, err := repo.Answers(7)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, 4, answers[0].Position)
	assert.Equal(t, 4.0, answers[0].ScoreObtained)

	n, err := repo.CountAnswersWithSubdomain(7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAssignmentRepository_CompleteOnlyOnce(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	repo := NewAssignmentRepository(db)
	now := time.Now()
	require.NoError(t, repo.Create(newAssignment(f, 8, now)))

	rows, err := repo.Complete(8, now, map[string]interface{}{"score": 75.0})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.Complete(8, now.Add(time.Hour), map[string]interface{}{"score": 10.0})
	require.NoError(t, err)
	assert.Zero(t, rows)

	a, err := repo.FindByID(8)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, a.Status)
	assert.Equal(t, 75.0, a.Score)
}

func TestAssignmentRepository_DeletePending(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	repo := NewAssignmentRepository(db)
	now := time.Now()

	require.NoError(t, repo.Create(newAssignment(f, 1, now)))
	started := newAssignment(f, 2, now)
	started.Status = model.StatusStarted
	require.NoError(t, repo.Create(started))

	deleted, err := repo.DeletePending(2)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.DeletePending(1)
	require.NoError(t, err)
	assert.True(t, deleted)

	ok, err := repo.Exists(1)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.Exists(2)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAssignmentRepository_ExpireOverdue(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	repo := NewAssignmentRepository(db)
	now := time.Now()

	overdue := newAssignment(f, 1, now.Add(-3*time.Hour))
	require.NoError(t, repo.Create(overdue))
	done := newAssignment(f, 2, now.Add(-3*time.Hour))
	done.Status = model.StatusCompleted
	require.NoError(t, repo.Create(done))
	require.NoError(t, repo.Create(newAssignment(f, 3, now)))

	n, err := repo.ExpireOverdue(now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	a, err := repo.FindByID(1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, a.Status)
}

func TestAssignmentRepository_CreateWithFeedback(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	repo := NewAssignmentRepository(db)
	now := time.Now()

	primary := newAssignment(f, 10, now)
	feedback := newAssignment(f, 1000010, now)
	feedback.SupervisorID = &f.Supervisor.ID
	require.NoError(t, repo.CreateWithFeedback(primary, feedback))

	ids, err := repo.LinkedFeedbackIDs(10)
	require.NoError(t, err)
	assert.Equal(t, []uint{1000010}, ids)

	fb, err := repo.FindByID(1000010)
	require.NoError(t, err)
	assert.True(t, fb.IsFeedbackForm)
	require.NotNil(t, fb.LinkedCandidateAssignmentID)
	assert.Equal(t, uint(10), *fb.LinkedCandidateAssignmentID)

	created, err := repo.EnsureLink(10, 1000010)
	require.NoError(t, err)
	assert.False(t, created)

	// 反馈表 id 冲突时整个事务回滚
	err = repo.CreateWithFeedback(newAssignment(f, 11, now), newAssignment(f, 1000010, now))
	require.Error(t, err)
	ok, err := repo.Exists(11)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssignmentRepository_List(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db)
	repo := NewAssignmentRepository(db)
	now := time.Now()

	for id := uint(1); id <= 5; id++ {
		require.NoError(t, repo.Create(newAssignment(f, id, now.Add(time.Duration(id)*time.Minute))))
	}

	list, total, err := repo.List(AssignmentFilter{CandidateID: f.Candidate.ID}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, list, 2)
	assert.Equal(t, uint(5), list[0].ID)

	list, _, err = repo.List(AssignmentFilter{CandidateID: f.Candidate.ID}, 3, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint(1), list[0].ID)
}
