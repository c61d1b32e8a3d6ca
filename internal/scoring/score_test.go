package scoring

import (
	"testing"

	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var agreeScale = []model.QuestionOption{
	{ID: "sd", Label: "Strongly Disagree"},
	{ID: "d", Label: "Disagree"},
	{ID: "n", Label: "Neutral"},
	{ID: "a", Label: "Agree"},
	{ID: "sa", Label: "Strongly Agree"},
}

func likertQuestion(reversed bool) *model.Question {
	return &model.Question{
		QuestionType: model.QuestionLikert,
		IsLikert:     true,
		IsReversed:   reversed,
		LikertPoints: 5,
		Options:      agreeScale,
	}
}

func choiceQuestion() *model.Question {
	return &model.Question{
		QuestionType: model.QuestionSingleChoice,
		Options: []model.QuestionOption{
			{ID: "opt-a", Label: "Delegate", Score: 1},
			{ID: "opt-b", Label: "Decide now", Score: 3},
			{ID: "opt-c", Label: "Escalate", Score: 2},
		},
	}
}

func TestNewAnswerValue(t *testing.T) {
	tests := []struct {
		name string
		q    *model.Question
		raw  interface{}
		want AnswerValue
	}{
		{"likert label", likertQuestion(false), "Agree", LikertAnswer{Position: 4}},
		{"likert number", likertQuestion(false), float64(2), LikertAnswer{Position: 2}},
		{"likert numeric string", likertQuestion(true), " 3 ", LikertAnswer{Position: 3}},
		{"likert unknown label", likertQuestion(false), "Maybe", TextAnswer{Text: "Maybe"}},
		{"likert fractional", likertQuestion(false), 2.5, TextAnswer{Text: "2.5"}},
		{"choice id", choiceQuestion(), "opt-b", ChoiceAnswer{OptionRef: "opt-b"}},
		{"choice number", choiceQuestion(), float64(7), ChoiceAnswer{OptionRef: "7"}},
		{"free text", &model.Question{QuestionType: model.QuestionText}, "I lead by example", TextAnswer{Text: "I lead by example"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewAnswerValue(tt.q, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("rejects empty and unsupported values", func(t *testing.T) {
		_, err := NewAnswerValue(choiceQuestion(), nil)
		assert.ErrorIs(t, err, ErrEmptyResponse)

		_, err = NewAnswerValue(choiceQuestion(), "   ")
		assert.ErrorIs(t, err, ErrEmptyResponse)

		_, err = NewAnswerValue(choiceQuestion(), map[string]interface{}{"x": 1})
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("reversed item with scored options", func(t *testing.T) {
		q := likertQuestion(true)
		q.Options = []model.QuestionOption{
			{ID: "sd", Label: "Strongly Disagree", Score: 5},
			{ID: "d", Label: "Disagree", Score: 4},
			{ID: "n", Label: "Neutral", Score: 3},
			{ID: "a", Label: "Agree", Score: 2},
			{ID: "sa", Label: "Strongly Agree", Score: 1},
		}

		_, err := NewAnswerValue(q, float64(1))
		assert.ErrorIs(t, err, ErrAmbiguousResponse)

		_, err = NewAnswerValue(q, "4")
		assert.ErrorIs(t, err, ErrAmbiguousResponse)

		// 中间位置的分值与位置一致
		got, err := NewAnswerValue(q, float64(3))
		require.NoError(t, err)
		assert.Equal(t, LikertAnswer{Position: 3}, got)

		got, err = NewAnswerValue(q, "Agree")
		require.NoError(t, err)
		assert.Equal(t, LikertAnswer{Position: 4}, got)
	})
}

func TestScoreAnswer_Likert(t *testing.T) {
	t.Run("agree on a forward scale", func(t *testing.T) {
		q := likertQuestion(false)
		v, err := NewAnswerValue(q, "Agree")
		require.NoError(t, err)

		obtained, max := ScoreAnswer(q, v)
		assert.Equal(t, 4.0, obtained)
		assert.Equal(t, 5.0, max)
	})

	t.Run("reversed position two", func(t *testing.T) {
		obtained, max := ScoreAnswer(likertQuestion(true), LikertAnswer{Position: 2})
		assert.Equal(t, 4.0, obtained)
		assert.Equal(t, 5.0, max)
	})

	t.Run("reversed midpoint is invariant", func(t *testing.T) {
		forward, _ := ScoreAnswer(likertQuestion(false), LikertAnswer{Position: 3})
		reversed, _ := ScoreAnswer(likertQuestion(true), LikertAnswer{Position: 3})
		assert.Equal(t, 3.0, forward)
		assert.Equal(t, 3.0, reversed)
	})

	t.Run("matches an option table authored with reversal baked in", func(t *testing.T) {
		for _, points := range []int{3, 5, 7} {
			q := &model.Question{QuestionType: model.QuestionLikert, IsLikert: true, IsReversed: true, LikertPoints: points}
			for pos := 1; pos <= points; pos++ {
				baked := float64(points - pos + 1)
				got, max := ScoreAnswer(q, LikertAnswer{Position: pos})
				assert.Equal(t, baked, got, "points=%d position=%d", points, pos)
				assert.Equal(t, float64(points), max)
			}
		}
	})

	t.Run("out of range position scores zero", func(t *testing.T) {
		for _, pos := range []int{0, -1, 6} {
			obtained, max := ScoreAnswer(likertQuestion(false), LikertAnswer{Position: pos})
			assert.Zero(t, obtained)
			assert.Equal(t, 5.0, max)
		}
	})

	t.Run("option ref resolves to its position", func(t *testing.T) {
		obtained, _ := ScoreAnswer(likertQuestion(true), ChoiceAnswer{OptionRef: "sa"})
		assert.Equal(t, 1.0, obtained)
	})

	t.Run("falls back to option count when points unset", func(t *testing.T) {
		q := likertQuestion(false)
		q.LikertPoints = 0
		assert.Equal(t, 5.0, MaxScore(q))
	})
}

func TestScoreAnswer_Choice(t *testing.T) {
	q := choiceQuestion()

	tests := []struct {
		name string
		v    AnswerValue
		want float64
	}{
		{"by id", ChoiceAnswer{OptionRef: "opt-c"}, 2},
		{"by label", ChoiceAnswer{OptionRef: "Decide now"}, 3},
		{"unknown", ChoiceAnswer{OptionRef: "opt-z"}, 0},
		{"text label", TextAnswer{Text: "Delegate"}, 1},
		{"position", LikertAnswer{Position: 2}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obtained, max := ScoreAnswer(q, tt.v)
			assert.Equal(t, tt.want, obtained)
			assert.Equal(t, 3.0, max)
		})
	}
}

func TestScoreAnswer_FreeText(t *testing.T) {
	q := &model.Question{QuestionType: model.QuestionText}
	obtained, max := ScoreAnswer(q, TextAnswer{Text: "anything"})
	assert.Zero(t, obtained)
	assert.Zero(t, max)
}

func TestApplyAndFromModel(t *testing.T) {
	var rec model.AssignmentAnswer
	rec.TextValue = "stale"

	Apply(LikertAnswer{Position: 5}, &rec)
	assert.Equal(t, model.AnswerLikert, rec.Kind)
	assert.Empty(t, rec.TextValue)
	assert.Equal(t, LikertAnswer{Position: 5}, FromModel(&rec))

	Apply(ChoiceAnswer{OptionRef: "opt-a"}, &rec)
	assert.Zero(t, rec.Position)
	assert.Equal(t, ChoiceAnswer{OptionRef: "opt-a"}, FromModel(&rec))
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "Disagree", Display(likertQuestion(true), LikertAnswer{Position: 2}))
	assert.Equal(t, "9", Display(likertQuestion(true), LikertAnswer{Position: 9}))
	assert.Equal(t, "Escalate", Display(choiceQuestion(), ChoiceAnswer{OptionRef: "opt-c"}))
	assert.Equal(t, "free", Display(choiceQuestion(), TextAnswer{Text: "free"}))
}
