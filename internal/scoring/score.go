package scoring

import (
	"math"

	"github.com/musama5293/NPI-Portal-sub001/internal/model"
)

// ScoreAnswer 计算单题得分与该题满分。
//
// Likert 题只有一个计分来源：位置 p 在 N 点量表上得 p 分，反向计分题得 (N+1)-p 分，
// 满分为 N；选项中配置的分值不参与 Likert 计分。
// 选择题先按选项 ID 匹配，再按选项文字精确匹配，得到配置分值；满分为选项最高分。
// 未匹配到任何选项时得 0 分。
func ScoreAnswer(q *model.Question, v AnswerValue) (obtained, max float64) {
	max = MaxScore(q)

	switch v := v.(type) {
	case LikertAnswer:
		if q.Likert() {
			return likertScore(q, v.Position), max
		}
		if v.Position >= 1 && v.Position <= len(q.Options) {
			return q.Options[v.Position-1].Score, max
		}
	case ChoiceAnswer:
		i := findOption(q, v.OptionRef)
		if i < 0 {
			return 0, max
		}
		if q.Likert() {
			return likertScore(q, i+1), max
		}
		return q.Options[i].Score, max
	case TextAnswer:
		i := findOption(q, v.Text)
		if i < 0 || q.QuestionType == model.QuestionText {
			return 0, max
		}
		if q.Likert() {
			return likertScore(q, i+1), max
		}
		return q.Options[i].Score, max
	}
	return 0, max
}

// MaxScore Likert 题为量表点数，其余为选项最高分（无选项时为 0）
func MaxScore(q *model.Question) float64 {
	if q.Likert() {
		return float64(likertPoints(q))
	}
	max := 0.0
	for _, opt := range q.Options {
		max = math.Max(max, opt.Score)
	}
	return max
}

func likertPoints(q *model.Question) int {
	if q.LikertPoints > 0 {
		return q.LikertPoints
	}
	return len(q.Options)
}

func likertScore(q *model.Question, position int) float64 {
	points := likertPoints(q)
	if position < 1 || position > points {
		return 0
	}
	if q.IsReversed {
		return float64(points + 1 - position)
	}
	return float64(position)
}

func findOption(q *model.Question, ref string) int {
	if ref == "" {
		return -1
	}
	for i, opt := range q.Options {
		if opt.ID != "" && opt.ID == ref {
			return i
		}
	}
	for i, opt := range q.Options {
		if opt.Label == ref {
			return i
		}
	}
	return -1
}
