package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/musama5293/NPI-Portal-sub001/internal/model"
)

var (
	ErrEmptyResponse     = errors.New("response is empty")
	ErrInvalidResponse   = errors.New("response has an unsupported type")
	ErrAmbiguousResponse = errors.New("numeric response on a reversed item matches another option's score")
)

// AnswerValue 作答内容：文本、选项引用或 Likert 位置（从 1 开始）
type AnswerValue interface {
	Kind() model.AnswerKind
}

type TextAnswer struct {
	Text string
}

type ChoiceAnswer struct {
	OptionRef string
}

type LikertAnswer struct {
	Position int
}

func (TextAnswer) Kind() model.AnswerKind   { return model.AnswerText }
func (ChoiceAnswer) Kind() model.AnswerKind { return model.AnswerChoice }
func (LikertAnswer) Kind() model.AnswerKind { return model.AnswerLikert }

// NewAnswerValue 根据题型把客户端原始响应（JSON 解码后的值）转换为 AnswerValue。
// Likert 题：先按选项文字精确匹配得到位置，再把数字当作位置；都不成立时保留为文本（计 0 分）。
// 反向题若数字与其他位置选项的配置分值相同则拒绝。
func NewAnswerValue(q *model.Question, raw interface{}) (AnswerValue, error) {
	var text string
	numeric := false
	var num float64

	switch v := raw.(type) {
	case nil:
		return nil, ErrEmptyResponse
	case string:
		text = v
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			numeric, num = true, f
		}
	case float64:
		numeric, num = true, v
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		numeric, num = true, float64(v)
		text = strconv.Itoa(v)
	case json.Number:
		text = v.String()
		if f, err := v.Float64(); err == nil {
			numeric, num = true, f
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidResponse, raw)
	}

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	switch {
	case q.Likert():
		for i, opt := range q.Options {
			if opt.Label == text {
				return LikertAnswer{Position: i + 1}, nil
			}
		}
		if numeric && num == math.Trunc(num) {
			position := int(num)
			if q.IsReversed && scoreAtOtherPosition(q, num, position) {
				return nil, ErrAmbiguousResponse
			}
			return LikertAnswer{Position: position}, nil
		}
		return TextAnswer{Text: text}, nil
	case q.QuestionType == model.QuestionText:
		return TextAnswer{Text: text}, nil
	default:
		return ChoiceAnswer{OptionRef: text}, nil
	}
}

// scoreAtOtherPosition 反向题的数字响应同时命中另一位置选项的配置分值时，无法判断是位置还是分值
func scoreAtOtherPosition(q *model.Question, score float64, position int) bool {
	for i, opt := range q.Options {
		if opt.Score != 0 && opt.Score == score && i+1 != position {
			return true
		}
	}
	return false
}

// FromModel 从持久化记录还原 AnswerValue
func FromModel(a *model.AssignmentAnswer) AnswerValue {
	switch a.Kind {
	case model.AnswerLikert:
		return LikertAnswer{Position: a.Position}
	case model.AnswerChoice:
		return ChoiceAnswer{OptionRef: a.OptionID}
	default:
		return TextAnswer{Text: a.TextValue}
	}
}

// Apply 把 AnswerValue 写入持久化记录（清空其他分支的字段）
func Apply(v AnswerValue, a *model.AssignmentAnswer) {
	a.Kind = v.Kind()
	a.TextValue, a.OptionID, a.Position = "", "", 0
	switch v := v.(type) {
	case LikertAnswer:
		a.Position = v.Position
	case ChoiceAnswer:
		a.OptionID = v.OptionRef
	case TextAnswer:
		a.TextValue = v.Text
	}
}

// Display 返回作答的可读文字，用于外部分析请求
func Display(q *model.Question, v AnswerValue) string {
	switch v := v.(type) {
	case LikertAnswer:
		if v.Position >= 1 && v.Position <= len(q.Options) {
			return q.Options[v.Position-1].Label
		}
		return strconv.Itoa(v.Position)
	case ChoiceAnswer:
		if i := findOption(q, v.OptionRef); i >= 0 {
			return q.Options[i].Label
		}
		return v.OptionRef
	case TextAnswer:
		return v.Text
	}
	return ""
}
