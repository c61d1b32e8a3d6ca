package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/musama5293/NPI-Portal-sub001/internal/model"
)

var ErrQuestionNotFound = errors.New("question not found")

// Taxonomy 领域/子领域名称，用于填充分数桶的显示名
type Taxonomy struct {
	Domains    map[uint]string
	Subdomains map[uint]model.Subdomain
}

type Report struct {
	OverallPercentage int                    `json:"overallPercentage"`
	Obtained          float64                `json:"obtained"`
	Max               float64                `json:"max"`
	DomainScores      []model.DomainScore    `json:"domainScores"`
	SubdomainScores   []model.SubdomainScore `json:"subdomainScores"`
}

// Percentage round(100*obtained/max)，max 为 0 时返回 0，结果限定在 [0,100]
func Percentage(obtained, max float64) int {
	if max <= 0 {
		return 0
	}
	p := math.Round(100 * obtained / max)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p)
}

// Aggregate 按题目的 domain/subdomain 汇总得分。纯函数：相同输入得到相同输出，
// 分数桶按首次出现的顺序排列。每题得分按题目定义实时计算。
func Aggregate(answers []model.AssignmentAnswer, questions map[uint]*model.Question, tax Taxonomy) (*Report, error) {
	report := &Report{
		DomainScores:    []model.DomainScore{},
		SubdomainScores: []model.SubdomainScore{},
	}
	domainIdx := make(map[uint]int)
	subIdx := make(map[uint]int)

	for i := range answers {
		a := &answers[i]
		q, ok := questions[a.QuestionID]
		if !ok || q == nil {
			return nil, fmt.Errorf("%w: %d", ErrQuestionNotFound, a.QuestionID)
		}

		obtained, max := ScoreAnswer(q, FromModel(a))
		report.Obtained += obtained
		report.Max += max

		domainID := uint(0)
		if q.DomainID != nil {
			domainID = *q.DomainID
		} else if q.SubdomainID != nil {
			if sd, ok := tax.Subdomains[*q.SubdomainID]; ok {
				domainID = sd.DomainID
			}
		}

		if domainID != 0 {
			idx, ok := domainIdx[domainID]
			if !ok {
				idx = len(report.DomainScores)
				domainIdx[domainID] = idx
				report.DomainScores = append(report.DomainScores, model.DomainScore{
					DomainID: domainID,
					Name:     tax.domainName(domainID),
				})
			}
			report.DomainScores[idx].Obtained += obtained
			report.DomainScores[idx].Max += max
		}

		if q.SubdomainID != nil {
			sid := *q.SubdomainID
			idx, ok := subIdx[sid]
			if !ok {
				idx = len(report.SubdomainScores)
				subIdx[sid] = idx
				report.SubdomainScores = append(report.SubdomainScores, model.SubdomainScore{
					SubdomainID: sid,
					DomainID:    domainID,
					Name:        tax.subdomainName(sid),
				})
			}
			report.SubdomainScores[idx].Obtained += obtained
			report.SubdomainScores[idx].Max += max
		}
	}

	for i := range report.DomainScores {
		d := &report.DomainScores[i]
		d.Percentage = Percentage(d.Obtained, d.Max)
	}
	for i := range report.SubdomainScores {
		s := &report.SubdomainScores[i]
		s.Percentage = Percentage(s.Obtained, s.Max)
	}
	report.OverallPercentage = Percentage(report.Obtained, report.Max)

	return report, nil
}

func (t Taxonomy) domainName(id uint) string {
	if name, ok := t.Domains[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Domain #%d", id)
}

func (t Taxonomy) subdomainName(id uint) string {
	if sd, ok := t.Subdomains[id]; ok && sd.Name != "" {
		return sd.Name
	}
	return fmt.Sprintf("Subdomain #%d", id)
}
