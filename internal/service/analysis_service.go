package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/musama5293/NPI-Portal-sub001/internal/repository"
	"github.com/musama5293/NPI-Portal-sub001/internal/scoring"
	"github.com/musama5293/NPI-Portal-sub001/internal/util"
	"github.com/musama5293/NPI-Portal-sub001/pkg/logger"
	"github.com/musama5293/NPI-Portal-sub001/pkg/monitoring"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 只释放自己持有的锁
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type AnalysisView struct {
	AssignmentID      uint            `json:"assignmentId"`
	GeneratedAt       time.Time       `json:"generatedAt"`
	Analysis          json.RawMessage `json:"analysis" swaggertype:"object"`
	DomainsAnalyzed   int             `json:"domainsAnalyzed"`
	QuestionsAnalyzed int             `json:"questionsAnalyzed"`
	ArchiveURL        string          `json:"archiveUrl,omitempty"`
}

type AnalysisService struct {
	AssignmentRepo *repository.AssignmentRepository
	QuestionRepo   *repository.QuestionRepository
	CandidateRepo  *repository.CandidateRepository
	AnalysisRepo   *repository.AnalysisRepository
	Client         Analyzer
	Redis          *redis.Client
	Storage        StorageProvider

	group singleflight.Group
}

func NewAnalysisService(
	assignmentRepo *repository.AssignmentRepository,
	questionRepo *repository.QuestionRepository,
	candidateRepo *repository.CandidateRepository,
	analysisRepo *repository.AnalysisRepository,
	client Analyzer,
	rdb *redis.Client,
	storage StorageProvider,
) *AnalysisService {
	return &AnalysisService{
		AssignmentRepo: assignmentRepo,
		QuestionRepo:   questionRepo,
		CandidateRepo:  candidateRepo,
		AnalysisRepo:   analysisRepo,
		Client:         client,
		Redis:          rdb,
		Storage:        storage,
	}
}

func (s *AnalysisService) load(id uint, requester *util.Claims) (*model.Assignment, error) {
	a, err := s.AssignmentRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAssignmentNotFound
		}
		return nil, err
	}
	if err := authorize(a, requester); err != nil {
		return nil, err
	}
	return a, nil
}

// Generate 调用外部分析服务并保存结果。
// 同一实例内对同一测评的并发请求合并为一次调用；跨实例由 Redis 锁互斥。
// 调用不随请求取消，超时由分析服务配置决定。
func (s *AnalysisService) Generate(ctx context.Context, id uint, requester *util.Claims) (*AnalysisView, error) {
	a, err := s.load(id, requester)
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusCompleted {
		return nil, util.ErrNotCompleted
	}

	ctx = context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(strconv.FormatUint(uint64(id), 10), func() (interface{}, error) {
		return s.generate(ctx, a)
	})
	if shared {
		logger.Log.Debug("Analysis request joined in-flight call", zap.Uint("assignment_id", id))
	}
	if err != nil {
		return nil, err
	}
	return v.(*AnalysisView), nil
}

func (s *AnalysisService) generate(ctx context.Context, a *model.Assignment) (*AnalysisView, error) {
	release, err := s.acquire(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := s.buildRequest(a)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := s.Client.Analyze(ctx, req)
	monitoring.AnalysisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		var ae *util.AnalysisError
		if errors.As(err, &ae) {
			outcome = ae.Kind
		}
		monitoring.AnalysisRequests.WithLabelValues(outcome).Inc()
		logger.Log.Error("Psychometric analysis failed",
			zap.Uint("assignment_id", a.ID),
			zap.String("outcome", outcome),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	monitoring.AnalysisRequests.WithLabelValues("success").Inc()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	result := &model.AnalysisResult{
		AssignmentID:   a.ID,
		RawResponse:    datatypes.JSON(raw),
		GeneratedAt:    time.Now(),
		RequestPayload: datatypes.JSON(payload),
	}
	if err := s.AnalysisRepo.Save(result); err != nil {
		return nil, err
	}

	view := &AnalysisView{
		AssignmentID:      a.ID,
		GeneratedAt:       result.GeneratedAt,
		Analysis:          json.RawMessage(raw),
		DomainsAnalyzed:   len(req.Domains),
		QuestionsAnalyzed: len(req.Responses),
	}
	view.ArchiveURL = s.archive(ctx, a.ID, result)

	logger.Log.Info("Psychometric analysis stored",
		zap.Uint("assignment_id", a.ID),
		zap.Int("domains", view.DomainsAnalyzed),
		zap.Int("questions", view.QuestionsAnalyzed),
		zap.Duration("elapsed", time.Since(start)))
	return view, nil
}

// acquire Redis 不可用时仅依赖进程内合并
func (s *AnalysisService) acquire(ctx context.Context, id uint) (func(), error) {
	if s.Redis == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf("%s%d", util.AnalysisLockPrefix, id)
	token := uuid.NewString()
	ttl := s.Client.Timeout() + time.Minute

	ok, err := s.Redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		logger.Log.Warn("Analysis lock unavailable, continuing without it", zap.Uint("assignment_id", id), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, util.ErrAnalysisInProgress
	}

	return func() {
		if err := releaseLock.Run(context.Background(), s.Redis, []string{key}, token).Err(); err != nil && err != redis.Nil {
			logger.Log.Warn("Failed to release analysis lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// buildRequest 使用已保存的分数，不重新计算
func (s *AnalysisService) buildRequest(a *model.Assignment) (*AnalysisRequest, error) {
	req := &AnalysisRequest{
		SessionID:     strconv.FormatUint(uint64(a.ID), 10),
		CandidateName: fmt.Sprintf("Candidate #%d", a.CandidateID),
		Domains:       make([]AnalysisDomain, 0, len(a.DomainScores)),
		Responses:     []AnalysisResponse{},
	}
	if c, err := s.CandidateRepo.FindByID(a.CandidateID); err == nil && c.Name != "" {
		req.CandidateName = c.Name
	}

	subsByDomain := make(map[uint][]AnalysisSubdomain)
	for _, sd := range a.SubdomainScores {
		subsByDomain[sd.DomainID] = append(subsByDomain[sd.DomainID], AnalysisSubdomain{
			Subdomain: sd.Name,
			Score:     sd.Percentage,
		})
	}
	for _, d := range a.DomainScores {
		subs := subsByDomain[d.DomainID]
		if subs == nil {
			subs = []AnalysisSubdomain{}
		}
		req.Domains = append(req.Domains, AnalysisDomain{Domain: d.Name, Score: d.Percentage, Subdomains: subs})
	}

	answers, err := s.AssignmentRepo.Answers(a.ID)
	if err != nil {
		return nil, err
	}
	questionIDs := make([]uint, 0, len(answers))
	for _, ans := range answers {
		questionIDs = append(questionIDs, ans.QuestionID)
	}
	questions, err := s.QuestionRepo.FindByIDs(questionIDs)
	if err != nil {
		return nil, err
	}
	var subdomainIDs []uint
	for _, q := range questions {
		if q.SubdomainID != nil {
			subdomainIDs = append(subdomainIDs, *q.SubdomainID)
		}
	}
	subdomains, err := s.QuestionRepo.Subdomains(subdomainIDs)
	if err != nil {
		return nil, err
	}

	for i := range answers {
		q, ok := questions[answers[i].QuestionID]
		if !ok || q.SubdomainID == nil {
			continue
		}
		name := fmt.Sprintf("Subdomain #%d", *q.SubdomainID)
		if sd, ok := subdomains[*q.SubdomainID]; ok && sd.Name != "" {
			name = sd.Name
		}
		req.Responses = append(req.Responses, AnalysisResponse{
			Question:  q.Text,
			Subdomain: strings.ToUpper(name),
			Response:  scoring.Display(q, scoring.FromModel(&answers[i])),
		})
	}
	return req, nil
}

// archive 归档失败只记录日志
func (s *AnalysisService) archive(ctx context.Context, id uint, result *model.AnalysisResult) string {
	if s.Storage == nil {
		return ""
	}
	doc, err := json.Marshal(result)
	if err != nil {
		logger.Log.Warn("Failed to encode analysis archive", zap.Uint("assignment_id", id), zap.Error(err))
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	key := fmt.Sprintf("analysis/%d/%s.json", id, result.GeneratedAt.UTC().Format("20060102T150405Z"))
	url, err := s.Storage.Put(ctx, key, doc, "application/json")
	if err != nil {
		logger.Log.Warn("Failed to archive analysis", zap.Uint("assignment_id", id), zap.Error(err))
		return ""
	}
	return url
}

// Get 读取最近一次分析结果。旧记录没有请求体时按分数与作答重新统计数量。
func (s *AnalysisService) Get(id uint, requester *util.Claims) (*AnalysisView, error) {
	a, err := s.load(id, requester)
	if err != nil {
		return nil, err
	}

	result, err := s.AnalysisRepo.FindByAssignmentID(a.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAnalysisNotFound
		}
		return nil, err
	}

	view := &AnalysisView{
		AssignmentID: a.ID,
		GeneratedAt:  result.GeneratedAt,
		Analysis:     json.RawMessage(result.RawResponse),
	}

	var stored AnalysisRequest
	if len(result.RequestPayload) > 0 && json.Unmarshal(result.RequestPayload, &stored) == nil {
		view.DomainsAnalyzed = len(stored.Domains)
		view.QuestionsAnalyzed = len(stored.Responses)
		return view, nil
	}

	view.DomainsAnalyzed = len(a.DomainScores)
	n, err := s.AssignmentRepo.CountAnswersWithSubdomain(a.ID)
	if err != nil {
		return nil, err
	}
	view.QuestionsAnalyzed = int(n)
	return view, nil
}
