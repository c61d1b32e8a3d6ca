package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/musama5293/NPI-Portal-sub001/internal/analytics"
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/musama5293/NPI-Portal-sub001/internal/repository"
	"github.com/musama5293/NPI-Portal-sub001/internal/scoring"
	"github.com/musama5293/NPI-Portal-sub001/internal/util"
	"github.com/musama5293/NPI-Portal-sub001/pkg/logger"
	"github.com/musama5293/NPI-Portal-sub001/pkg/monitoring"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notifier 测评创建后的通知入口，不得影响创建结果
type Notifier interface {
	Enqueue(n Notification) bool
}

type AssignmentService struct {
	AssignmentRepo *repository.AssignmentRepository
	QuestionRepo   *repository.QuestionRepository
	TestRepo       *repository.TestRepository
	CandidateRepo  *repository.CandidateRepository
	Notifier       Notifier

	FeedbackIDOffset uint
	Clock            func() time.Time

	validate *validator.Validate
}

func NewAssignmentService(
	assignmentRepo *repository.AssignmentRepository,
	questionRepo *repository.QuestionRepository,
	testRepo *repository.TestRepository,
	candidateRepo *repository.CandidateRepository,
	notifier Notifier,
	feedbackIDOffset uint,
) *AssignmentService {
	v := validator.New()
	v.SetTagName("binding")

	return &AssignmentService{
		AssignmentRepo:   assignmentRepo,
		QuestionRepo:     questionRepo,
		TestRepo:         testRepo,
		CandidateRepo:    candidateRepo,
		Notifier:         notifier,
		FeedbackIDOffset: feedbackIDOffset,
		Clock:            time.Now,
		validate:         v,
	}
}

// DetailedScores 分数与行为分析报告
type DetailedScores struct {
	model.CompletionResult
	Answers   []model.AnswerScore `json:"answers"`
	Analytics *analytics.Report   `json:"analytics"`
}

func (s *AssignmentService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *AssignmentService) find(id uint) (*model.Assignment, error) {
	a, err := s.AssignmentRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAssignmentNotFound
		}
		return nil, err
	}
	return a, nil
}

// authorize 管理员可访问全部；候选人只能访问自己的测评；其他角色只能访问绑定到自己的反馈表
func authorize(a *model.Assignment, requester *util.Claims) error {
	if requester == nil {
		return util.ErrPermissionDenied
	}
	switch requester.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleCandidate:
		if !a.IsFeedbackForm && requester.CandidateID != 0 && requester.CandidateID == a.CandidateID {
			return nil
		}
	default:
		if a.IsFeedbackForm && a.SupervisorID != nil && *a.SupervisorID == requester.UserID {
			return nil
		}
	}
	return util.ErrPermissionDenied
}

func (s *AssignmentService) loadAuthorized(id uint, requester *util.Claims) (*model.Assignment, error) {
	a, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if err := authorize(a, requester); err != nil {
		return nil, err
	}
	return a, nil
}

// 创建

func (s *AssignmentService) checkReferences(testID, candidateID uint) error {
	if _, err := s.TestRepo.FindByID(testID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d", util.ErrTestNotFound, testID)
		}
		return err
	}
	if _, err := s.CandidateRepo.FindByID(candidateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d", util.ErrCandidateNotFound, candidateID)
		}
		return err
	}
	return nil
}

func (s *AssignmentService) checkUnused(id uint) error {
	exists, err := s.AssignmentRepo.Exists(id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %d", util.ErrDuplicateAssignment, id)
	}
	return nil
}

func newAssignment(req *model.CreateAssignmentRequest) *model.Assignment {
	return &model.Assignment{
		ID:             req.ID,
		TestID:         req.TestID,
		CandidateID:    req.CandidateID,
		SupervisorID:   req.SupervisorID,
		IsFeedbackForm: req.IsFeedbackForm,
		ScheduledAt:    req.ScheduledAt,
		ExpiresAt:      req.ExpiresAt,
		Status:         model.StatusPending,
	}
}

func translateCreateError(err error, id uint) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %d", util.ErrDuplicateAssignment, id)
	}
	return err
}

func (s *AssignmentService) notify(a *model.Assignment) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Enqueue(NewAssignmentNotification(a))
}

func (s *AssignmentService) Create(req *model.CreateAssignmentRequest) (*model.Assignment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidRequest, err)
	}
	if err := s.checkReferences(req.TestID, req.CandidateID); err != nil {
		return nil, err
	}
	if err := s.checkUnused(req.ID); err != nil {
		return nil, err
	}

	a := newAssignment(req)
	if err := s.AssignmentRepo.Create(a); err != nil {
		return nil, translateCreateError(err, a.ID)
	}

	monitoring.AssignmentTransitions.WithLabelValues(string(model.StatusPending)).Inc()
	s.notify(a)
	return a, nil
}

// CreateBatch 每项独立处理，失败项收集到结果中而不中断整个批次
func (s *AssignmentService) CreateBatch(items []model.BatchAssignmentItem) (*model.BatchResult, error) {
	if len(items) == 0 {
		return nil, util.ErrEmptyBatch
	}

	result := &model.BatchResult{
		Succeeded: []model.BatchSuccess{},
		Failed:    []model.BatchFailure{},
	}
	for i := range items {
		item := &items[i]
		feedbackID, err := s.createBatchItem(item)
		if err != nil {
			logger.Log.Warn("Batch assignment item failed",
				zap.Int("index", i),
				zap.Uint("id", item.ID),
				zap.Error(err))
			result.Failed = append(result.Failed, model.BatchFailure{Index: i, ID: item.ID, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, model.BatchSuccess{Index: i, ID: item.ID, FeedbackID: feedbackID})
	}
	return result, nil
}

func (s *AssignmentService) createBatchItem(item *model.BatchAssignmentItem) (*uint, error) {
	if err := s.validate.Struct(item); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidRequest, err)
	}
	if err := s.checkReferences(item.TestID, item.CandidateID); err != nil {
		return nil, err
	}
	if err := s.checkUnused(item.ID); err != nil {
		return nil, err
	}

	primary := newAssignment(&item.CreateAssignmentRequest)
	if !item.WithSupervisorForm {
		if err := s.AssignmentRepo.Create(primary); err != nil {
			return nil, translateCreateError(err, primary.ID)
		}
		monitoring.AssignmentTransitions.WithLabelValues(string(model.StatusPending)).Inc()
		s.notify(primary)
		return nil, nil
	}

	feedbackID := item.ID + s.FeedbackIDOffset
	if err := s.checkUnused(feedbackID); err != nil {
		return nil, err
	}
	feedbackTestID := item.TestID
	if item.FeedbackTestID != nil {
		feedbackTestID = *item.FeedbackTestID
		if _, err := s.TestRepo.FindByID(feedbackTestID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %d", util.ErrTestNotFound, feedbackTestID)
			}
			return nil, err
		}
	}

	feedback := &model.Assignment{
		ID:           feedbackID,
		TestID:       feedbackTestID,
		CandidateID:  item.CandidateID,
		SupervisorID: item.FeedbackSupervisorID,
		ScheduledAt:  item.ScheduledAt,
		ExpiresAt:    item.ExpiresAt,
		Status:       model.StatusPending,
	}
	if err := s.AssignmentRepo.CreateWithFeedback(primary, feedback); err != nil {
		return nil, translateCreateError(err, primary.ID)
	}

	monitoring.AssignmentTransitions.WithLabelValues(string(model.StatusPending)).Add(2)
	s.notify(primary)
	s.notify(feedback)
	return &feedback.ID, nil
}

// 查询

func (s *AssignmentService) Get(id uint, requester *util.Claims) (*model.AssignmentView, error) {
	a, err := s.loadAuthorized(id, requester)
	if err != nil {
		return nil, err
	}
	views := s.enrich([]model.Assignment{*a})
	view := &views[0]

	if !a.IsFeedbackForm {
		ids, err := s.AssignmentRepo.LinkedFeedbackIDs(a.ID)
		if err != nil {
			return nil, err
		}
		view.LinkedFeedbackIDs = ids
	}
	return view, nil
}

// List 候选人只能看到自己的测评
func (s *AssignmentService) List(filter repository.AssignmentFilter, page, limit int, requester *util.Claims) (*util.PageResponse, error) {
	if requester == nil {
		return nil, util.ErrPermissionDenied
	}
	switch requester.Role {
	case model.RoleAdmin:
	case model.RoleCandidate:
		if requester.CandidateID == 0 {
			return nil, util.ErrPermissionDenied
		}
		filter.CandidateID = requester.CandidateID
		notFeedback := false
		filter.IsFeedbackForm = &notFeedback
	default:
		return nil, util.ErrPermissionDenied
	}

	list, total, err := s.AssignmentRepo.List(filter, page, limit)
	if err != nil {
		return nil, err
	}
	return &util.PageResponse{
		List:  s.enrich(list),
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// ListSupervisorAssignments 主管只能看到自己的反馈表，管理员看到全部
func (s *AssignmentService) ListSupervisorAssignments(requester *util.Claims) ([]model.AssignmentView, error) {
	if requester == nil || requester.Role == model.RoleCandidate {
		return nil, util.ErrPermissionDenied
	}

	var supervisorID *uint
	if requester.Role != model.RoleAdmin {
		id := requester.UserID
		supervisorID = &id
	}
	list, err := s.AssignmentRepo.ListFeedbackForms(supervisorID)
	if err != nil {
		return nil, err
	}
	return s.enrich(list), nil
}

// enrich 填充测试名与候选人名，查不到时使用占位名
func (s *AssignmentService) enrich(list []model.Assignment) []model.AssignmentView {
	testIDs := make([]uint, 0, len(list))
	candidateIDs := make([]uint, 0, len(list))
	for _, a := range list {
		testIDs = append(testIDs, a.TestID)
		candidateIDs = append(candidateIDs, a.CandidateID)
	}

	testNames, err := s.TestRepo.NamesByIDs(testIDs)
	if err != nil {
		logger.Log.Warn("Failed to resolve test names", zap.Error(err))
		testNames = map[uint]string{}
	}
	candidates, err := s.CandidateRepo.FindByIDs(candidateIDs)
	if err != nil {
		logger.Log.Warn("Failed to resolve candidate names", zap.Error(err))
		candidates = map[uint]model.Candidate{}
	}

	views := make([]model.AssignmentView, 0, len(list))
	for _, a := range list {
		v := model.AssignmentView{Assignment: a}
		if name, ok := testNames[a.TestID]; ok && name != "" {
			v.TestName = name
		} else {
			v.TestName = fmt.Sprintf("Test #%d", a.TestID)
		}
		if c, ok := candidates[a.CandidateID]; ok && c.Name != "" {
			v.CandidateName = c.Name
		} else {
			v.CandidateName = fmt.Sprintf("Candidate #%d", a.CandidateID)
		}
		views = append(views, v)
	}
	return views
}

// 状态流转

func (s *AssignmentService) checkStartable(a *model.Assignment, now time.Time) error {
	switch a.Status {
	case model.StatusCompleted:
		return util.ErrAssignmentCompleted
	case model.StatusExpired:
		return util.ErrAssignmentExpired
	}
	if !a.InWindow(now) {
		return util.ErrOutsideWindow
	}
	return nil
}

func (s *AssignmentService) markStarted(a *model.Assignment, now time.Time) error {
	if a.Status != model.StatusPending {
		return nil
	}
	rows, err := s.AssignmentRepo.MarkStarted(a.ID, now)
	if err != nil {
		return err
	}
	if rows > 0 {
		a.Status = model.StatusStarted
		a.StartTime = &now
		monitoring.AssignmentTransitions.WithLabelValues(string(model.StatusStarted)).Inc()
	}
	return nil
}

// Start 仅在 [scheduled_at, expires_at] 内有效；已开始时不改变开始时间
func (s *AssignmentService) Start(id uint, requester *util.Claims) (*model.Assignment, error) {
	a, err := s.loadAuthorized(id, requester)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.checkStartable(a, now); err != nil {
		return nil, err
	}
	if err := s.markStarted(a, now); err != nil {
		return nil, err
	}
	return s.find(id)
}

// GetQuestions 首次在有效时间窗内获取题目时测评转为 started。
// 非管理员在时间窗外无法获取题目；管理员可以预览且不触发状态变化。
func (s *AssignmentService) GetQuestions(id uint, requester *util.Claims) (*model.QuestionSheet, error) {
	a, err := s.loadAuthorized(id, requester)
	if err != nil {
		return nil, err
	}

	now := s.now()
	privileged := requester.IsAdmin()
	if a.Status == model.StatusPending {
		if a.InWindow(now) {
			if err := s.markStarted(a, now); err != nil {
				return nil, err
			}
		} else if !privileged {
			return nil, util.ErrOutsideWindow
		}
	}

	questions, err := s.QuestionRepo.FindByTest(a.TestID)
	if err != nil {
		return nil, err
	}
	answers, err := s.AssignmentRepo.Answers(a.ID)
	if err != nil {
		return nil, err
	}

	sheet := &model.QuestionSheet{
		Assignment: *a,
		Questions:  make([]model.QuestionView, 0, len(questions)),
		Answers:    make([]model.SavedAnswer, 0, len(answers)),
	}
	if t, err := s.TestRepo.FindByID(a.TestID); err == nil {
		sheet.TestName = t.Name
	} else {
		sheet.TestName = fmt.Sprintf("Test #%d", a.TestID)
	}

	for i := range questions {
		sheet.Questions = append(sheet.Questions, questionView(&questions[i], privileged))
	}
	for i := range answers {
		sheet.Answers = append(sheet.Answers, savedAnswer(&answers[i]))
	}
	return sheet, nil
}

func questionView(q *model.Question, privileged bool) model.QuestionView {
	v := model.QuestionView{
		ID:           q.ID,
		Text:         q.Text,
		QuestionType: q.QuestionType,
		Options:      make([]model.OptionView, 0, len(q.Options)),
		IsLikert:     q.Likert(),
		LikertPoints: q.LikertPoints,
		DomainID:     q.DomainID,
		SubdomainID:  q.SubdomainID,
	}
	if privileged {
		reversed := q.IsReversed
		v.IsReversed = &reversed
	}
	for i := range q.Options {
		opt := q.Options[i]
		ov := model.OptionView{ID: opt.ID, Label: opt.Label}
		if privileged {
			ov.Score = &q.Options[i].Score
			ov.IsCorrect = &q.Options[i].IsCorrect
		}
		v.Options = append(v.Options, ov)
	}
	return v
}

func savedAnswer(a *model.AssignmentAnswer) model.SavedAnswer {
	sa := model.SavedAnswer{QuestionID: a.QuestionID, Kind: a.Kind}
	switch v := scoring.FromModel(a).(type) {
	case scoring.LikertAnswer:
		sa.Value = v.Position
	case scoring.ChoiceAnswer:
		sa.Value = v.OptionRef
	case scoring.TextAnswer:
		sa.Value = v.Text
	}
	return sa
}

func (s *AssignmentService) questionInTest(testID, questionID uint) (*model.Question, error) {
	questions, err := s.QuestionRepo.FindByTest(testID)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		if questions[i].ID == questionID {
			return &questions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", util.ErrQuestionNotFound, questionID)
}

// SubmitAnswer 同一题重复提交时覆盖旧答案并重新计分
func (s *AssignmentService) SubmitAnswer(id uint, requester *util.Claims, req *model.SubmitAnswerRequest) (*model.AssignmentAnswer, error) {
	a, err := s.loadAuthorized(id, requester)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case a.Status == model.StatusCompleted:
		return nil, util.ErrAssignmentCompleted
	case a.Status == model.StatusExpired, a.Expired(now):
		return nil, util.ErrAssignmentExpired
	}

	q, err := s.questionInTest(a.TestID, req.QuestionID)
	if err != nil {
		return nil, err
	}
	value, err := scoring.NewAnswerValue(q, req.Response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidAnswer, err)
	}
	obtained, max := scoring.ScoreAnswer(q, value)

	answer := &model.AssignmentAnswer{
		AssignmentID:  a.ID,
		QuestionID:    q.ID,
		ScoreObtained: obtained,
		MaxScore:      max,
		AnsweredAt:    now,
	}
	scoring.Apply(value, answer)
	if err := s.AssignmentRepo.UpsertAnswer(answer); err != nil {
		return nil, err
	}
	monitoring.AnswersSubmitted.Inc()

	if a.InWindow(now) {
		if err := s.markStarted(a, now); err != nil {
			logger.Log.Warn("Failed to mark assignment started", zap.Uint("id", a.ID), zap.Error(err))
		}
	}
	return answer, nil
}

// LogActivity 追加一条行为事件，计数器在同一事务内更新
func (s *AssignmentService) LogActivity(id uint, requester *util.Claims, req *model.ActivityRequest) (*model.ActivityEvent, error) {
	a, err := s.loadAuthorized(id, requester)
	if err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", util.ErrInvalidActivity, req.Type)
	}

	event := &model.ActivityEvent{
		AssignmentID:   a.ID,
		Type:           req.Type,
		QuestionID:     req.QuestionID,
		Duration:       req.Duration,
		NavigationType: req.NavigationType,
		Page:           req.Page,
		OccurredAt:     s.now(),
	}
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		event.OccurredAt = *req.Timestamp
	}
	if len(req.Payload) > 0 && string(req.Payload) != "null" {
		event.Payload = datatypes.JSON(req.Payload)
		if event.Duration == nil {
			event.Duration = payloadDuration(req.Payload)
		}
	}

	if err := s.AssignmentRepo.AppendEvent(event); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAssignmentNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *AssignmentService) SaveProgress(id uint, requester *util.Claims, req *model.ProgressRequest) error {
	a, err := s.loadAuthorized(id, requester)
	if err != nil {
		return err
	}
	if a.Status == model.StatusCompleted {
		return util.ErrAssignmentCompleted
	}
	if req.CurrentPage < 0 || req.TotalPages < 0 || (req.TotalPages > 0 && req.CurrentPage > req.TotalPages) {
		return fmt.Errorf("%w: page %d of %d", util.ErrInvalidRequest, req.CurrentPage, req.TotalPages)
	}
	return s.AssignmentRepo.UpdateProgress(a.ID, req.CurrentPage, req.TotalPages)
}

// 完成

// CompleteSimple 调用方已给出最终分数，不做汇总
func (s *AssignmentService) CompleteSimple(id uint, score float64) (*model.Assignment, error) {
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("%w: score %.2f", util.ErrInvalidRequest, score)
	}
	a, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if a.Status == model.StatusCompleted {
		return nil, util.ErrAssignmentCompleted
	}

	rows, err := s.AssignmentRepo.Complete(a.ID, s.now(), map[string]interface{}{"score": score})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, util.ErrAssignmentCompleted
	}
	monitoring.AssignmentTransitions.WithLabelValues(string(model.StatusCompleted)).Inc()
	return s.find(id)
}

// computeReport 按题目定义实时重算全部作答
func (s *AssignmentService) computeReport(a *model.Assignment) (*scoring.Report, error) {
	answers, err := s.AssignmentRepo.Answers(a.ID)
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, util.ErrNoAnswers
	}

	questionIDs := make([]uint, 0, len(answers))
	for _, ans := range answers {
		questionIDs = append(questionIDs, ans.QuestionID)
	}
	questions, err := s.QuestionRepo.FindByIDs(questionIDs)
	if err != nil {
		return nil, err
	}

	var domainIDs, subdomainIDs []uint
	for _, q := range questions {
		if q.DomainID != nil {
			domainIDs = append(domainIDs, *q.DomainID)
		}
		if q.SubdomainID != nil {
			subdomainIDs = append(subdomainIDs, *q.SubdomainID)
		}
	}
	subdomains, err := s.QuestionRepo.Subdomains(subdomainIDs)
	if err != nil {
		return nil, err
	}
	for _, sd := range subdomains {
		domainIDs = append(domainIDs, sd.DomainID)
	}
	domains, err := s.QuestionRepo.DomainNames(domainIDs)
	if err != nil {
		return nil, err
	}

	report, err := scoring.Aggregate(answers, questions, scoring.Taxonomy{Domains: domains, Subdomains: subdomains})
	if err != nil {
		if errors.Is(err, scoring.ErrQuestionNotFound) {
			return nil, fmt.Errorf("%w: %v", util.ErrQuestionNotFound, err)
		}
		return nil, err
	}
	return report, nil
}

func scoreFields(report *scoring.Report) map[string]interface{} {
	return map[string]interface{}{
		"score":            float64(report.OverallPercentage),
		"domain_scores":    datatypes.JSONSlice[model.DomainScore](report.DomainScores),
		"subdomain_scores": datatypes.JSONSlice[model.SubdomainScore](report.SubdomainScores),
	}
}

func completionResult(a *model.Assignment) *model.CompletionResult {
	return &model.CompletionResult{
		AssignmentID:    a.ID,
		Status:          a.Status,
		Score:           a.Score,
		DomainScores:    append([]model.DomainScore{}, a.DomainScores...),
		SubdomainScores: append([]model.SubdomainScore{}, a.SubdomainScores...),
		EndTime:         a.EndTime,
	}
}

// CompleteWithAggregation 汇总全部作答并一次性提交状态与分数。
// 已完成的测评直接返回已保存的分数，不会再次写入。
func (s *AssignmentService) CompleteWithAggregation(id uint, requester *util.Claims) (*model.CompletionResult, error) {
	a, err := s.loadAuthorized(id, requester)
	if err != nil {
		return nil, err
	}
	if a.Status == model.StatusCompleted {
		result := completionResult(a)
		result.AlreadyCompleted = true
		return result, nil
	}

	now := s.now()
	if a.Status == model.StatusExpired || a.Expired(now) {
		return nil, util.ErrAssignmentExpired
	}

	report, err := s.computeReport(a)
	if err != nil {
		return nil, err
	}

	rows, err := s.AssignmentRepo.Complete(a.ID, now, scoreFields(report))
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, util.ErrAssignmentCompleted
	}
	monitoring.AssignmentTransitions.WithLabelValues(string(model.StatusCompleted)).Inc()

	logger.Log.Info("Assignment completed",
		zap.Uint("id", a.ID),
		zap.Int("score", report.OverallPercentage),
		zap.Int("domains", len(report.DomainScores)))

	return &model.CompletionResult{
		AssignmentID:    a.ID,
		Status:          model.StatusCompleted,
		Score:           float64(report.OverallPercentage),
		DomainScores:    report.DomainScores,
		SubdomainScores: report.SubdomainScores,
		EndTime:         &now,
	}, nil
}

// RegenerateScores 对已完成测评按当前题目定义重新汇总
func (s *AssignmentService) RegenerateScores(id uint) (*model.CompletionResult, error) {
	a, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if a.Status != model.StatusCompleted {
		return nil, util.ErrNotCompleted
	}

	report, err := s.computeReport(a)
	if err != nil {
		return nil, err
	}
	if err := s.AssignmentRepo.UpdateScores(a.ID, scoreFields(report)); err != nil {
		return nil, err
	}

	return &model.CompletionResult{
		AssignmentID:    a.ID,
		Status:          a.Status,
		Score:           float64(report.OverallPercentage),
		DomainScores:    report.DomainScores,
		SubdomainScores: report.SubdomainScores,
		EndTime:         a.EndTime,
	}, nil
}

// Delete 只允许删除 pending 状态的测评
func (s *AssignmentService) Delete(id uint) error {
	a, err := s.find(id)
	if err != nil {
		return err
	}
	if a.Status != model.StatusPending {
		return util.ErrNotPending
	}
	deleted, err := s.AssignmentRepo.DeletePending(id)
	if err != nil {
		return err
	}
	if !deleted {
		return util.ErrNotPending
	}
	return nil
}

// GetDetailedScores 已保存的分数、逐题得分与行为分析报告
func (s *AssignmentService) GetDetailedScores(id uint, requester *util.Claims) (*DetailedScores, error) {
	a, err := s.loadAuthorized(id, requester)
	if err != nil {
		return nil, err
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

	details := make([]model.AnswerScore, 0, len(answers))
	for i := range answers {
		ans := &answers[i]
		row := model.AnswerScore{
			QuestionID:    ans.QuestionID,
			ScoreObtained: ans.ScoreObtained,
			MaxScore:      ans.MaxScore,
		}
		value := scoring.FromModel(ans)
		if q, ok := questions[ans.QuestionID]; ok {
			row.QuestionText = q.Text
			row.SubdomainID = q.SubdomainID
			row.Response = scoring.Display(q, value)
			row.ScoreObtained, row.MaxScore = scoring.ScoreAnswer(q, value)
		} else {
			row.QuestionText = fmt.Sprintf("Question #%d", ans.QuestionID)
			row.Response = scoring.Display(&model.Question{}, value)
		}
		details = append(details, row)
	}

	events, err := s.AssignmentRepo.Events(a.ID)
	if err != nil {
		return nil, err
	}
	report := analytics.BuildReport(events, a.StartTime, a.EndTime, analytics.Counters{
		FullscreenViolations: a.FullscreenViolations,
		OffscreenTime:        a.OffscreenTime,
	})

	return &DetailedScores{
		CompletionResult: *completionResult(a),
		Answers:          details,
		Analytics:        report,
	}, nil
}

// payloadDuration 从事件负载中读取 duration（秒）
func payloadDuration(raw []byte) *float64 {
	var p struct {
		Duration *float64 `json:"duration"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	return p.Duration
}
