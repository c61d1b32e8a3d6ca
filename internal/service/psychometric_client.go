package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/musama5293/NPI-Portal-sub001/internal/config"
	"github.com/musama5293/NPI-Portal-sub001/internal/util"
	"github.com/musama5293/NPI-Portal-sub001/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// 错误响应只用于报错，截断即可
	maxErrorBody       = 1 << 20
	defaultMaxResponse = 32 << 20
)

type AnalysisSubdomain struct {
	Subdomain string `json:"subdomain"`
	Score     int    `json:"score"`
}

type AnalysisDomain struct {
	Domain     string              `json:"domain"`
	Score      int                 `json:"score"`
	Subdomains []AnalysisSubdomain `json:"subdomains"`
}

type AnalysisResponse struct {
	Question  string `json:"question"`
	Subdomain string `json:"subdomain"`
	Response  string `json:"response"`
}

// AnalysisRequest 发送给外部心理测评分析服务的请求体
type AnalysisRequest struct {
	SessionID     string             `json:"session_id"`
	CandidateName string             `json:"candidate_name"`
	Domains       []AnalysisDomain   `json:"domains"`
	Responses     []AnalysisResponse `json:"responses"`
}

// Analyzer 外部分析服务
type Analyzer interface {
	Analyze(ctx context.Context, req *AnalysisRequest) ([]byte, error)
	Timeout() time.Duration
}

// PsychometricClient 远端做模型推理，可能持续数分钟，因此使用独立的长超时
type PsychometricClient struct {
	mu          sync.RWMutex
	url         string
	apiKey      string
	timeout     time.Duration
	maxResponse int64
	client      *http.Client
}

func NewPsychometricClient(cfg *config.AnalysisConfig) *PsychometricClient {
	c := &PsychometricClient{client: &http.Client{}}
	c.Configure(cfg)
	return c
}

// Configure 配置热更新时调用
func (c *PsychometricClient) Configure(cfg *config.AnalysisConfig) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	maxResponse := cfg.MaxResponseBytes
	if maxResponse <= 0 {
		maxResponse = defaultMaxResponse
	}
	c.mu.Lock()
	c.maxResponse = maxResponse
	c.url = strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Path, "/")
	c.apiKey = cfg.APIKey
	c.timeout = timeout
	c.mu.Unlock()
}

func (c *PsychometricClient) Timeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeout
}

func (c *PsychometricClient) Analyze(ctx context.Context, req *AnalysisRequest) ([]byte, error) {
	c.mu.RLock()
	url, apiKey, timeout, maxResponse := c.url, c.apiKey, c.timeout, c.maxResponse
	c.mu.RUnlock()

	ctx, span := tracing.StartSpan(ctx, "psychometric.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("analysis.session_id", req.SessionID),
		attribute.Int("analysis.domains", len(req.Domains)),
		attribute.Int("analysis.responses", len(req.Responses)),
	)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		aerr := classify(ctx, err)
		span.RecordError(aerr)
		span.SetStatus(codes.Error, aerr.Kind)
		return nil, aerr
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	limit := int64(maxErrorBody)
	if success {
		limit = maxResponse
	}
	// 多读一个字节用于判断是否超限
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		aerr := classify(ctx, err)
		span.RecordError(aerr)
		span.SetStatus(codes.Error, aerr.Kind)
		return nil, aerr
	}
	if int64(len(raw)) > limit {
		if success {
			aerr := &util.AnalysisError{
				Kind:       util.AnalysisRemote,
				StatusCode: resp.StatusCode,
				Body:       fmt.Sprintf("response body exceeds %d bytes", limit),
			}
			span.SetStatus(codes.Error, aerr.Kind)
			return nil, aerr
		}
		raw = raw[:limit]
	}

	if !success {
		aerr := &util.AnalysisError{Kind: util.AnalysisRemote, StatusCode: resp.StatusCode, Body: string(raw)}
		span.SetStatus(codes.Error, aerr.Kind)
		return nil, aerr
	}

	// 非 JSON 响应按字符串保存
	if !json.Valid(raw) {
		return json.Marshal(string(raw))
	}
	return raw, nil
}

func classify(ctx context.Context, err error) *util.AnalysisError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &util.AnalysisError{Kind: util.AnalysisTimeout, Err: err}
	}
	return &util.AnalysisError{Kind: util.AnalysisConnection, Err: fmt.Errorf("request failed: %w", err)}
}
