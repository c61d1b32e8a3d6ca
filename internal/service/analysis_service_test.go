package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/musama5293/NPI-Portal-sub001/internal/config"
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/musama5293/NPI-Portal-sub001/internal/repository"
	"github.com/musama5293/NPI-Portal-sub001/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newAnalysisService(t *testing.T, h *harness, url string, timeout time.Duration) *AnalysisService {
	t.Helper()
	client := NewPsychometricClient(&config.AnalysisConfig{BaseURL: url, Path: "/analyze", Timeout: timeout})
	return NewAnalysisService(
		h.svc.AssignmentRepo,
		h.svc.QuestionRepo,
		h.svc.CandidateRepo,
		repository.NewAnalysisRepository(h.db),
		client,
		nil,
		&LocalStorageProvider{Root: t.TempDir()},
	)
}

func completedAssignment(t *testing.T, h *harness, id uint) {
	t.Helper()
	h.create(t, id)
	h.answerWorkedExample(t, id)
	_, err := h.svc.CompleteWithAggregation(id, h.candidate())
	require.NoError(t, err)
}

func TestAnalysisService_Generate(t *testing.T) {
	h := newHarness(t)
	completedAssignment(t, h, 40)

	var got AnalysisRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"summary":"steady decision maker"}`)
	}))
	defer srv.Close()

	svc := newAnalysisService(t, h, srv.URL, time.Minute)

	view, err := svc.Generate(context.Background(), 40, h.admin())
	require.NoError(t, err)
	assert.Equal(t, 1, view.DomainsAnalyzed)
	assert.Equal(t, 2, view.QuestionsAnalyzed)
	assert.JSONEq(t, `{"summary":"steady decision maker"}`, string(view.Analysis))
	assert.NotEmpty(t, view.ArchiveURL)

	assert.Equal(t, "40", got.SessionID)
	assert.Equal(t, "Casey Candidate", got.CandidateName)
	require.Len(t, got.Domains, 1)
	assert.Equal(t, "Leadership", got.Domains[0].Domain)
	assert.Equal(t, 80, got.Domains[0].Score)
	require.Len(t, got.Domains[0].Subdomains, 2)
	require.Len(t, got.Responses, 2)
	assert.Equal(t, AnalysisResponse{Question: "I make decisions quickly", Subdomain: "DECISIVENESS", Response: "Agree"}, got.Responses[0])
	assert.Equal(t, "EMPATHY", got.Responses[1].Subdomain)
	assert.Equal(t, "Disagree", got.Responses[1].Response)

	stored, err := svc.Get(40, h.candidate())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.DomainsAnalyzed)
	assert.Equal(t, 2, stored.QuestionsAnalyzed)
	assert.JSONEq(t, string(view.Analysis), string(stored.Analysis))
}

func TestAnalysisService_RequiresCompletion(t *testing.T) {
	h := newHarness(t)
	h.create(t, 41)

	svc := newAnalysisService(t, h, "http://127.0.0.1:1", time.Second)
	_, err := svc.Generate(context.Background(), 41, h.admin())
	assert.ErrorIs(t, err, util.ErrNotCompleted)

	_, err = svc.Get(41, h.admin())
	assert.ErrorIs(t, err, util.ErrAnalysisNotFound)
}

func TestAnalysisService_FailureKinds(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, "responses must not be empty")
	}))
	defer rejecting.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name    string
		url     string
		timeout time.Duration
		kind    string
		status  int
		body    string
	}{
		{"timeout", slow.URL, 100 * time.Millisecond, util.AnalysisTimeout, 0, ""},
		{"remote error", rejecting.URL, time.Minute, util.AnalysisRemote, http.StatusUnprocessableEntity, "responses must not be empty"},
		{"connection refused", closedURL, time.Minute, util.AnalysisConnection, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			completedAssignment(t, h, 42)
			svc := newAnalysisService(t, h, tt.url, tt.timeout)

			_, err := svc.Generate(context.Background(), 42, h.admin())
			var ae *util.AnalysisError
			require.True(t, errors.As(err, &ae), "unexpected error %v", err)
			assert.Equal(t, tt.kind, ae.Kind)
			assert.Equal(t, tt.status, ae.StatusCode)
			assert.Equal(t, tt.body, ae.Body)

			_, err = svc.Get(42, h.admin())
			assert.ErrorIs(t, err, util.ErrAnalysisNotFound)
		})
	}
}

func TestAnalysisService_LargeResponses(t *testing.T) {
	large := `{"narrative":"` + strings.Repeat("a", 2<<20) + `"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, large)
	}))
	defer srv.Close()

	t.Run("stored whole", func(t *testing.T) {
		h := newHarness(t)
		completedAssignment(t, h, 43)
		svc := newAnalysisService(t, h, srv.URL, time.Minute)

		_, err := svc.Generate(context.Background(), 43, h.admin())
		require.NoError(t, err)

		stored, err := svc.Get(43, h.admin())
		require.NoError(t, err)
		require.Len(t, stored.Analysis, len(large))
		var doc map[string]string
		require.NoError(t, json.Unmarshal(stored.Analysis, &doc))
		assert.Len(t, doc["narrative"], 2<<20)
	})

	t.Run("over the limit is rejected", func(t *testing.T) {
		h := newHarness(t)
		completedAssignment(t, h, 44)
		svc := newAnalysisService(t, h, srv.URL, time.Minute)
		svc.Client = NewPsychometricClient(&config.AnalysisConfig{
			BaseURL:          srv.URL,
			Path:             "/analyze",
			Timeout:          time.Minute,
			MaxResponseBytes: 1 << 20,
		})

		_, err := svc.Generate(context.Background(), 44, h.admin())
		var ae *util.AnalysisError
		require.True(t, errors.As(err, &ae), "unexpected error %v", err)
		assert.Equal(t, util.AnalysisRemote, ae.Kind)
		assert.Equal(t, http.StatusOK, ae.StatusCode)
		assert.Contains(t, ae.Body, "exceeds")

		_, err = svc.Get(44, h.admin())
		assert.ErrorIs(t, err, util.ErrAnalysisNotFound)
	})
}

func TestAnalysisService_ConcurrentCallsShareOneRequest(t *testing.T) {
	h := newHarness(t)
	completedAssignment(t, h, 43)

	var hits int32
	received := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		received <- struct{}{}
		<-release
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	svc := newAnalysisService(t, h, srv.URL, time.Minute)

	var wg sync.WaitGroup
	views := make([]*AnalysisView, 2)
	errs := make([]error, 2)
	call := func(i int) {
		defer wg.Done()
		views[i], errs[i] = svc.Generate(context.Background(), 43, h.admin())
	}

	wg.Add(1)
	go call(0)
	<-received

	wg.Add(1)
	go call(1)
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Same(t, views[0], views[1])
}

func TestAnalysisService_LegacyRecordCounts(t *testing.T) {
	h := newHarness(t)
	completedAssignment(t, h, 44)
	svc := newAnalysisService(t, h, "http://127.0.0.1:1", time.Second)

	require.NoError(t, svc.AnalysisRepo.Save(&model.AnalysisResult{
		AssignmentID: 44,
		RawResponse:  datatypes.JSON(`{"legacy":true}`),
		GeneratedAt:  time.Now(),
	}))

	view, err := svc.Get(44, h.admin())
	require.NoError(t, err)
	assert.Equal(t, 1, view.DomainsAnalyzed)
	assert.Equal(t, 2, view.QuestionsAnalyzed)
}
