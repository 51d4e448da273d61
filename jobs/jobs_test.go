package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/quota"
)

type stubOverdue struct {
	quotas []quota.Quota
	err    error
}

func (s stubOverdue) Overdue(context.Context) ([]quota.Quota, error) {
	return s.quotas, s.err
}

type stubCleaner struct {
	removed   int64
	err       error
	retention time.Duration
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.retention = olderThan
	return s.removed, s.err
}

func overdueQuota(amount string) quota.Quota {
	return quota.Quota{
		ID:         uuid.NewString() + "-1",
		CustomerID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Amount:     decimal.RequireFromString(amount),
		DueDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:     quota.StatusOverdue,
	}
}

func TestOverdueScanPublishesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := NewOverdueScanJob(stubOverdue{quotas: []quota.Quota{overdueQuota("30000"), overdueQuota("12500.50")}}, nil, metrics)

	task, err := NewOverdueScanTask(1)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	expected := `
# HELP ledger_quotas_overdue Number of overdue credit quotas found by the last scan.
# TYPE ledger_quotas_overdue gauge
ledger_quotas_overdue 2
# HELP ledger_quotas_overdue_amount Sum of overdue credit quota amounts found by the last scan.
# TYPE ledger_quotas_overdue_amount gauge
ledger_quotas_overdue_amount 42500.5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ledger_quotas_overdue", "ledger_quotas_overdue_amount"))
	count, err := testutil.GatherAndCount(reg, "ledger_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOverdueScanFailureIsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := NewOverdueScanJob(stubOverdue{err: errors.New("db down")}, nil, metrics)

	err := job.Handle(context.Background(), asynq.NewTask(TaskQuotaOverdueScan, nil))
	require.Error(t, err)

	expected := `
# HELP ledger_jobs_failures_total Total failures observed for background jobs.
# TYPE ledger_jobs_failures_total counter
ledger_jobs_failures_total{job="quota:overdue-scan"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ledger_jobs_failures_total"))
}

func TestOverdueScanRejectsBadPayload(t *testing.T) {
	job := NewOverdueScanJob(stubOverdue{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Handle(context.Background(), asynq.NewTask(TaskQuotaOverdueScan, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestIdempotencyCleanup(t *testing.T) {
	reg := prometheus.NewRegistry()
	cleaner := &stubCleaner{removed: 7}
	job := NewIdempotencyCleanupJob(cleaner, nil, jobmetrics.NewMetrics(reg))

	task, err := NewIdempotencyCleanupTask(72 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 72*time.Hour, cleaner.retention)

	expected := `
# HELP ledger_idempotency_keys_cleaned_total Idempotency keys removed after their retention period.
# TYPE ledger_idempotency_keys_cleaned_total counter
ledger_idempotency_keys_cleaned_total 7
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ledger_idempotency_keys_cleaned_total"))
}

func TestIdempotencyCleanupSkipsZeroRetention(t *testing.T) {
	job := NewIdempotencyCleanupJob(&stubCleaner{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte(`{"retention_hours":0}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}

type stubEnqueuer struct {
	err   error
	calls int
}

func (s *stubEnqueuer) EnqueueOverdueScan(context.Context, int) (*asynq.TaskInfo, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func TestTriggerOverdueScan(t *testing.T) {
	enq := &stubEnqueuer{}
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).WithEnqueuer(enq).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/overdue-scan", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"task_id":"task-1"}`, rec.Body.String())

	enq.err = asynq.ErrDuplicateTask
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/overdue-scan", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 2, enq.calls)
}
