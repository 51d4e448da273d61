package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/quota"
)

// OverdueSource lists quotas whose due date has passed without payment.
type OverdueSource interface {
	Overdue(ctx context.Context) ([]quota.Quota, error)
}

// OverdueScanJob publishes overdue receivable figures.
type OverdueScanJob struct {
	Source  OverdueSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(source OverdueSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Source:  source,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.LogLimit <= 0 {
		payload.LogLimit = 50
	}

	start := j.now()
	tracker := j.metrics().Track(TaskQuotaOverdueScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting overdue quota scan")

	overdue, err := j.Source.Overdue(ctx)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	totals := quota.Sum(overdue)
	for i, q := range overdue {
		if i >= payload.LogLimit {
			break
		}
		logger.Warn("quota overdue",
			slog.String("quota_id", q.ID),
			slog.String("document_number", q.DocumentNumber),
			slog.String("customer_id", customerLabel(q)),
			slog.String("amount", q.Amount.StringFixed(2)),
			slog.Time("due_date", q.DueDate),
		)
	}
	amount, _ := totals.Overdue.Float64()
	j.metrics().SetOverdue(totals.Count, amount)

	logger.Info("completed overdue quota scan",
		slog.Int("overdue", totals.Count),
		slog.String("amount", totals.Overdue.StringFixed(2)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskQuotaOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskQuotaOverdueScan))
}

func (j *OverdueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func customerLabel(q quota.Quota) string {
	if !q.CustomerID.Valid {
		return "walk-in"
	}
	return q.CustomerID.UUID.String()
}
