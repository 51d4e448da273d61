package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuotaOverdueScan derives credit quotas and reports the overdue ones.
	TaskQuotaOverdueScan = "quota:overdue-scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// OverdueScanPayload configures a scan run.
type OverdueScanPayload struct {
	// LogLimit caps how many overdue quotas are logged individually.
	LogLimit int `json:"log_limit"`
}

// IdempotencyCleanupPayload configures a cleanup run.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewOverdueScanTask constructs the overdue quota scan task.
func NewOverdueScanTask(logLimit int) (*asynq.Task, error) {
	data, err := json.Marshal(OverdueScanPayload{LogLimit: logLimit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotaOverdueScan, data), nil
}

// NewIdempotencyCleanupTask constructs the cleanup task for the given retention.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	hours := int(retention / time.Hour)
	if hours <= 0 {
		hours = 1
	}
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: hours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
