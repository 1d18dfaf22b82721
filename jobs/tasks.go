package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDailyClose summarises one business day of bills.
	TaskDailyClose = "pos:daily-close"

	dailyCloseMetric = "daily_close"
)

// DailyClosePayload selects the business day to close. An empty Date means the
// day before the worker's current local date.
type DailyClosePayload struct {
	Date string `json:"date,omitempty"`
}

// NewDailyCloseTask constructs an Asynq task. Tasks for an explicit date carry a
// task id so a day is not queued twice.
func NewDailyCloseTask(payload DailyClosePayload) (*asynq.Task, error) {
	if payload.Date != "" {
		if _, err := time.Parse("2006-01-02", payload.Date); err != nil {
			return nil, fmt.Errorf("daily close: invalid date %q: %w", payload.Date, err)
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(5), asynq.Timeout(2 * time.Minute)}
	if payload.Date != "" {
		opts = append(opts, asynq.TaskID("daily-close:"+payload.Date))
	}
	return asynq.NewTask(TaskDailyClose, data, opts...), nil
}
