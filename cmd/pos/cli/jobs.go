package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/jobs"
)

// Enqueuer submits tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Inspector reads queue state. *asynq.Inspector satisfies it.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

func newJobsCLI(client Enqueuer, inspector Inspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerDailyClose enqueues a close-out for date, or for yesterday when date is empty.
func (c *JobsCLI) TriggerDailyClose(ctx context.Context, date string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, err := jobs.NewDailyCloseTask(jobs.DailyClosePayload{Date: date})
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Paused    bool   `json:"paused"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	if err := ctx.Err(); err != nil {
		return QueueStats{}, err
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
		stats.Paused = info.Paused
	}
	return stats, nil
}

// Jobs actions.
const (
	JobsTrigger = "trigger"
	JobsInspect = "inspect"
)

// JobsOptions defines the flags of the jobs command.
type JobsOptions struct {
	Action     string
	Date       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// TriggerResult is the JSON output of a trigger.
type TriggerResult struct {
	TaskID   string `json:"task_id"`
	Queue    string `json:"queue"`
	Date     string `json:"date,omitempty"`
	Existing bool   `json:"existing"`
}

// JobsCommand triggers a daily close or prints queue stats.
// A close that is already queued for the same date is not an error.
func (c *JobsCLI) JobsCommand(ctx context.Context, opts JobsOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	var payload any
	switch opts.Action {
	case JobsTrigger:
		info, err := c.TriggerDailyClose(ctx, opts.Date)
		result := TriggerResult{Queue: jobs.QueueDefault, Date: opts.Date}
		switch {
		case errors.Is(err, asynq.ErrTaskIDConflict):
			result.Existing = true
			result.TaskID = "daily-close:" + opts.Date
		case err != nil:
			_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
			return ExitFailure
		default:
			result.TaskID = info.ID
			result.Queue = info.Queue
		}
		payload = result
		if !opts.JSONOutput {
			target := opts.Date
			if target == "" {
				target = "previous day"
			}
			if result.Existing {
				_, _ = fmt.Fprintf(opts.Stdout, "Daily close for %s is already queued.\n", target)
			} else {
				_, _ = fmt.Fprintf(opts.Stdout, "Queued daily close for %s as %s on %s.\n", target, result.TaskID, result.Queue)
			}
		}
	case JobsInspect:
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs inspect: %v\n", err)
			return ExitFailure
		}
		payload = stats
		if !opts.JSONOutput {
			_, _ = fmt.Fprintf(opts.Stdout, "Queue %s: pending=%d active=%d scheduled=%d retry=%d archived=%d paused=%t\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived, stats.Paused)
		}
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "jobs: unknown action %q (expected trigger or inspect)\n", opts.Action)
		return ExitUsage
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(payload); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs: encode json: %v\n", err)
			return ExitFailure
		}
	}
	return ExitOK
}
