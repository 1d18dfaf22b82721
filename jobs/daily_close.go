package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

// SummaryReader is the slice of the ledger the close-out needs.
type SummaryReader interface {
	DailySummary(ctx context.Context, filter ledger.ReportFilter) (*ledger.DailySummary, error)
}

// DailyCloseJob logs the close-out totals of a business day.
type DailyCloseJob struct {
	Ledger   SummaryReader
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Location *time.Location
	clock    func() time.Time
}

// NewDailyCloseJob wires dependencies for the daily close handler.
func NewDailyCloseJob(reader SummaryReader, location *time.Location, logger *slog.Logger, metrics *jobmetrics.Metrics) *DailyCloseJob {
	if location == nil {
		location = time.Local
	}
	return &DailyCloseJob{
		Ledger:   reader,
		Logger:   logger,
		Metrics:  metrics,
		Location: location,
		clock:    time.Now,
	}
}

// Handle processes TaskDailyClose tasks.
func (j *DailyCloseJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("daily close: handler not configured")
	}
	var payload DailyClosePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("daily close: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := j.Close(ctx, payload.Date)
	if errors.Is(err, ledger.ErrValidation) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// Close summarises date, or the previous local day when date is empty.
func (j *DailyCloseJob) Close(ctx context.Context, date string) (summary *ledger.DailySummary, resultErr error) {
	if date == "" {
		date = j.now().In(j.Location).AddDate(0, 0, -1).Format(ledger.DateLayout)
	}

	tracker := j.Metrics.Track(dailyCloseMetric)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("date", date))
	logger.Info("starting daily close")

	summary, err := j.Ledger.DailySummary(ctx, ledger.ForDate(date))
	if err != nil {
		logger.Error("daily close failed", slog.Any("error", err))
		return nil, err
	}

	j.Metrics.SetClosedBills(dailyCloseMetric, summary.Bills)
	logger.Info("daily close completed",
		slog.Int64("bills", summary.Bills),
		slog.String("total", summary.Total.String()),
		slog.String("cash", summary.Cash.String()),
		slog.String("balance", summary.Balance.String()),
		slog.Int("items", len(summary.Items)),
	)
	return summary, nil
}

func (j *DailyCloseJob) now() time.Time {
	if j.clock == nil {
		return time.Now()
	}
	return j.clock()
}

func (j *DailyCloseJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
