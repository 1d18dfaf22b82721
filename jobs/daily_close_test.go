package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/money"
)

type fakeSummaryReader struct {
	filters []ledger.ReportFilter
	summary *ledger.DailySummary
	err     error
}

func (f *fakeSummaryReader) DailySummary(_ context.Context, filter ledger.ReportFilter) (*ledger.DailySummary, error) {
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

func newTestJob(reader SummaryReader) *DailyCloseJob {
	job := NewDailyCloseJob(reader, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2024, 6, 2, 0, 5, 0, 0, time.UTC) }
	return job
}

func sampleSummary() *ledger.DailySummary {
	return &ledger.DailySummary{
		BillTotals: ledger.BillTotals{
			Bills:   3,
			Total:   money.MustParse("30"),
			Cash:    money.MustParse("60"),
			Balance: money.MustParse("30"),
		},
		Items: []ledger.ReportLine{{Name: "Burger", Qty: 6, Value: money.MustParse("30")}},
	}
}

func TestDailyCloseDefaultsToPreviousDay(t *testing.T) {
	reader := &fakeSummaryReader{summary: sampleSummary()}
	job := newTestJob(reader)

	task, err := NewDailyCloseTask(DailyClosePayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, reader.filters, 1)
	assert.Equal(t, ledger.ForDate("2024-06-01"), reader.filters[0])
}

func TestDailyCloseExplicitDate(t *testing.T) {
	reader := &fakeSummaryReader{summary: sampleSummary()}
	job := newTestJob(reader)

	summary, err := job.Close(context.Background(), "2024-05-31")
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Bills)
	assert.Equal(t, ledger.ForDate("2024-05-31"), reader.filters[0])
}

func TestDailyCloseBadPayloadSkipsRetry(t *testing.T) {
	job := newTestJob(&fakeSummaryReader{summary: sampleSummary()})

	err := job.Handle(context.Background(), asynq.NewTask(TaskDailyClose, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDailyCloseValidationErrorSkipsRetry(t *testing.T) {
	reader := &fakeSummaryReader{err: ledger.ValidationErrors{{Field: "date", Message: "must be a date in YYYY-MM-DD form"}}}
	job := newTestJob(reader)

	data, err := json.Marshal(DailyClosePayload{Date: "2024-06-01"})
	require.NoError(t, err)
	err = job.Handle(context.Background(), asynq.NewTask(TaskDailyClose, data))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDailyCloseStorageErrorIsRetried(t *testing.T) {
	storageErr := &ledger.StorageError{Op: "daily summary", Err: errors.New("connection reset")}
	job := newTestJob(&fakeSummaryReader{err: storageErr})

	task, err := NewDailyCloseTask(DailyClosePayload{Date: "2024-06-01"})
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)

	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrStorage)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestDailyCloseUnconfigured(t *testing.T) {
	var job *DailyCloseJob
	assert.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskDailyClose, nil)))
}
