package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/money"
	"github.com/odyssey-erp/odyssey-pos/internal/schema"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

type stubReporter struct {
	lines   []ledger.ReportLine
	summary *ledger.DailySummary
	err     error
	filter  ledger.ReportFilter
}

func (s *stubReporter) DailyReport(ctx context.Context, filter ledger.ReportFilter) ([]ledger.ReportLine, error) {
	s.filter = filter
	return s.lines, s.err
}

func (s *stubReporter) DailySummary(ctx context.Context, filter ledger.ReportFilter) (*ledger.DailySummary, error) {
	s.filter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

func TestReportCommandJSON(t *testing.T) {
	reporter := &stubReporter{lines: []ledger.ReportLine{
		{Name: "Burger", Qty: 6, Value: money.MustParse("30")},
		{Name: "Cola", Qty: 2, Value: money.MustParse("3")},
	}}
	cli, err := NewReportCLI(reporter)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.ReportCommand(context.Background(), ReportOptions{
		Date:       " 2024-05-01 ",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, ExitOK, exitCode)
	require.Empty(t, stderr.String())
	require.Equal(t, ledger.ReportFilter{Date: "2024-05-01"}, reporter.filter)

	var lines []ledger.ReportLine
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &lines))
	require.Len(t, lines, 2)
	require.Equal(t, "Burger", lines[0].Name)
	require.Equal(t, int64(6), lines[0].Qty)
	require.Equal(t, money.MustParse("30"), lines[0].Value)
}

func TestReportCommandHuman(t *testing.T) {
	reporter := &stubReporter{lines: []ledger.ReportLine{
		{Name: "Burger", Qty: 6, Value: money.MustParse("30")},
	}}
	cli, err := NewReportCLI(reporter)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	exitCode := cli.ReportCommand(context.Background(), ReportOptions{From: "2024-05-01", To: "2024-05-07", Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, exitCode)
	require.Contains(t, stdout.String(), "Item sales for 2024-05-01 to 2024-05-07")
	require.Contains(t, stdout.String(), "Burger")
	require.Contains(t, stdout.String(), "30.00")
}

func TestReportCommandEmpty(t *testing.T) {
	cli, err := NewReportCLI(&stubReporter{})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	exitCode := cli.ReportCommand(context.Background(), ReportOptions{Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, exitCode)
	require.Contains(t, stdout.String(), "all time")
	require.Contains(t, stdout.String(), "No sales recorded.")
}

func TestReportCommandSummary(t *testing.T) {
	reporter := &stubReporter{summary: &ledger.DailySummary{
		BillTotals: ledger.BillTotals{Bills: 3, Total: money.MustParse("33"), Cash: money.MustParse("40"), Balance: money.MustParse("7")},
		Filter:     ledger.ForDate("2024-05-01"),
		Items:      []ledger.ReportLine{{Name: "Burger", Qty: 6, Value: money.MustParse("30")}},
	}}
	cli, err := NewReportCLI(reporter)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	exitCode := cli.ReportCommand(context.Background(), ReportOptions{Date: "2024-05-01", Summary: true, JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, exitCode)

	var summary ledger.DailySummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, int64(3), summary.Bills)
	require.Equal(t, money.MustParse("7"), summary.Balance)
	require.Len(t, summary.Items, 1)

	stdout.Reset()
	exitCode = cli.ReportCommand(context.Background(), ReportOptions{Date: "2024-05-01", Summary: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, exitCode)
	require.Contains(t, stdout.String(), "Bills:   3")
	require.Contains(t, stdout.String(), "Change:  7.00")
}

func TestReportCommandErrors(t *testing.T) {
	validation := ledger.ValidationErrors{{Field: "date", Message: "must be YYYY-MM-DD"}}
	cli, err := NewReportCLI(&stubReporter{err: validation})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	exitCode := cli.ReportCommand(context.Background(), ReportOptions{Date: "yesterday", Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, ExitUsage, exitCode)
	require.Contains(t, stderr.String(), "report: ")
	require.Contains(t, stderr.String(), "date: must be YYYY-MM-DD")

	cli, err = NewReportCLI(&stubReporter{err: errors.New("connection refused")})
	require.NoError(t, err)
	stderr.Reset()
	exitCode = cli.ReportCommand(context.Background(), ReportOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, ExitFailure, exitCode)
	require.Contains(t, stderr.String(), "connection refused")

	_, err = NewReportCLI(nil)
	require.Error(t, err)
}

type stubSchema struct {
	stored      int
	err         error
	initialized []int
	rebuilt     []int
}

func (s *stubSchema) Initialize(ctx context.Context, version int) error {
	if s.err != nil {
		return s.err
	}
	s.initialized = append(s.initialized, version)
	s.stored = version
	return nil
}

func (s *stubSchema) Rebuild(ctx context.Context, version int) error {
	if s.err != nil {
		return s.err
	}
	s.rebuilt = append(s.rebuilt, version)
	s.stored = version
	return nil
}

func (s *stubSchema) Version(ctx context.Context) (int, error) {
	return s.stored, s.err
}

func TestSchemaCommandInitAndVersion(t *testing.T) {
	manager := &stubSchema{}
	cli, err := NewSchemaCLI(manager)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	exitCode := cli.SchemaCommand(context.Background(), SchemaOptions{Action: SchemaVersion, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, exitCode)
	require.Contains(t, stdout.String(), "not initialised")

	stdout.Reset()
	exitCode = cli.SchemaCommand(context.Background(), SchemaOptions{Action: SchemaInit, Version: 1, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, exitCode)
	require.Equal(t, []int{1}, manager.initialized)
	require.Contains(t, stdout.String(), "version 1")

	stdout.Reset()
	exitCode = cli.SchemaCommand(context.Background(), SchemaOptions{Action: SchemaVersion, JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, exitCode)
	var status SchemaStatus
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &status))
	require.Equal(t, SchemaStatus{Action: SchemaVersion, Version: 1}, status)
}

func TestSchemaCommandRebuildNeedsForce(t *testing.T) {
	manager := &stubSchema{stored: 1}
	cli, err := NewSchemaCLI(manager)
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	exitCode := cli.SchemaCommand(context.Background(), SchemaOptions{Action: SchemaRebuild, Version: 2, Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, ExitUsage, exitCode)
	require.Contains(t, stderr.String(), "--force")
	require.Empty(t, manager.rebuilt)

	exitCode = cli.SchemaCommand(context.Background(), SchemaOptions{Action: SchemaRebuild, Version: 2, Force: true, Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, exitCode)
	require.Equal(t, []int{2}, manager.rebuilt)
}

func TestSchemaCommandErrors(t *testing.T) {
	cli, err := NewSchemaCLI(&stubSchema{err: fmt.Errorf("%w: stored 3, requested 1", schema.ErrDowngrade)})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	exitCode := cli.SchemaCommand(context.Background(), SchemaOptions{Action: SchemaInit, Version: 1, Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, ExitUsage, exitCode)
	require.Contains(t, stderr.String(), "schema init:")

	exitCode = cli.SchemaCommand(context.Background(), SchemaOptions{Action: SchemaInit, Version: 0, Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitUsage, exitCode)

	exitCode = cli.SchemaCommand(context.Background(), SchemaOptions{Action: "drop", Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitUsage, exitCode)

	cli, err = NewSchemaCLI(&stubSchema{err: errors.New("database offline")})
	require.NoError(t, err)
	exitCode = cli.SchemaCommand(context.Background(), SchemaOptions{Action: SchemaVersion, Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitFailure, exitCode)
}

type stubEnqueuer struct {
	tasks  []*asynq.Task
	err    error
	closed bool
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: jobs.QueueDefault, Type: task.Type()}, nil
}

func (s *stubEnqueuer) Close() error {
	s.closed = true
	return nil
}

type stubInspector struct {
	info   *asynq.QueueInfo
	err    error
	closed bool
}

func (s *stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func (s *stubInspector) Close() error {
	s.closed = true
	return nil
}

func TestJobsCommandClose(t *testing.T) {
	client := &stubEnqueuer{}
	cli := newJobsCLI(client, &stubInspector{})

	stdout := new(bytes.Buffer)
	exitCode := cli.JobsCommand(context.Background(), JobsOptions{Action: JobsTrigger, Date: "2024-05-01", JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, exitCode)
	require.Len(t, client.tasks, 1)
	require.Equal(t, jobs.TaskDailyClose, client.tasks[0].Type())

	var payload jobs.DailyClosePayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	require.Equal(t, "2024-05-01", payload.Date)

	var result TriggerResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	require.Equal(t, "task-1", result.TaskID)
	require.False(t, result.Existing)
}

func TestJobsCommandCloseAlreadyQueued(t *testing.T) {
	cli := newJobsCLI(&stubEnqueuer{err: fmt.Errorf("%w", asynq.ErrTaskIDConflict)}, &stubInspector{})

	stdout := new(bytes.Buffer)
	exitCode := cli.JobsCommand(context.Background(), JobsOptions{Action: JobsTrigger, Date: "2024-05-01", Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, exitCode)
	require.Contains(t, stdout.String(), "already queued")
}

func TestJobsCommandCloseFailure(t *testing.T) {
	cli := newJobsCLI(&stubEnqueuer{err: errors.New("redis down")}, &stubInspector{})

	stderr := new(bytes.Buffer)
	exitCode := cli.JobsCommand(context.Background(), JobsOptions{Action: JobsTrigger, Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, ExitFailure, exitCode)
	require.Contains(t, stderr.String(), "jobs trigger: redis down")

	exitCode = cli.JobsCommand(context.Background(), JobsOptions{Action: JobsTrigger, Date: "01/05/2024", Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitFailure, exitCode)
}

func TestJobsCommandQueue(t *testing.T) {
	inspector := &stubInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 2, Active: 1, Scheduled: 4, Retry: 1}}
	client := &stubEnqueuer{}
	cli := newJobsCLI(client, inspector)

	stdout := new(bytes.Buffer)
	exitCode := cli.JobsCommand(context.Background(), JobsOptions{Action: JobsInspect, JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitOK, exitCode)

	var stats QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	require.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 2, Active: 1, Scheduled: 4, Retry: 1}, stats)

	require.NoError(t, cli.Close())
	require.True(t, client.closed)
	require.True(t, inspector.closed)
}

func TestJobsCommandUnknownAction(t *testing.T) {
	cli := newJobsCLI(&stubEnqueuer{}, &stubInspector{})
	exitCode := cli.JobsCommand(context.Background(), JobsOptions{Action: "purge", Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitUsage, exitCode)
}
