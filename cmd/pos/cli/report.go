package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

// Exit codes shared by the pos subcommands.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Reporter is the part of the ledger the report command reads.
type Reporter interface {
	DailyReport(ctx context.Context, filter ledger.ReportFilter) ([]ledger.ReportLine, error)
	DailySummary(ctx context.Context, filter ledger.ReportFilter) (*ledger.DailySummary, error)
}

// ReportCLI prints item sales reports from the ledger.
type ReportCLI struct {
	ledger Reporter
}

// NewReportCLI constructs the report helper.
func NewReportCLI(reporter Reporter) (*ReportCLI, error) {
	if reporter == nil {
		return nil, errors.New("report cli: ledger is required")
	}
	return &ReportCLI{ledger: reporter}, nil
}

// ReportOptions defines the flags of the report command.
type ReportOptions struct {
	Date       string
	From       string
	To         string
	Summary    bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ReportCommand runs the report and prints it. Invalid filters exit with ExitUsage.
func (c *ReportCLI) ReportCommand(ctx context.Context, opts ReportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	filter := ledger.ReportFilter{
		Date: strings.TrimSpace(opts.Date),
		From: strings.TrimSpace(opts.From),
		To:   strings.TrimSpace(opts.To),
	}

	var (
		payload any
		err     error
	)
	if opts.Summary {
		var summary *ledger.DailySummary
		summary, err = c.ledger.DailySummary(ctx, filter)
		if err == nil {
			payload = summary
			if !opts.JSONOutput {
				renderSummaryHuman(opts.Stdout, summary)
			}
		}
	} else {
		var lines []ledger.ReportLine
		lines, err = c.ledger.DailyReport(ctx, filter)
		if err == nil {
			payload = lines
			if !opts.JSONOutput {
				renderReportHuman(opts.Stdout, filter, lines)
			}
		}
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "report: %v\n", err)
		if errors.Is(err, ledger.ErrValidation) {
			return ExitUsage
		}
		return ExitFailure
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(payload); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "report: encode json: %v\n", err)
			return ExitFailure
		}
	}
	return ExitOK
}

func describeFilter(filter ledger.ReportFilter) string {
	switch {
	case filter.Date != "":
		return filter.Date
	case filter.From != "" && filter.To != "":
		return filter.From + " to " + filter.To
	case filter.From != "":
		return "from " + filter.From
	case filter.To != "":
		return "until " + filter.To
	default:
		return "all time"
	}
}

func renderReportHuman(out io.Writer, filter ledger.ReportFilter, lines []ledger.ReportLine) {
	_, _ = fmt.Fprintf(out, "Item sales for %s\n", describeFilter(filter))
	if len(lines) == 0 {
		_, _ = fmt.Fprintln(out, "No sales recorded.")
		return
	}
	renderLines(out, lines)
}

func renderSummaryHuman(out io.Writer, summary *ledger.DailySummary) {
	_, _ = fmt.Fprintf(out, "Summary for %s\n", describeFilter(summary.Filter))
	_, _ = fmt.Fprintf(out, "Bills:   %d\n", summary.Bills)
	_, _ = fmt.Fprintf(out, "Total:   %s\n", summary.Total)
	_, _ = fmt.Fprintf(out, "Cash:    %s\n", summary.Cash)
	_, _ = fmt.Fprintf(out, "Change:  %s\n", summary.Balance)
	if len(summary.Items) == 0 {
		_, _ = fmt.Fprintln(out, "No sales recorded.")
		return
	}
	renderLines(out, summary.Items)
}

func renderLines(out io.Writer, lines []ledger.ReportLine) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "NAME\tQTY\tVALUE\t")
	for _, line := range lines {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t\n", line.Name, line.Qty, line.Value)
	}
	_ = tw.Flush()
}
