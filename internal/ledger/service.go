package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultStorageTimeout bounds a storage call when ServiceConfig leaves it unset.
const DefaultStorageTimeout = 5 * time.Second

// ServiceConfig carries the collaborators of a Service. Zero fields get defaults.
type ServiceConfig struct {
	Location       *time.Location
	StorageTimeout time.Duration
	Numberer       BillNumberer
	Logger         *slog.Logger
	Metrics        *Metrics
	Now            func() time.Time
}

// Service implements bill recording and reporting.
type Service struct {
	repo     Repository
	location *time.Location
	timeout  time.Duration
	numberer BillNumberer
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time

	writeMu sync.Mutex
	// commits counts recorded bills; it is part of every coalescing key.
	commits atomic.Uint64
	reports singleflight.Group
}

// NewService constructs a ledger service.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	s := &Service{
		repo:     repo,
		location: cfg.Location,
		timeout:  cfg.StorageTimeout,
		numberer: cfg.Numberer,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.timeout <= 0 {
		s.timeout = DefaultStorageTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.numberer == nil {
		s.numberer = clockNumberer{now: s.now}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// RecordBill validates req, derives line totals and the change balance, and stores
// the bill with all of its items in one transaction. On any failure nothing is
// stored and the error says why.
func (s *Service) RecordBill(ctx context.Context, req RecordBillRequest) (*Bill, error) {
	bill, err := prepareBill(req)
	if err != nil {
		return nil, s.recordFailed(ctx, err, len(req.Items))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now().In(s.location)
	bill.Date = now.Format(DateLayout)
	bill.Time = now.Format(TimeLayout)
	if bill.BillNo == 0 {
		bill.BillNo = s.numberer.Next()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stored Bill
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockLedger(ctx); err != nil {
			return err
		}
		stored = *bill
		stored.Items = slices.Clone(bill.Items)

		id, err := tx.InsertBill(ctx, stored)
		if err != nil {
			return err
		}
		stored.ID = id
		for i := range stored.Items {
			stored.Items[i].BillID = id
			itemID, err := tx.InsertBillItem(ctx, stored.Items[i])
			if err != nil {
				return err
			}
			stored.Items[i].ID = itemID
		}
		return nil
	})
	if err != nil {
		return nil, s.recordFailed(ctx, storageError("record bill", true, err), len(req.Items))
	}

	s.commits.Add(1)
	s.metrics.billRecorded()
	s.logger.InfoContext(ctx, "bill recorded",
		slog.Int64("bill_id", stored.ID),
		slog.Int64("bill_no", stored.BillNo),
		slog.Int("items", len(stored.Items)),
		slog.String("total", stored.Total.String()),
	)
	return &stored, nil
}

func (s *Service) recordFailed(ctx context.Context, err error, items int) error {
	kind := errorKind(err)
	s.metrics.billFailed(kind)
	s.logger.ErrorContext(ctx, "bill not recorded",
		slog.String("kind", kind),
		slog.Int("items", items),
		slog.Any("error", err),
	)
	return err
}

// DailyReport groups bill items by name over filter, summing quantity and line totals.
// Lines are sorted by name. An empty filter covers all time.
func (s *Service) DailyReport(ctx context.Context, filter ReportFilter) ([]ReportLine, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	start := time.Now()
	defer s.metrics.observeReport("daily", start)

	v, err := s.coalesce(ctx, "daily", filter.key(), func(ctx context.Context) (any, error) {
		lines, err := s.repo.DailyReport(ctx, filter)
		if err != nil {
			return nil, storageError("daily report", false, err)
		}
		return lines, nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "daily report failed", slog.Any("error", err))
		return nil, err
	}
	return sortedLines(v.([]ReportLine)), nil
}

// DailySummary returns header totals and item lines for filter, both read from the
// same snapshot.
func (s *Service) DailySummary(ctx context.Context, filter ReportFilter) (*DailySummary, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	start := time.Now()
	defer s.metrics.observeReport("summary", start)

	v, err := s.coalesce(ctx, "summary", filter.key(), func(ctx context.Context) (any, error) {
		summary := &DailySummary{Filter: filter}
		err := s.repo.WithSnapshot(ctx, func(ctx context.Context, r Reader) error {
			totals, err := r.BillTotals(ctx, filter)
			if err != nil {
				return err
			}
			lines, err := r.DailyReport(ctx, filter)
			if err != nil {
				return err
			}
			summary.BillTotals = totals
			summary.Items = lines
			return nil
		})
		if err != nil {
			return nil, storageError("daily summary", false, err)
		}
		return summary, nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "daily summary failed", slog.Any("error", err))
		return nil, err
	}
	shared := v.(*DailySummary)
	out := *shared
	out.Items = sortedLines(shared.Items)
	return &out, nil
}

// GetBill loads one bill with its items.
func (s *Service) GetBill(ctx context.Context, id int64) (*Bill, error) {
	if id <= 0 {
		return nil, ValidationErrors{{Field: "id", Message: "must be a positive integer"}}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, storageError("get bill", false, err)
	}
	return bill, nil
}

// ListBills returns bill headers matching req, newest first.
func (s *Service) ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, error) {
	req, err := validateListRequest(req)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	bills, err := s.repo.ListBills(ctx, req)
	if err != nil {
		return nil, storageError("list bills", false, err)
	}
	return bills, nil
}

// Today returns the current local calendar date.
func (s *Service) Today() string {
	return s.now().In(s.location).Format(DateLayout)
}

// coalesce shares one in-flight read among identical concurrent callers. A read
// that began before RecordBill returned is never shared with a caller arriving
// after it. The shared read runs under its own storage timeout so one caller
// giving up does not fail the others; each caller still stops waiting when its own
// context ends.
func (s *Service) coalesce(ctx context.Context, report, key string, fn func(context.Context) (any, error)) (any, error) {
	flight := fmt.Sprintf("%s:%s:%d", report, key, s.commits.Load())
	ch := s.reports.DoChan(flight, func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return fn(readCtx)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ledger: %s report: %w", report, ctx.Err())
	case res := <-ch:
		return res.Val, res.Err
	}
}

func sortedLines(lines []ReportLine) []ReportLine {
	out := make([]ReportLine, len(lines))
	copy(out, lines)
	slices.SortFunc(out, func(a, b ReportLine) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
