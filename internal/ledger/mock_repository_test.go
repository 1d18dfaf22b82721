package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// mockRepository keeps bills in memory. Writes made inside WithTx are staged and only
// become visible when fn returns nil.
type mockRepository struct {
	mu     sync.Mutex
	bills  map[int64]Bill
	items  []BillItem
	nextID int64
	nextIt int64

	txError         error
	lockError       error
	insertBillError error
	// failItemAt makes the n-th InsertBillItem call of a transaction fail (1-based).
	failItemAt int
	readError  error
	readCalls  int
	readGate   chan struct{}
	locks      int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		bills:  make(map[int64]Bill),
		nextID: 1,
		nextIt: 1,
	}
}

type mockTx struct {
	repo      *mockRepository
	bills     []Bill
	items     []BillItem
	nextID    int64
	nextIt    int64
	itemCalls int
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	m.mu.Lock()
	tx := &mockTx{repo: m, nextID: m.nextID, nextIt: m.nextIt}
	m.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range tx.bills {
		m.bills[b.ID] = b
	}
	m.items = append(m.items, tx.items...)
	m.nextID = tx.nextID
	m.nextIt = tx.nextIt
	return nil
}

func (m *mockRepository) WithSnapshot(ctx context.Context, fn func(context.Context, Reader) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(ctx, m)
}

func (t *mockTx) LockLedger(context.Context) error {
	t.repo.locks++
	return t.repo.lockError
}

func (t *mockTx) InsertBill(_ context.Context, bill Bill) (int64, error) {
	if t.repo.insertBillError != nil {
		return 0, t.repo.insertBillError
	}
	bill.ID = t.nextID
	bill.Items = nil
	t.nextID++
	t.bills = append(t.bills, bill)
	return bill.ID, nil
}

func (t *mockTx) InsertBillItem(_ context.Context, item BillItem) (int64, error) {
	t.itemCalls++
	if t.repo.failItemAt > 0 && t.itemCalls == t.repo.failItemAt {
		return 0, fmt.Errorf("insert bill item %q: disk full", item.Name)
	}
	item.ID = t.nextIt
	t.nextIt++
	t.items = append(t.items, item)
	return item.ID, nil
}

func (m *mockRepository) beginRead() error {
	m.mu.Lock()
	m.readCalls++
	gate := m.readGate
	err := m.readError
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (m *mockRepository) GetBill(_ context.Context, id int64) (*Bill, error) {
	if err := m.beginRead(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bill, ok := m.bills[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	for _, item := range m.items {
		if item.BillID == id {
			bill.Items = append(bill.Items, item)
		}
	}
	return &bill, nil
}

func (m *mockRepository) ListBills(_ context.Context, req ListBillsRequest) ([]Bill, error) {
	if err := m.beginRead(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Bill
	for _, b := range m.bills {
		if matches(req.Filter, b.Date) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if req.Offset >= len(out) {
		return []Bill{}, nil
	}
	out = out[req.Offset:]
	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (m *mockRepository) DailyReport(_ context.Context, filter ReportFilter) ([]ReportLine, error) {
	if err := m.beginRead(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byName := map[string]*ReportLine{}
	for _, item := range m.items {
		if !matches(filter, m.bills[item.BillID].Date) {
			continue
		}
		line, ok := byName[item.Name]
		if !ok {
			line = &ReportLine{Name: item.Name}
			byName[item.Name] = line
		}
		line.Qty += int64(item.Qty)
		line.Value = line.Value.Add(item.LineTotal)
	}
	out := []ReportLine{}
	for _, line := range byName {
		out = append(out, *line)
	}
	return out, nil
}

func (m *mockRepository) BillTotals(_ context.Context, filter ReportFilter) (BillTotals, error) {
	if err := m.beginRead(); err != nil {
		return BillTotals{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var totals BillTotals
	for _, b := range m.bills {
		if !matches(filter, b.Date) {
			continue
		}
		totals.Bills++
		totals.Total = totals.Total.Add(b.Total)
		totals.Cash = totals.Cash.Add(b.Cash)
		totals.Balance = totals.Balance.Add(b.Balance)
	}
	return totals, nil
}

func matches(f ReportFilter, date string) bool {
	if f.Date != "" && date != f.Date {
		return false
	}
	if f.From != "" && date < f.From {
		return false
	}
	if f.To != "" && date > f.To {
		return false
	}
	return true
}

func (m *mockRepository) billCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bills)
}

func (m *mockRepository) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
