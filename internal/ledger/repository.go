package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/money"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

// Repository persists bills and answers aggregate reads.
type Repository interface {
	Reader
	// WithTx runs fn in a read-write transaction. Nothing fn wrote survives an error.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// WithSnapshot runs fn in a read-only transaction so every read sees one snapshot.
	WithSnapshot(ctx context.Context, fn func(context.Context, Reader) error) error
}

// Reader is the read side of the ledger store.
type Reader interface {
	GetBill(ctx context.Context, id int64) (*Bill, error)
	ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, error)
	DailyReport(ctx context.Context, filter ReportFilter) ([]ReportLine, error)
	BillTotals(ctx context.Context, filter ReportFilter) (BillTotals, error)
}

// TxRepository is the write side, only available inside WithTx.
type TxRepository interface {
	// LockLedger serialises ledger writers across processes until the transaction ends.
	LockLedger(ctx context.Context) error
	InsertBill(ctx context.Context, bill Bill) (int64, error)
	InsertBillItem(ctx context.Context, item BillItem) (int64, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PostgresRepository implements Repository on pgx.
type PostgresRepository struct {
	db   dbtx
	pool db.Beginner
}

// NewRepository builds a repository backed by pool.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool, pool: pool}
}

// WithTx implements Repository.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PostgresRepository{db: tx, pool: r.pool})
	})
}

// WithSnapshot implements Repository.
func (r *PostgresRepository) WithSnapshot(ctx context.Context, fn func(context.Context, Reader) error) error {
	return db.WithReadOnlyTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PostgresRepository{db: tx, pool: r.pool})
	})
}

// LockLedger implements TxRepository.
func (r *PostgresRepository) LockLedger(ctx context.Context) error {
	return db.AdvisoryXactLock(ctx, r.db, db.LockKeyLedger)
}

// InsertBill implements TxRepository.
func (r *PostgresRepository) InsertBill(ctx context.Context, bill Bill) (int64, error) {
	const query = `
		INSERT INTO bills (bill_no, "date", "time", total, cash, balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRow(ctx, query,
		bill.BillNo, bill.Date, bill.Time,
		bill.Total.Minor(), bill.Cash.Minor(), bill.Balance.Minor(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert bill: %w", err)
	}
	return id, nil
}

// InsertBillItem implements TxRepository.
func (r *PostgresRepository) InsertBillItem(ctx context.Context, item BillItem) (int64, error) {
	const query = `
		INSERT INTO bill_items (bill_id, item_name, qty, price, line_total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRow(ctx, query,
		item.BillID, item.Name, int32(item.Qty), item.Price.Minor(), item.LineTotal.Minor(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert bill item %q: %w", item.Name, err)
	}
	return id, nil
}

// GetBill implements Reader.
func (r *PostgresRepository) GetBill(ctx context.Context, id int64) (*Bill, error) {
	const headerQuery = `
		SELECT id, bill_no, "date", "time", total, cash, balance
		FROM bills
		WHERE id = $1
	`
	bill, err := scanBill(r.db.QueryRow(ctx, headerQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get bill: %w", err)
	}

	const itemsQuery = `
		SELECT id, bill_id, item_name, qty, price, line_total
		FROM bill_items
		WHERE bill_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, itemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get bill items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item             BillItem
			qty              int32
			price, lineTotal int64
		)
		if err := rows.Scan(&item.ID, &item.BillID, &item.Name, &qty, &price, &lineTotal); err != nil {
			return nil, fmt.Errorf("scan bill item: %w", err)
		}
		item.Qty = int(qty)
		item.Price = money.FromMinor(price)
		item.LineTotal = money.FromMinor(lineTotal)
		bill.Items = append(bill.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get bill items: %w", err)
	}
	return &bill, nil
}

// ListBills implements Reader.
func (r *PostgresRepository) ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, error) {
	where, args := filterClause(req.Filter, "b")
	argPos := len(args) + 1
	query := fmt.Sprintf(`
		SELECT b.id, b.bill_no, b."date", b."time", b.total, b.cash, b.balance
		FROM bills b
		%s
		ORDER BY b.id DESC
		LIMIT $%d OFFSET $%d
	`, where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	bills := []Bill{}
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}

// DailyReport implements Reader.
func (r *PostgresRepository) DailyReport(ctx context.Context, filter ReportFilter) ([]ReportLine, error) {
	where, args := filterClause(filter, "b")
	query := fmt.Sprintf(`
		SELECT bi.item_name,
			COALESCE(SUM(bi.qty), 0)::BIGINT,
			COALESCE(SUM(bi.line_total), 0)::BIGINT
		FROM bill_items bi
		JOIN bills b ON b.id = bi.bill_id
		%s
		GROUP BY bi.item_name
		ORDER BY bi.item_name
	`, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("daily report: %w", err)
	}
	defer rows.Close()

	lines := []ReportLine{}
	for rows.Next() {
		var (
			line  ReportLine
			value int64
		)
		if err := rows.Scan(&line.Name, &line.Qty, &value); err != nil {
			return nil, fmt.Errorf("scan report line: %w", err)
		}
		line.Value = money.FromMinor(value)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("daily report: %w", err)
	}
	return lines, nil
}

// BillTotals implements Reader.
func (r *PostgresRepository) BillTotals(ctx context.Context, filter ReportFilter) (BillTotals, error) {
	where, args := filterClause(filter, "b")
	query := fmt.Sprintf(`
		SELECT COUNT(*),
			COALESCE(SUM(b.total), 0)::BIGINT,
			COALESCE(SUM(b.cash), 0)::BIGINT,
			COALESCE(SUM(b.balance), 0)::BIGINT
		FROM bills b
		%s
	`, where)

	var (
		totals               BillTotals
		total, cash, balance int64
	)
	if err := r.db.QueryRow(ctx, query, args...).Scan(&totals.Bills, &total, &cash, &balance); err != nil {
		return BillTotals{}, fmt.Errorf("bill totals: %w", err)
	}
	totals.Total = money.FromMinor(total)
	totals.Cash = money.FromMinor(cash)
	totals.Balance = money.FromMinor(balance)
	return totals, nil
}

// filterClause renders a WHERE clause on the bills "date" column of alias. Dates are
// stored as YYYY-MM-DD text, so lexical comparison matches calendar order.
func filterClause(filter ReportFilter, alias string) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	column := alias + `."date"`
	if filter.Date != "" {
		args = append(args, filter.Date)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.From != "" {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("%s <= $%d", column, len(args)))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func scanBill(row pgx.Row) (Bill, error) {
	var (
		bill                 Bill
		total, cash, balance int64
	)
	if err := row.Scan(&bill.ID, &bill.BillNo, &bill.Date, &bill.Time, &total, &cash, &balance); err != nil {
		return Bill{}, err
	}
	bill.Total = money.FromMinor(total)
	bill.Cash = money.FromMinor(cash)
	bill.Balance = money.FromMinor(balance)
	return bill, nil
}
