// Package ledger records point-of-sale bills and answers aggregate sales reports.
//
// A bill and its items are written together in one transaction and never changed
// afterwards. Reports are computed from the stored rows on every call.
package ledger

import (
	"strings"

	"github.com/odyssey-erp/odyssey-pos/internal/money"
)

// Layouts of the local calendar strings stored with every bill.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Bill is one completed sale.
type Bill struct {
	ID      int64       `json:"id"`
	BillNo  int64       `json:"billNo"`
	Date    string      `json:"date"`
	Time    string      `json:"time"`
	Total   money.Money `json:"total"`
	Cash    money.Money `json:"cash"`
	Balance money.Money `json:"balance"`
	Items   []BillItem  `json:"items,omitempty"`
}

// BillItem is a line within a bill.
type BillItem struct {
	ID        int64       `json:"id"`
	BillID    int64       `json:"billId"`
	Name      string      `json:"name"`
	Qty       int         `json:"qty"`
	Price     money.Money `json:"price"`
	LineTotal money.Money `json:"lineTotal"`
}

// RecordBillRequest is the payload accepted by RecordBill. BillNo is optional; a
// number is generated when it is absent.
type RecordBillRequest struct {
	BillNo *int64              `json:"bill_no,omitempty" validate:"omitempty,gt=0"`
	Total  money.Money         `json:"total" validate:"gte=0"`
	Cash   money.Money         `json:"cash" validate:"gte=0"`
	Items  []RecordBillItemReq `json:"items" validate:"required,min=1,dive"`
}

// RecordBillItemReq is one item of a RecordBillRequest.
type RecordBillItemReq struct {
	Name  string      `json:"name" validate:"required,max=200"`
	Qty   int         `json:"qty" validate:"gte=1,lte=2147483647"`
	Price money.Money `json:"price" validate:"gte=0"`
}

func (r RecordBillRequest) normalized() RecordBillRequest {
	items := make([]RecordBillItemReq, len(r.Items))
	for i, item := range r.Items {
		item.Name = strings.TrimSpace(item.Name)
		items[i] = item
	}
	r.Items = items
	return r
}

// ReportFilter restricts reports to a day or an inclusive range of days. Date and
// From/To are mutually exclusive; the zero value covers all time.
type ReportFilter struct {
	Date string `json:"date,omitempty"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// IsZero reports whether the filter covers all time.
func (f ReportFilter) IsZero() bool {
	return f.Date == "" && f.From == "" && f.To == ""
}

func (f ReportFilter) key() string {
	return f.Date + "|" + f.From + "|" + f.To
}

// ForDate builds a single-day filter.
func ForDate(date string) ReportFilter {
	return ReportFilter{Date: date}
}

// ReportLine is one item name's aggregate in a daily report.
type ReportLine struct {
	Name  string      `json:"name"`
	Qty   int64       `json:"qty"`
	Value money.Money `json:"value"`
}

// BillTotals sums bill headers over a filter.
type BillTotals struct {
	Bills   int64       `json:"bills"`
	Total   money.Money `json:"total"`
	Cash    money.Money `json:"cash"`
	Balance money.Money `json:"balance"`
}

// DailySummary combines header totals and item lines read from one snapshot.
type DailySummary struct {
	BillTotals
	Filter ReportFilter `json:"filter"`
	Items  []ReportLine `json:"items"`
}

// ListBillsRequest selects bill headers, newest first.
type ListBillsRequest struct {
	Filter ReportFilter
	Limit  int
	Offset int
}

// Paging bounds for ListBills.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)
