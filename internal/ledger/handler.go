package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/money"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
)

// BillService is the ledger surface exposed over HTTP.
type BillService interface {
	RecordBill(ctx context.Context, req RecordBillRequest) (*Bill, error)
	GetBill(ctx context.Context, id int64) (*Bill, error)
	ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, error)
	DailyReport(ctx context.Context, filter ReportFilter) ([]ReportLine, error)
	DailySummary(ctx context.Context, filter ReportFilter) (*DailySummary, error)
}

// Handler serves the ledger bridge endpoints.
type Handler struct {
	logger  *slog.Logger
	service BillService
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service BillService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/bills", h.recordBill)
	r.Get("/bills", h.listBills)
	r.Get("/bills/{id}", h.getBill)
	r.Get("/reports/daily", h.dailyReport)
	r.Get("/reports/daily/summary", h.dailySummary)
}

type recordBillResponse struct {
	BillID int64 `json:"billId"`
	Bill   *Bill `json:"bill"`
}

func (h *Handler) recordBill(w http.ResponseWriter, r *http.Request) {
	var req RecordBillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, decodeProblem(err))
		return
	}
	bill, err := h.service.RecordBill(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, recordBillResponse{BillID: bill.ID, Bill: bill})
}

// decodeProblem turns a body that could not be decoded into a validation failure,
// naming the field when encoding/json reports one.
func decodeProblem(err error) ValidationErrors {
	field, msg := "body", "malformed JSON"
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, money.ErrInvalidAmount):
		msg = "non-numeric value"
	case errors.Is(err, money.ErrPrecision):
		msg = fmt.Sprintf("must have at most %d decimal places", money.Scale)
	case errors.Is(err, money.ErrOverflow):
		msg = "amount is out of range"
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			field = typeErr.Field
		}
		msg = fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)
	default:
		if _, name, ok := strings.Cut(err.Error(), "unknown field "); ok {
			field, msg = strings.Trim(name, `"`), "unknown field"
		}
	}
	return ValidationErrors{{Field: field, Message: msg}}
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, ValidationErrors{{Field: "id", Message: "must be a positive integer"}})
		return
	}
	bill, err := h.service.GetBill(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	req := ListBillsRequest{Filter: filterFromQuery(r)}
	var problems ValidationErrors
	req.Limit = intParam(r, "limit", &problems)
	req.Offset = intParam(r, "offset", &problems)
	if len(problems) > 0 {
		httpx.RespondError(w, problems)
		return
	}
	bills, err := h.service.ListBills(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bills)
}

func (h *Handler) dailyReport(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.DailyReport(r.Context(), filterFromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}

func (h *Handler) dailySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.DailySummary(r.Context(), filterFromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func filterFromQuery(r *http.Request) ReportFilter {
	q := r.URL.Query()
	return ReportFilter{
		Date: q.Get("date"),
		From: q.Get("from"),
		To:   q.Get("to"),
	}
}

func intParam(r *http.Request, name string, problems *ValidationErrors) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*problems = append(*problems, &ValidationError{Field: name, Message: "must be an integer"})
		return 0
	}
	return v
}
