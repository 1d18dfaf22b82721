package ledger

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-pos/internal/money"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// prepareBill validates req and derives every computed amount. The returned bill has
// no identifiers, bill number or timestamps yet.
func prepareBill(req RecordBillRequest) (*Bill, error) {
	req = req.normalized()

	var problems ValidationErrors
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("ledger: validate request: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, &ValidationError{Field: fieldPath(fe), Message: describe(fe)})
		}
		return nil, problems
	}

	bill := &Bill{
		Cash:  req.Cash,
		Items: make([]BillItem, len(req.Items)),
	}
	var sum money.Money
	for i, item := range req.Items {
		lineTotal, err := item.Price.MulChecked(int64(item.Qty))
		if err == nil {
			sum, err = sum.AddChecked(lineTotal)
		}
		if err != nil {
			problems = append(problems, &ValidationError{
				Field:   fmt.Sprintf("items[%d]", i),
				Message: "line total is out of range",
			})
			continue
		}
		bill.Items[i] = BillItem{
			Name:      item.Name,
			Qty:       item.Qty,
			Price:     item.Price,
			LineTotal: lineTotal,
		}
	}
	if len(problems) > 0 {
		return nil, problems
	}

	if req.Total != sum {
		problems = append(problems, &ValidationError{
			Field:   "total",
			Message: fmt.Sprintf("must equal the sum of line totals (%s)", sum),
		})
	}
	if req.Cash < sum {
		problems = append(problems, &ValidationError{
			Field:   "cash",
			Message: fmt.Sprintf("must cover the total (%s)", sum),
		})
	}
	if len(problems) > 0 {
		return nil, problems
	}

	bill.Total = sum
	bill.Balance = req.Cash.Sub(sum)
	if req.BillNo != nil {
		bill.BillNo = *req.BillNo
	}
	return bill, nil
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s entry", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		if fe.Param() == "0" {
			return "must not be negative"
		}
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}

// validateFilter checks the date strings of f.
func validateFilter(f ReportFilter) error {
	var problems ValidationErrors
	check := func(field, value string) (time.Time, bool) {
		if value == "" {
			return time.Time{}, false
		}
		t, err := time.Parse(DateLayout, value)
		if err != nil {
			problems = append(problems, &ValidationError{Field: field, Message: "must be a date in YYYY-MM-DD form"})
			return time.Time{}, false
		}
		return t, true
	}

	check("date", f.Date)
	from, hasFrom := check("from", f.From)
	to, hasTo := check("to", f.To)

	if f.Date != "" && (f.From != "" || f.To != "") {
		problems = append(problems, &ValidationError{Field: "date", Message: "cannot be combined with from/to"})
	}
	if hasFrom && hasTo && from.After(to) {
		problems = append(problems, &ValidationError{Field: "from", Message: "must not be after to"})
	}
	if len(problems) > 0 {
		return problems
	}
	return nil
}

func validateListRequest(req ListBillsRequest) (ListBillsRequest, error) {
	var problems ValidationErrors
	if err := validateFilter(req.Filter); err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			problems = append(problems, verrs...)
		}
	}
	if req.Limit < 0 || req.Limit > MaxListLimit {
		problems = append(problems, &ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 0 and %d", MaxListLimit)})
	}
	if req.Offset < 0 {
		problems = append(problems, &ValidationError{Field: "offset", Message: "must not be negative"})
	}
	if len(problems) > 0 {
		return req, problems
	}
	if req.Limit == 0 {
		req.Limit = DefaultListLimit
	}
	return req, nil
}
