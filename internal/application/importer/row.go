package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brightbooks/recon-engine/internal/domain/ledger"
	"github.com/brightbooks/recon-engine/internal/domain/money"
)

// Row is one record of an import batch: the raw field values keyed by
// canonical column name, plus the 1-based line it came from. Typed
// conversion happens at insert time so a bad row fails alone instead of
// aborting the batch.
type Row struct {
	Line   int
	Fields map[string]string
}

// RowError reports one row that could not be imported.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// headerAliases folds the header spellings seen in exported statements
// down to canonical column names.
var headerAliases = map[string]string{
	"vendor":           "vendor_raw",
	"vendor_name":      "vendor_raw",
	"vendor_name_raw":  "vendor_raw",
	"payee":            "vendor_raw",
	"method":           "payment_method",
	"source":           "source_reference",
	"reference":        "source_reference",
	"account":          "account_id",
	"gl":               "gl_account",
	"vehicle":          "vehicle_id",
	"employee":         "employee_id",
	"reserve":          "reserve_number",
	"transaction_date": "date",
	"receipt_date":     "date",
	"memo":             "description",
}

func canonicalHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}

// ReadRows parses a CSV stream into Rows. The first record is the
// header; unknown columns are kept as-is so the schema descriptor can
// decide later whether they land anywhere. Line numbers count from 1
// including the header, so the first data row is line 2.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty batch: no header record")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = canonicalHeader(h)
	}

	var rows []Row
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fields := make(map[string]string, len(columns))
		for i, v := range record {
			if i >= len(columns) {
				break
			}
			v = strings.TrimSpace(v)
			if v != "" {
				fields[columns[i]] = v
			}
		}
		rows = append(rows, Row{Line: line, Fields: fields})
	}
	return rows, nil
}

// optionalReceiptColumns are attributes a batch may carry that exist
// only when the schema defines the matching column.
var optionalReceiptColumns = []string{
	"gl_account", "vehicle_id", "employee_id", "reserve_number",
}

// buildReceipt converts a row into a Receipt. Optional attributes are
// captured only when the schema descriptor defines the column; unknown
// optionals are silently dropped.
func buildReceipt(row Row, schema map[string]bool) (*ledger.Receipt, error) {
	vendor := row.Fields["vendor_raw"]
	if vendor == "" {
		return nil, fmt.Errorf("missing vendor")
	}
	rawAmount := row.Fields["amount"]
	if rawAmount == "" {
		return nil, fmt.Errorf("missing amount")
	}
	amount, err := money.FromString(rawAmount)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", rawAmount, err)
	}
	rawDate := row.Fields["date"]
	if rawDate == "" {
		return nil, fmt.Errorf("missing date")
	}
	date, err := money.ParseDate(rawDate)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", rawDate, err)
	}

	credit := false
	if raw := row.Fields["credit"]; raw != "" {
		credit, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("bad credit flag %q: %w", raw, err)
		}
	}
	if amount.IsNegative() {
		// Negative amounts flip to the credit side.
		amount = amount.Abs()
		credit = !credit
	}

	r := &ledger.Receipt{
		VendorRaw:       vendor,
		Amount:          amount,
		Credit:          credit,
		Date:            date,
		Description:     row.Fields["description"],
		PaymentMethod:   ledger.ParsePaymentMethod(row.Fields["payment_method"]),
		SourceReference: row.Fields["source_reference"],
	}

	for _, col := range optionalReceiptColumns {
		v, ok := row.Fields[col]
		if !ok || !schema[col] {
			continue
		}
		value := v
		switch col {
		case "gl_account":
			r.GLAccount = &value
		case "vehicle_id":
			r.VehicleID = &value
		case "employee_id":
			r.EmployeeID = &value
		case "reserve_number":
			r.ReserveNumber = &value
		}
	}
	return r, nil
}

// buildTransaction converts a row into a BankTransaction. Exactly one
// of debit/credit must be non-zero, matching statement exports.
func buildTransaction(row Row) (*ledger.BankTransaction, error) {
	account := row.Fields["account_id"]
	if account == "" {
		return nil, fmt.Errorf("missing account_id")
	}
	rawDate := row.Fields["date"]
	if rawDate == "" {
		return nil, fmt.Errorf("missing date")
	}
	date, err := money.ParseDate(rawDate)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", rawDate, err)
	}

	t := &ledger.BankTransaction{
		AccountID:   account,
		Date:        date,
		Description: row.Fields["description"],
	}
	if raw := row.Fields["debit"]; raw != "" {
		t.Debit, err = money.FromString(raw)
		if err != nil {
			return nil, fmt.Errorf("bad debit %q: %w", raw, err)
		}
	}
	if raw := row.Fields["credit"]; raw != "" {
		t.Credit, err = money.FromString(raw)
		if err != nil {
			return nil, fmt.Errorf("bad credit %q: %w", raw, err)
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
