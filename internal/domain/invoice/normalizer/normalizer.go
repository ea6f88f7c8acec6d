// Package normalizer turns raw CSV rows into canonical invoice line items.
// A row either yields a valid item or an invalid one carrying a row-scoped
// error; normalization never aborts a batch.
package normalizer

import (
	"fmt"
	"strings"

	"github.com/freightwatch/threepl-audit/internal/domain/invoice/fieldmap"
	"github.com/freightwatch/threepl-audit/internal/domain/invoice/money"
)

// CodeRowParseError marks a data-quality failure scoped to a single row.
const CodeRowParseError = "ROW_PARSE_ERROR"

// LineItem is the outcome of normalizing one row. Row numbering is 1-based
// with the header consuming row 1, so data rows start at 2. FeeTypeNorm is
// the only field mutated after creation, by the classification pass.
type LineItem struct {
	RowNumber   int               `json:"row_number"`
	FeeTypeRaw  string            `json:"fee_type_raw"`
	AmountRaw   string            `json:"amount_raw"`
	AmountCents *int64            `json:"amount_cents,omitempty"`
	OrderRef    *string           `json:"order_ref,omitempty"`
	TrackingRef *string           `json:"tracking_ref,omitempty"`
	FeeTypeNorm *string           `json:"fee_type_norm,omitempty"`
	IsValid     bool              `json:"is_valid"`
	ErrorCode   string            `json:"error_code,omitempty"`
	ErrorDetail string            `json:"error_detail,omitempty"`
	RawRow      map[string]string `json:"raw_row"`
}

// Normalize converts one raw row into a LineItem using the resolved field
// map. The original row is snapshotted verbatim on every item, valid or not,
// for audit traceability.
func Normalize(rawRow map[string]string, fm fieldmap.FieldMap, rowNumber int) *LineItem {
	item := &LineItem{
		RowNumber: rowNumber,
		RawRow:    snapshot(rawRow),
	}

	item.FeeTypeRaw = strings.TrimSpace(rawRow[fm[fieldmap.FieldFeeTypeRaw]])
	item.AmountRaw = strings.TrimSpace(rawRow[fm[fieldmap.FieldAmount]])

	if item.FeeTypeRaw == "" {
		return invalid(item, "empty fee description")
	}
	if item.AmountRaw == "" {
		return invalid(item, "empty amount")
	}

	cents, err := money.ParseAmount(item.AmountRaw)
	if err != nil {
		return invalid(item, err.Error())
	}
	item.AmountCents = &cents

	item.OrderRef = optionalRef(rawRow, fm, fieldmap.FieldOrderRef)
	item.TrackingRef = optionalRef(rawRow, fm, fieldmap.FieldTrackingRef)

	item.IsValid = true
	return item
}

// Invalid builds a failed item for a row that could not be read at all, e.g.
// a malformed CSV record. The same row-scoped error contract applies.
func Invalid(rowNumber int, detail string) *LineItem {
	return invalid(&LineItem{RowNumber: rowNumber, RawRow: map[string]string{}}, detail)
}

func invalid(item *LineItem, detail string) *LineItem {
	item.IsValid = false
	item.ErrorCode = CodeRowParseError
	item.ErrorDetail = fmt.Sprintf("row %d: %s", item.RowNumber, detail)
	return item
}

// optionalRef reads a reference column when the map covers it; blank values
// are stored as absent, not as empty strings.
func optionalRef(rawRow map[string]string, fm fieldmap.FieldMap, field string) *string {
	header, ok := fm[field]
	if !ok {
		return nil
	}
	v := strings.TrimSpace(rawRow[header])
	if v == "" {
		return nil
	}
	return &v
}

func snapshot(rawRow map[string]string) map[string]string {
	copied := make(map[string]string, len(rawRow))
	for k, v := range rawRow {
		copied[k] = v
	}
	return copied
}
