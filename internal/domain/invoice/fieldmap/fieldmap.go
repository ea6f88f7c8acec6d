// Package fieldmap resolves the canonical invoice fields against the header
// row of one CSV export. Carrier exports name their columns freely, so a map
// is either supplied explicitly by the caller or inferred from keyword
// matching against the headers.
package fieldmap

import (
	"fmt"
	"sort"
	"strings"
)

// Canonical field names understood by the ingestion pipeline.
const (
	FieldFeeTypeRaw  = "fee_type_raw"
	FieldAmount      = "amount"
	FieldOrderRef    = "order_ref"
	FieldTrackingRef = "tracking_ref"
)

// Error codes reported while resolving or validating a field map.
const (
	CodeUnknownCanonicalField = "UNKNOWN_CANONICAL_FIELD"
	CodeHeaderNotFound        = "HEADER_NOT_FOUND"
	CodeIncompleteFieldMap    = "INCOMPLETE_FIELD_MAP"
)

// FieldMap maps canonical field names to actual header names of one file.
type FieldMap map[string]string

// ValidationError is a structural, caller-input error: it halts the whole
// batch before any row is processed.
type ValidationError struct {
	Code   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// canonicalOrder fixes the field-processing order for heuristic resolution.
// A header that satisfies two keyword sets always lands on the earlier field
// and is not offered again, keeping resolution reproducible.
var canonicalOrder = []string{FieldFeeTypeRaw, FieldAmount, FieldOrderRef, FieldTrackingRef}

var fieldKeywords = map[string][]string{
	FieldFeeTypeRaw:  {"fee_type", "fee type", "fee", "charge type", "description", "service"},
	FieldAmount:      {"amount", "charge", "total", "fee amount", "cost"},
	FieldOrderRef:    {"order_ref", "order"},
	FieldTrackingRef: {"tracking_ref", "tracking", "track", "waybill", "awb"},
}

// Resolve produces a field map for the given headers. When an explicit map is
// supplied it is validated and returned unchanged; no heuristics are applied.
// Otherwise each canonical field is assigned the first unclaimed header whose
// case-insensitive text contains one of the field's keywords.
func Resolve(headers []string, explicit map[string]string) (FieldMap, error) {
	if len(explicit) > 0 {
		return validateExplicit(headers, explicit)
	}
	return suggest(headers), nil
}

// Validate checks that a field map is usable for row ingestion: fee_type_raw
// and amount must be mapped. order_ref and tracking_ref stay optional.
func Validate(fm FieldMap) error {
	for _, field := range []string{FieldFeeTypeRaw, FieldAmount} {
		if fm[field] == "" {
			return &ValidationError{
				Code:   CodeIncompleteFieldMap,
				Detail: fmt.Sprintf("field map does not cover required field %q", field),
			}
		}
	}
	return nil
}

func validateExplicit(headers []string, explicit map[string]string) (FieldMap, error) {
	known := make(map[string]bool, len(canonicalOrder))
	for _, f := range canonicalOrder {
		known[f] = true
	}
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	// Sorted key order keeps the reported error deterministic.
	keys := make([]string, 0, len(explicit))
	for k := range explicit {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fm := make(FieldMap, len(explicit))
	for _, k := range keys {
		v := explicit[k]
		if !known[k] {
			return nil, &ValidationError{
				Code:   CodeUnknownCanonicalField,
				Detail: fmt.Sprintf("unknown canonical field %q", k),
			}
		}
		if !present[v] {
			return nil, &ValidationError{
				Code:   CodeHeaderNotFound,
				Detail: fmt.Sprintf("header %q mapped to %q not found in file", v, k),
			}
		}
		fm[k] = v
	}
	return fm, nil
}

// suggest scans headers in file order per canonical field. First keyword match
// wins per field; a header already claimed by an earlier field is skipped.
func suggest(headers []string) FieldMap {
	fm := make(FieldMap, len(canonicalOrder))
	claimed := make(map[int]bool, len(canonicalOrder))

	for _, field := range canonicalOrder {
		for i, header := range headers {
			if claimed[i] {
				continue
			}
			h := strings.ToLower(strings.TrimSpace(header))
			if matchesAny(h, fieldKeywords[field]) {
				fm[field] = header
				claimed[i] = true
				break
			}
		}
	}
	return fm
}

func matchesAny(header string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(header, kw) {
			return true
		}
	}
	return false
}
