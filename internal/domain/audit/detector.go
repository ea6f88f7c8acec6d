// Package audit reports suspect findings over one batch of normalized line
// items: valid rows that no rule classified, and duplicate charges. Findings
// are derived counts, recomputable at any time from the items and the current
// rule set.
package audit

import (
	"sort"

	"github.com/freightwatch/threepl-audit/internal/domain/invoice/normalizer"
)

// Findings summarizes one audit pass over a batch.
type Findings struct {
	UnknownFeeTypeRows int `json:"unknown_fee_type_rows"`
	DuplicateRows      int `json:"duplicate_rows"`
}

// chargeKey is the duplicate-grouping equivalence key. Unclassified items
// group under the empty-string category.
type chargeKey struct {
	category string
	cents    int64
	ref      string
}

// Run audits a batch of line items. Only valid items participate. An item
// with neither tracking nor order reference cannot establish duplication and
// is excluded from duplicate detection. The first occurrence of a charge key
// is not a duplicate; every further occurrence counts once, so the result is
// the number of extra occurrences, not of groups.
func Run(items []*normalizer.LineItem) Findings {
	ordered := make([]*normalizer.LineItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].RowNumber < ordered[j].RowNumber
	})

	var findings Findings
	seen := make(map[chargeKey]bool)

	for _, item := range ordered {
		if !item.IsValid {
			continue
		}
		if item.FeeTypeNorm == nil {
			findings.UnknownFeeTypeRows++
		}

		ref, ok := referenceKey(item)
		if !ok {
			continue
		}
		key := chargeKey{ref: ref}
		if item.FeeTypeNorm != nil {
			key.category = *item.FeeTypeNorm
		}
		if item.AmountCents != nil {
			key.cents = *item.AmountCents
		}
		if seen[key] {
			findings.DuplicateRows++
		} else {
			seen[key] = true
		}
	}
	return findings
}

// referenceKey prefers the tracking reference, falls back to the order
// reference, and reports false when neither is present.
func referenceKey(item *normalizer.LineItem) (string, bool) {
	if item.TrackingRef != nil {
		return *item.TrackingRef, true
	}
	if item.OrderRef != nil {
		return *item.OrderRef, true
	}
	return "", false
}
