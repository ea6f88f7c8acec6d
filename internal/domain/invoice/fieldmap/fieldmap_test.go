package fieldmap

import (
	"errors"
	"testing"
)

func TestResolve_Heuristic(t *testing.T) {
	headers := []string{"Fee Description", "Total Charge", "Order Number", "Tracking ID"}

	fm, err := Resolve(headers, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := FieldMap{
		FieldFeeTypeRaw:  "Fee Description",
		FieldAmount:      "Total Charge",
		FieldOrderRef:    "Order Number",
		FieldTrackingRef: "Tracking ID",
	}
	for field, header := range want {
		if fm[field] != header {
			t.Errorf("field %s = %q, want %q", field, fm[field], header)
		}
	}
}

func TestResolve_HeuristicShortHeaders(t *testing.T) {
	fm, err := Resolve([]string{"fee", "cost", "track"}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if fm[FieldFeeTypeRaw] != "fee" || fm[FieldAmount] != "cost" || fm[FieldTrackingRef] != "track" {
		t.Fatalf("unexpected map: %v", fm)
	}
	if _, ok := fm[FieldOrderRef]; ok {
		t.Fatalf("order_ref should be unmapped, got %q", fm[FieldOrderRef])
	}
}

func TestResolve_NoHeaderReuse(t *testing.T) {
	// "Fee Amount" satisfies both the fee_type_raw keyword set (via "fee") and
	// the amount set (via "amount"). The fixed field order assigns it to
	// fee_type_raw and it must not be offered to amount again.
	fm, err := Resolve([]string{"Fee Amount", "Cost"}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if fm[FieldFeeTypeRaw] != "Fee Amount" {
		t.Fatalf("fee_type_raw = %q, want Fee Amount", fm[FieldFeeTypeRaw])
	}
	if fm[FieldAmount] != "Cost" {
		t.Fatalf("amount = %q, want Cost", fm[FieldAmount])
	}

	seen := make(map[string]string)
	for field, header := range fm {
		if prev, dup := seen[header]; dup {
			t.Fatalf("header %q assigned to both %s and %s", header, prev, field)
		}
		seen[header] = field
	}
}

func TestResolve_ExplicitPassThrough(t *testing.T) {
	headers := []string{"desc", "amt", "ord"}
	explicit := map[string]string{
		FieldFeeTypeRaw: "desc",
		FieldAmount:     "amt",
		FieldOrderRef:   "ord",
	}

	fm, err := Resolve(headers, explicit)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(fm) != len(explicit) {
		t.Fatalf("expected pass-through, got %v", fm)
	}
	for k, v := range explicit {
		if fm[k] != v {
			t.Errorf("field %s = %q, want %q", k, fm[k], v)
		}
	}

	// Resolving an already-valid explicit map is idempotent.
	again, err := Resolve(headers, map[string]string(fm))
	if err != nil {
		t.Fatalf("Resolve (second pass): %v", err)
	}
	for k, v := range fm {
		if again[k] != v {
			t.Errorf("second pass changed %s: %q -> %q", k, v, again[k])
		}
	}
}

func TestResolve_ExplicitUnknownField(t *testing.T) {
	_, err := Resolve([]string{"desc"}, map[string]string{"shipping_cost": "desc"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Code != CodeUnknownCanonicalField {
		t.Fatalf("code = %s, want %s", vErr.Code, CodeUnknownCanonicalField)
	}
}

func TestResolve_ExplicitHeaderNotFound(t *testing.T) {
	_, err := Resolve([]string{"desc"}, map[string]string{FieldAmount: "missing"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Code != CodeHeaderNotFound {
		t.Fatalf("code = %s, want %s", vErr.Code, CodeHeaderNotFound)
	}
}

func TestValidate(t *testing.T) {
	ok := FieldMap{FieldFeeTypeRaw: "fee", FieldAmount: "amt"}
	if err := Validate(ok); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	for _, fm := range []FieldMap{
		{FieldAmount: "amt"},
		{FieldFeeTypeRaw: "fee"},
		{},
	} {
		err := Validate(fm)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("Validate(%v): expected ValidationError, got %v", fm, err)
		}
		if vErr.Code != CodeIncompleteFieldMap {
			t.Fatalf("code = %s, want %s", vErr.Code, CodeIncompleteFieldMap)
		}
	}
}
