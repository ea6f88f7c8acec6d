package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/freightwatch/threepl-audit/internal/domain/classify"
	"github.com/freightwatch/threepl-audit/internal/domain/common"
	"github.com/freightwatch/threepl-audit/internal/domain/invoice/fieldmap"
	"github.com/freightwatch/threepl-audit/internal/domain/invoice/normalizer"
	invoicerepo "github.com/freightwatch/threepl-audit/internal/domain/invoice/repository"
)

type fakeRulesRepo struct {
	rules []classify.Rule
}

func (f *fakeRulesRepo) CreateRule(context.Context, *classify.Rule) error { return nil }
func (f *fakeRulesRepo) GetRuleByID(context.Context, int64) (*classify.Rule, error) {
	return nil, nil
}
func (f *fakeRulesRepo) ListRules(context.Context) ([]classify.Rule, error) { return f.rules, nil }
func (f *fakeRulesRepo) UpdateRule(context.Context, *classify.Rule) error   { return nil }
func (f *fakeRulesRepo) ListEnabledRulesOrdered(context.Context) ([]classify.Rule, error) {
	return f.rules, nil
}

type fakeInvoiceRepo struct {
	upload *invoicerepo.InvoiceUpload
	items  []*invoicerepo.InvoiceLineItem
}

func (f *fakeInvoiceRepo) CreateUpload(context.Context, *invoicerepo.InvoiceUpload) error {
	return nil
}

func (f *fakeInvoiceRepo) GetUploadByID(_ context.Context, id uuid.UUID) (*invoicerepo.InvoiceUpload, error) {
	if f.upload != nil && f.upload.ID == id {
		return f.upload, nil
	}
	return nil, nil
}

func (f *fakeInvoiceRepo) UpdateUploadCounts(context.Context, uuid.UUID, int, int, int) error {
	return nil
}

func (f *fakeInvoiceRepo) SetFieldMap(context.Context, uuid.UUID, fieldmap.FieldMap) error {
	return nil
}

func (f *fakeInvoiceRepo) BulkInsertLineItems(context.Context, uuid.UUID, []*normalizer.LineItem) (int, error) {
	return 0, nil
}

func (f *fakeInvoiceRepo) ListLineItems(_ context.Context, _ uuid.UUID, filter invoicerepo.LineItemFilter) ([]*invoicerepo.InvoiceLineItem, error) {
	var matched []*invoicerepo.InvoiceLineItem
	for _, item := range f.items {
		if filter.Valid != nil && item.IsValid != *filter.Valid {
			continue
		}
		matched = append(matched, item)
	}
	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (f *fakeInvoiceRepo) UpdateLineItemCategories(_ context.Context, updates []invoicerepo.CategoryUpdate) error {
	for _, u := range updates {
		for _, item := range f.items {
			if item.ID == u.ID {
				item.FeeTypeNorm = u.Category
			}
		}
	}
	return nil
}

func validItem(fee string) *invoicerepo.InvoiceLineItem {
	return &invoicerepo.InvoiceLineItem{
		ID: uuid.New(),
		LineItem: normalizer.LineItem{
			FeeTypeRaw: fee,
			IsValid:    true,
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassifyUpload(t *testing.T) {
	uploadID := uuid.New()
	invoices := &fakeInvoiceRepo{
		upload: &invoicerepo.InvoiceUpload{ID: uploadID},
		items: []*invoicerepo.InvoiceLineItem{
			validItem("Fuel Surcharge"),
			validItem("Storage"),
			validItem("Mystery Fee"),
			{ID: uuid.New(), LineItem: normalizer.LineItem{FeeTypeRaw: "Fuel", IsValid: false}},
		},
	}
	rules := &fakeRulesRepo{rules: []classify.Rule{
		{ID: 1, Pattern: "fuel", MatchType: classify.MatchContains, Category: "FUEL", Priority: 10, Enabled: true},
		{ID: 2, Pattern: "storage", MatchType: classify.MatchExact, Category: "STORAGE", Priority: 5, Enabled: true},
	}}

	svc := NewService(rules, invoices, testLogger())
	result, err := svc.ClassifyUpload(context.Background(), uploadID)
	if err != nil {
		t.Fatalf("ClassifyUpload: %v", err)
	}
	if result.RowsClassified != 2 || result.RowsUnclassified != 1 {
		t.Fatalf("unexpected pass result: %+v", result)
	}

	if invoices.items[0].FeeTypeNorm == nil || *invoices.items[0].FeeTypeNorm != "FUEL" {
		t.Fatalf("fuel item not classified: %+v", invoices.items[0].FeeTypeNorm)
	}
	if invoices.items[1].FeeTypeNorm == nil || *invoices.items[1].FeeTypeNorm != "STORAGE" {
		t.Fatalf("storage item not classified: %+v", invoices.items[1].FeeTypeNorm)
	}
	if invoices.items[2].FeeTypeNorm != nil {
		t.Fatalf("unmatched item should stay unclassified: %+v", invoices.items[2].FeeTypeNorm)
	}
	if invoices.items[3].FeeTypeNorm != nil {
		t.Fatal("invalid items must never be touched by a pass")
	}
}

func TestClassifyUpload_Repeatable(t *testing.T) {
	uploadID := uuid.New()
	invoices := &fakeInvoiceRepo{
		upload: &invoicerepo.InvoiceUpload{ID: uploadID},
		items:  []*invoicerepo.InvoiceLineItem{validItem("Fuel"), validItem("Handling")},
	}
	rules := &fakeRulesRepo{rules: []classify.Rule{
		{ID: 1, Pattern: "fuel", MatchType: classify.MatchContains, Category: "FUEL", Priority: 1, Enabled: true},
	}}

	svc := NewService(rules, invoices, testLogger())
	first, err := svc.ClassifyUpload(context.Background(), uploadID)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := svc.ClassifyUpload(context.Background(), uploadID)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if *first != *second {
		t.Fatalf("passes disagree: %+v vs %+v", first, second)
	}
}

func TestClassifyUpload_ClearsStaleCategories(t *testing.T) {
	uploadID := uuid.New()
	stale := "OLD"
	item := validItem("Mystery")
	item.FeeTypeNorm = &stale
	invoices := &fakeInvoiceRepo{
		upload: &invoicerepo.InvoiceUpload{ID: uploadID},
		items:  []*invoicerepo.InvoiceLineItem{item},
	}

	svc := NewService(&fakeRulesRepo{}, invoices, testLogger())
	result, err := svc.ClassifyUpload(context.Background(), uploadID)
	if err != nil {
		t.Fatalf("ClassifyUpload: %v", err)
	}
	if result.RowsUnclassified != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if item.FeeTypeNorm != nil {
		t.Fatalf("stale category should be cleared, got %q", *item.FeeTypeNorm)
	}
}

func TestClassifyUpload_NotFound(t *testing.T) {
	svc := NewService(&fakeRulesRepo{}, &fakeInvoiceRepo{}, testLogger())

	_, err := svc.ClassifyUpload(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
