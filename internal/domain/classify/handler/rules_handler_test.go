package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightwatch/threepl-audit/internal/domain/classify"
)

type fakeRulesRepo struct {
	nextID int64
	rules  map[int64]*classify.Rule
}

func newFakeRulesRepo() *fakeRulesRepo {
	return &fakeRulesRepo{nextID: 1, rules: make(map[int64]*classify.Rule)}
}

func (f *fakeRulesRepo) CreateRule(_ context.Context, rule *classify.Rule) error {
	rule.ID = f.nextID
	f.nextID++
	stored := *rule
	f.rules[rule.ID] = &stored
	return nil
}

func (f *fakeRulesRepo) GetRuleByID(_ context.Context, id int64) (*classify.Rule, error) {
	rule, ok := f.rules[id]
	if !ok {
		return nil, nil
	}
	copied := *rule
	return &copied, nil
}

func (f *fakeRulesRepo) ListRules(context.Context) ([]classify.Rule, error) {
	var out []classify.Rule
	for _, rule := range f.rules {
		out = append(out, *rule)
	}
	return out, nil
}

func (f *fakeRulesRepo) UpdateRule(_ context.Context, rule *classify.Rule) error {
	stored := *rule
	f.rules[rule.ID] = &stored
	return nil
}

func (f *fakeRulesRepo) ListEnabledRulesOrdered(context.Context) ([]classify.Rule, error) {
	return f.ListRules(context.Background())
}

func newTestMux(repo *fakeRulesRepo) *http.ServeMux {
	h := NewRulesHandler(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rules", h.CreateRule)
	mux.HandleFunc("GET /rules", h.ListRules)
	mux.HandleFunc("GET /rules/{id}", h.GetRule)
	mux.HandleFunc("PUT /rules/{id}", h.UpdateRule)
	return mux
}

func TestCreateRule(t *testing.T) {
	mux := newTestMux(newFakeRulesRepo())

	body := `{"pattern":"fuel","match_type":"contains","category":"FUEL_SURCHARGE","priority":10}`
	req := httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var rule classify.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rule))
	assert.Equal(t, int64(1), rule.ID)
	assert.Equal(t, classify.MatchContains, rule.MatchType)
	assert.True(t, rule.Enabled, "enabled should default to true")
}

func TestCreateRule_InvalidMatchType(t *testing.T) {
	mux := newTestMux(newFakeRulesRepo())

	body := `{"pattern":"fuel","match_type":"fuzzy","category":"FUEL"}`
	req := httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_MATCH_TYPE")
}

func TestCreateRule_MissingCategory(t *testing.T) {
	mux := newTestMux(newFakeRulesRepo())

	body := `{"pattern":"fuel","match_type":"contains"}`
	req := httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_CATEGORY")
}

func TestGetRule_NotFound(t *testing.T) {
	mux := newTestMux(newFakeRulesRepo())

	req := httptest.NewRequest(http.MethodGet, "/rules/99", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestUpdateRule(t *testing.T) {
	repo := newFakeRulesRepo()
	repo.rules[1] = &classify.Rule{
		ID: 1, Pattern: "fuel", MatchType: classify.MatchContains,
		Category: "FUEL", Priority: 1, Enabled: true,
	}
	repo.nextID = 2
	mux := newTestMux(repo)

	body := `{"pattern":"fuel surcharge","match_type":"exact","category":"FUEL_EXACT","priority":20,"enabled":false}`
	req := httptest.NewRequest(http.MethodPut, "/rules/1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	stored := repo.rules[1]
	assert.Equal(t, "fuel surcharge", stored.Pattern)
	assert.Equal(t, classify.MatchExact, stored.MatchType)
	assert.Equal(t, 20, stored.Priority)
	assert.False(t, stored.Enabled)
}

func TestUpdateRule_BadID(t *testing.T) {
	mux := newTestMux(newFakeRulesRepo())

	body := `{"pattern":"x","match_type":"exact","category":"X"}`
	req := httptest.NewRequest(http.MethodPut, "/rules/abc", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_ID")
}
