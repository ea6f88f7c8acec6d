// Package handler exposes classification rule management over JSON HTTP.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/freightwatch/threepl-audit/internal/domain/classify"
	"github.com/freightwatch/threepl-audit/internal/domain/classify/repository"
	"github.com/freightwatch/threepl-audit/internal/domain/common"
)

// RulesHandler serves CRUD for the shared classification rule set.
type RulesHandler struct {
	repo   repository.RulesRepository
	logger *slog.Logger
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(repo repository.RulesRepository, logger *slog.Logger) *RulesHandler {
	return &RulesHandler{repo: repo, logger: logger}
}

type ruleRequest struct {
	Pattern   string `json:"pattern"`
	MatchType string `json:"match_type"`
	Category  string `json:"category"`
	Priority  int    `json:"priority"`
	Enabled   *bool  `json:"enabled"`
}

// CreateRule handles POST /rules.
func (h *RulesHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRule(w, r)
	if !ok {
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule := &classify.Rule{
		Pattern:   req.Pattern,
		MatchType: classify.MatchType(req.MatchType),
		Category:  req.Category,
		Priority:  req.Priority,
		Enabled:   enabled,
	}
	if err := h.repo.CreateRule(r.Context(), rule); err != nil {
		h.internalError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, rule)
}

// ListRules handles GET /rules.
func (h *RulesHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.repo.ListRules(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}
	if rules == nil {
		rules = []classify.Rule{}
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// GetRule handles GET /rules/{id}.
func (h *RulesHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ruleID(w, r)
	if !ok {
		return
	}

	rule, err := h.repo.GetRuleByID(r.Context(), id)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if rule == nil {
		common.WriteError(w, http.StatusNotFound, "NOT_FOUND", "rule not found")
		return
	}
	common.WriteJSON(w, http.StatusOK, rule)
}

// UpdateRule handles PUT /rules/{id}.
func (h *RulesHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ruleID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeRule(w, r)
	if !ok {
		return
	}

	rule, err := h.repo.GetRuleByID(r.Context(), id)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if rule == nil {
		common.WriteError(w, http.StatusNotFound, "NOT_FOUND", "rule not found")
		return
	}

	rule.Pattern = req.Pattern
	rule.MatchType = classify.MatchType(req.MatchType)
	rule.Category = req.Category
	rule.Priority = req.Priority
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if err := h.repo.UpdateRule(r.Context(), rule); err != nil {
		h.internalError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, rule)
}

func (h *RulesHandler) decodeRule(w http.ResponseWriter, r *http.Request) (*ruleRequest, bool) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "body must be a JSON rule")
		return nil, false
	}
	if !classify.ValidMatchType(req.MatchType) {
		common.WriteError(w, http.StatusUnprocessableEntity, "INVALID_MATCH_TYPE",
			`match_type must be one of "exact", "contains", "regex"`)
		return nil, false
	}
	if req.Category == "" {
		common.WriteError(w, http.StatusUnprocessableEntity, "MISSING_CATEGORY", "category is required")
		return nil, false
	}
	return &req, true
}

func (h *RulesHandler) ruleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, "INVALID_ID", "rule id must be an integer")
		return 0, false
	}
	return id, true
}

func (h *RulesHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", "error", err)
	common.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
}
