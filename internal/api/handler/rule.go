package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
	"github.com/netgrid/mesh-acl-manager/internal/rules"
	"github.com/netgrid/mesh-acl-manager/internal/service"
)

// RuleHandler handles policy rule endpoints.
type RuleHandler struct {
	rules *rules.Service
	sync  *service.DirectorySync
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(ruleService *rules.Service, sync *service.DirectorySync) *RuleHandler {
	return &RuleHandler{rules: ruleService, sync: sync}
}

// Create creates a new policy rule.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	networkID := chi.URLParam(r, "network_id")
	if networkID == "" {
		respondError(w, http.StatusBadRequest, "network_id is required")
		return
	}

	var req domain.CreatePolicyRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.rules.Create(r.Context(), networkID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	// Tag deletion upstream can orphan selector entries; nudge a
	// directory refresh so dependent read models catch up.
	h.sync.TriggerSync()

	respondJSON(w, http.StatusCreated, rule)
}

// List lists all policy rules for a network.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	networkID := chi.URLParam(r, "network_id")
	if networkID == "" {
		respondError(w, http.StatusBadRequest, "network_id is required")
		return
	}

	ruleList, err := h.rules.ListByNetwork(r.Context(), networkID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ruleList)
}

// Get gets a policy rule by ID within a network.
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	networkID := chi.URLParam(r, "network_id")
	id := chi.URLParam(r, "id")
	if networkID == "" || id == "" {
		respondError(w, http.StatusBadRequest, "network_id and id are required")
		return
	}

	rule, err := h.rules.Get(r.Context(), networkID, id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Update updates a policy rule.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	networkID := chi.URLParam(r, "network_id")
	id := chi.URLParam(r, "id")
	if networkID == "" || id == "" {
		respondError(w, http.StatusBadRequest, "network_id and id are required")
		return
	}

	var req domain.UpdatePolicyRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.rules.Update(r.Context(), networkID, id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	h.sync.TriggerSync()

	respondJSON(w, http.StatusOK, rule)
}

// Delete deletes a policy rule.
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	networkID := chi.URLParam(r, "network_id")
	id := chi.URLParam(r, "id")
	if networkID == "" || id == "" {
		respondError(w, http.StatusBadRequest, "network_id and id are required")
		return
	}

	if err := h.rules.Delete(r.Context(), networkID, id); err != nil {
		handleError(w, err)
		return
	}

	h.sync.TriggerSync()

	w.WriteHeader(http.StatusNoContent)
}
