package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netgrid/mesh-acl-manager/internal/engine"
	"github.com/netgrid/mesh-acl-manager/internal/storage"
)

// QueryHandler answers ad-hoc reachability questions against the
// rule-based policy model.
type QueryHandler struct {
	store storage.Storage
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(store storage.Storage) *QueryHandler {
	return &QueryHandler{store: store}
}

// FlowQuery describes a candidate flow. SrcEntity is optional for
// user-policy questions where the source is an identity rather than a
// device.
type FlowQuery struct {
	SrcEntity string   `json:"src_entity,omitempty"`
	DstEntity string   `json:"dst_entity"`
	User      string   `json:"user,omitempty"`
	Groups    []string `json:"groups,omitempty"`
	Transport string   `json:"type,omitempty"`
	Port      string   `json:"port,omitempty"`
}

// FlowQueryResult is the answer to a flow query.
type FlowQueryResult struct {
	Authorized bool   `json:"authorized"`
	RuleID     string `json:"rule_id,omitempty"`
	RuleName   string `json:"rule_name,omitempty"`
}

// Query evaluates a flow against the network's enabled rules.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	networkID := chi.URLParam(r, "network_id")
	if networkID == "" {
		respondError(w, http.StatusBadRequest, "network_id is required")
		return
	}

	if _, err := h.store.GetNetwork(r.Context(), networkID); err != nil {
		handleError(w, err)
		return
	}

	var req FlowQuery
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DstEntity == "" {
		respondError(w, http.StatusBadRequest, "dst_entity is required")
		return
	}

	flow := engine.Flow{
		Src:       engine.Subject{User: req.User, Groups: req.Groups},
		Transport: req.Transport,
		Port:      req.Port,
	}
	if req.SrcEntity != "" {
		src, err := h.store.GetEntity(r.Context(), networkID, req.SrcEntity)
		if err != nil {
			handleError(w, err)
			return
		}
		flow.Src.Entity = src
	}
	dst, err := h.store.GetEntity(r.Context(), networkID, req.DstEntity)
	if err != nil {
		handleError(w, err)
		return
	}
	flow.Dst = engine.Subject{Entity: dst}

	ruleList, err := h.store.ListPolicyRules(r.Context(), networkID)
	if err != nil {
		handleError(w, err)
		return
	}

	result := FlowQueryResult{}
	if rule, ok := engine.FirstMatch(ruleList, flow); ok {
		result.Authorized = true
		result.RuleID = rule.ID
		result.RuleName = rule.Name
	}

	respondJSON(w, http.StatusOK, result)
}
