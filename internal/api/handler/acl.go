package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/netgrid/mesh-acl-manager/internal/api/middleware"
	"github.com/netgrid/mesh-acl-manager/internal/domain"
	"github.com/netgrid/mesh-acl-manager/internal/service"
)

// ACLHandler handles the pairwise matrix endpoints.
type ACLHandler struct {
	acls *service.ACLService
}

// NewACLHandler creates a new ACLHandler.
func NewACLHandler(acls *service.ACLService) *ACLHandler {
	return &ACLHandler{acls: acls}
}

// Get returns the network's matrix, normalized over the current
// directory.
func (h *ACLHandler) Get(w http.ResponseWriter, r *http.Request) {
	networkID := chi.URLParam(r, "network_id")
	if networkID == "" {
		respondError(w, http.StatusBadRequest, "network_id is required")
		return
	}

	m, err := h.acls.GetMatrix(r.Context(), networkID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, m)
}

// Put replaces the network's matrix with the submitted pending matrix
// and returns the server's authoritative state.
func (h *ACLHandler) Put(w http.ResponseWriter, r *http.Request) {
	networkID := chi.URLParam(r, "network_id")
	if networkID == "" {
		respondError(w, http.StatusBadRequest, "network_id is required")
		return
	}

	var submitted domain.AclMatrix
	if err := decodeJSON(r, &submitted); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	submittedBy := ""
	if key := middleware.GetAPIKeyFromContext(r.Context()); key != nil {
		submittedBy = key.Name
	}

	authoritative, err := h.acls.SubmitMatrix(r.Context(), networkID, submitted, submittedBy)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, authoritative)
}

// ListVersions returns the audit trail of submitted matrices.
func (h *ACLHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	networkID := chi.URLParam(r, "network_id")
	if networkID == "" {
		respondError(w, http.StatusBadRequest, "network_id is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	versions, err := h.acls.ListVersions(r.Context(), networkID, limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, versions)
}
