package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netgrid/mesh-acl-manager/internal/service"
	"github.com/netgrid/mesh-acl-manager/internal/storage"
)

// NetworkHandler handles the read-only directory endpoints: networks,
// entities and tags mirrored from the upstream controller.
type NetworkHandler struct {
	store storage.Storage
	sync  *service.DirectorySync
}

// NewNetworkHandler creates a new NetworkHandler.
func NewNetworkHandler(store storage.Storage, sync *service.DirectorySync) *NetworkHandler {
	return &NetworkHandler{store: store, sync: sync}
}

// List lists all known networks.
func (h *NetworkHandler) List(w http.ResponseWriter, r *http.Request) {
	networks, err := h.store.ListNetworks(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, networks)
}

// ListEntities lists a network's entities.
func (h *NetworkHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	networkID := chi.URLParam(r, "network_id")
	if networkID == "" {
		respondError(w, http.StatusBadRequest, "network_id is required")
		return
	}

	if _, err := h.store.GetNetwork(r.Context(), networkID); err != nil {
		handleError(w, err)
		return
	}

	entities, err := h.store.ListEntities(r.Context(), networkID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entities)
}

// ListTags lists a network's tags.
func (h *NetworkHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	networkID := chi.URLParam(r, "network_id")
	if networkID == "" {
		respondError(w, http.StatusBadRequest, "network_id is required")
		return
	}

	if _, err := h.store.GetNetwork(r.Context(), networkID); err != nil {
		handleError(w, err)
		return
	}

	tags, err := h.store.ListTags(r.Context(), networkID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, tags)
}

// Sync forces an immediate directory refresh from the controller.
func (h *NetworkHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.ForceSync(r.Context()); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}
