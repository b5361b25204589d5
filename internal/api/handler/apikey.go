package handler

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
	"github.com/netgrid/mesh-acl-manager/internal/storage"
)

// keyPrefixLen keeps "acl_" plus the first 8 hex chars as a
// displayable fingerprint.
const keyPrefixLen = 12

// APIKeyHandler handles operator credential endpoints.
type APIKeyHandler struct {
	store storage.Storage
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(store storage.Storage) *APIKeyHandler {
	return &APIKeyHandler{store: store}
}

// mintAPIKey generates a random key and a record holding only its
// SHA-256 hash. The raw key is returned once and never persisted.
func mintAPIKey(name string) (*domain.APIKey, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", err
	}
	raw := "acl_" + hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(raw))

	return &domain.APIKey{
		ID:        uuid.New().String(),
		Name:      name,
		KeyHash:   hex.EncodeToString(sum[:]),
		KeyPrefix: raw[:keyPrefixLen],
		CreatedAt: time.Now(),
	}, raw, nil
}

// Create mints a new API key. The raw key appears in this response
// and nowhere else.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	apiKey, raw, err := mintAPIKey(req.Name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}
	if err := h.store.CreateAPIKey(r.Context(), apiKey); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, &domain.CreateAPIKeyResponse{
		ID:        apiKey.ID,
		Name:      apiKey.Name,
		Key:       raw,
		KeyPrefix: apiKey.KeyPrefix,
		CreatedAt: apiKey.CreatedAt,
	})
}

// List lists all API keys. Raw keys and hashes are never included.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, keys)
}

// Delete revokes an API key.
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.store.DeleteAPIKey(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
