package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
	"github.com/netgrid/mesh-acl-manager/internal/matrix"
	"github.com/netgrid/mesh-acl-manager/internal/storage"
)

// ACLService is the server side of the pairwise matrix: it serves the
// normalized matrix over the current directory and accepts full-matrix
// submissions. Concurrent submitters are last-writer-wins; the service
// does not merge conflicting sessions.
type ACLService struct {
	store storage.Storage
	log   zerolog.Logger
}

// NewACLService creates a new ACLService.
func NewACLService(store storage.Storage, log zerolog.Logger) *ACLService {
	return &ACLService{store: store, log: log}
}

// GetMatrix returns the stored matrix normalized over the network's
// current entity set: stale entries pruned, missing pairs undefined,
// symmetry guaranteed.
func (s *ACLService) GetMatrix(ctx context.Context, networkID string) (domain.AclMatrix, error) {
	if _, err := s.store.GetNetwork(ctx, networkID); err != nil {
		return nil, err
	}
	entities, err := s.store.ListEntities(ctx, networkID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.store.GetACLMatrix(ctx, networkID)
	if err != nil {
		return nil, err
	}
	return matrix.Normalize(entities, snapshot), nil
}

// SubmitMatrix accepts a full pending matrix from an editing session.
// Every entity ID in the payload must be present in the directory;
// otherwise the submission is rejected with a StaleEntityError and
// nothing is stored. On success the stored matrix and an audit version
// are written and the authoritative matrix (with server-derived
// overrides applied) is returned.
func (s *ACLService) SubmitMatrix(ctx context.Context, networkID string, submitted domain.AclMatrix, submittedBy string) (domain.AclMatrix, error) {
	if _, err := s.store.GetNetwork(ctx, networkID); err != nil {
		return nil, err
	}
	entities, err := s.store.ListEntities(ctx, networkID)
	if err != nil {
		return nil, err
	}

	known := make(map[string]*domain.Entity, len(entities))
	for _, e := range entities {
		known[e.ID] = e
	}
	for id, row := range submitted {
		if _, ok := known[id]; !ok {
			return nil, &domain.StaleEntityError{EntityID: id}
		}
		for other := range row {
			if _, ok := known[other]; !ok {
				return nil, &domain.StaleEntityError{EntityID: other}
			}
		}
	}

	authoritative := matrix.Normalize(entities, submitted)

	// Server-derived override: the matrix does not enforce
	// client-to-client traffic, so those cells are stored allowed.
	for rowID, row := range authoritative {
		if !known[rowID].IsClient() {
			continue
		}
		for colID := range row {
			if known[colID].IsClient() {
				authoritative[rowID][colID] = domain.StateAllowed
			}
		}
	}

	if err := s.store.PutACLMatrix(ctx, networkID, authoritative); err != nil {
		return nil, err
	}

	if err := s.recordVersion(ctx, networkID, authoritative, submittedBy); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("network", networkID).
		Str("submitted_by", submittedBy).
		Msg("acl matrix replaced")

	return authoritative, nil
}

// ListVersions returns the audit trail of submitted matrices, newest
// first.
func (s *ACLService) ListVersions(ctx context.Context, networkID string, limit, offset int) ([]*domain.AclVersion, error) {
	if _, err := s.store.GetNetwork(ctx, networkID); err != nil {
		return nil, err
	}
	return s.store.ListACLVersions(ctx, networkID, limit, offset)
}

func (s *ACLService) recordVersion(ctx context.Context, networkID string, m domain.AclMatrix, submittedBy string) error {
	rendered, err := json.Marshal(m)
	if err != nil {
		return err
	}

	nextVersion := 1
	latest, err := s.store.GetLatestACLVersion(ctx, networkID)
	if err == nil {
		nextVersion = latest.VersionNumber + 1
	} else if err != domain.ErrNotFound {
		return err
	}

	return s.store.CreateACLVersion(ctx, &domain.AclVersion{
		ID:            uuid.New().String(),
		NetworkID:     networkID,
		VersionNumber: nextVersion,
		Matrix:        string(rendered),
		SubmittedBy:   submittedBy,
		CreatedAt:     time.Now(),
	})
}
