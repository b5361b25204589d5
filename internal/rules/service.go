// Package rules implements the policy rule store: validated CRUD over
// a network's declarative access rules.
package rules

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
	"github.com/netgrid/mesh-acl-manager/internal/storage"
	"github.com/netgrid/mesh-acl-manager/internal/validation"
)

// Service validates and persists policy rules. Validation runs before
// any storage write; an invalid rule never reaches the store.
type Service struct {
	store storage.Storage
}

// New creates a new rule service.
func New(store storage.Storage) *Service {
	return &Service{store: store}
}

// Create validates and persists a new rule, assigning its ID.
func (s *Service) Create(ctx context.Context, networkID string, req *domain.CreatePolicyRuleRequest) (*domain.PolicyRule, error) {
	if _, err := s.store.GetNetwork(ctx, networkID); err != nil {
		return nil, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := time.Now()
	rule := &domain.PolicyRule{
		ID:                  uuid.New().String(),
		NetworkID:           networkID,
		Name:                req.Name,
		PolicyType:          req.PolicyType,
		Enabled:             enabled,
		SourceSelector:      req.SourceSelector,
		DestinationSelector: req.DestinationSelector,
		Direction:           req.Direction,
		ProtocolName:        req.ProtocolName,
		TransportType:       req.TransportType,
		Ports:               req.Ports,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if errs := validation.ValidateRule(rule); errs.HasErrors() {
		return nil, errs
	}
	if err := s.store.CreatePolicyRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Update applies the non-nil fields of the request to an existing
// rule and revalidates the whole rule before persisting.
func (s *Service) Update(ctx context.Context, networkID, id string, req *domain.UpdatePolicyRuleRequest) (*domain.PolicyRule, error) {
	stored, err := s.get(ctx, networkID, id)
	if err != nil {
		return nil, err
	}

	// Apply the request to a copy so a failed validation leaves the
	// stored rule untouched.
	rule := stored.Clone()
	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.SourceSelector != nil {
		rule.SourceSelector = req.SourceSelector
	}
	if req.DestinationSelector != nil {
		rule.DestinationSelector = req.DestinationSelector
	}
	if req.Direction != nil {
		rule.Direction = *req.Direction
	}
	if req.ProtocolName != nil {
		rule.ProtocolName = *req.ProtocolName
	}
	if req.TransportType != nil {
		rule.TransportType = *req.TransportType
	}
	if req.Ports != nil {
		rule.Ports = req.Ports
	}
	rule.UpdatedAt = time.Now()

	if errs := validation.ValidateRule(rule); errs.HasErrors() {
		return nil, errs
	}
	if err := s.store.UpdatePolicyRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Get returns a rule by ID. A rule belonging to a different network
// is reported as not found.
func (s *Service) Get(ctx context.Context, networkID, id string) (*domain.PolicyRule, error) {
	return s.get(ctx, networkID, id)
}

func (s *Service) get(ctx context.Context, networkID, id string) (*domain.PolicyRule, error) {
	rule, err := s.store.GetPolicyRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.NetworkID != networkID {
		return nil, domain.ErrNotFound
	}
	return rule, nil
}

// Delete removes a rule. Deleting an absent rule is an error, not a
// no-op.
func (s *Service) Delete(ctx context.Context, networkID, id string) error {
	if _, err := s.get(ctx, networkID, id); err != nil {
		return err
	}
	return s.store.DeletePolicyRule(ctx, id)
}

// ListByNetwork returns a network's rules in stable insertion order.
// Selector entries whose tag no longer exists are returned verbatim;
// consumers display the raw value when it cannot be resolved to a
// display name.
func (s *Service) ListByNetwork(ctx context.Context, networkID string) ([]*domain.PolicyRule, error) {
	if _, err := s.store.GetNetwork(ctx, networkID); err != nil {
		return nil, err
	}
	return s.store.ListPolicyRules(ctx, networkID)
}
