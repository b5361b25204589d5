package storage

import (
	"context"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	CountAPIKeys(ctx context.Context) (int, error)

	// Networks (synced from the upstream controller)
	UpsertNetwork(ctx context.Context, network *domain.Network) error
	GetNetwork(ctx context.Context, id string) (*domain.Network, error)
	ListNetworks(ctx context.Context) ([]*domain.Network, error)
	DeleteNetwork(ctx context.Context, id string) error

	// Entities (directory snapshot, replaced wholesale on sync)
	ReplaceEntities(ctx context.Context, networkID string, entities []*domain.Entity) error
	ListEntities(ctx context.Context, networkID string) ([]*domain.Entity, error)
	GetEntity(ctx context.Context, networkID, id string) (*domain.Entity, error)

	// Tags (directory snapshot, replaced wholesale on sync)
	ReplaceTags(ctx context.Context, networkID string, tags []*domain.Tag) error
	ListTags(ctx context.Context, networkID string) ([]*domain.Tag, error)

	// Policy Rules
	CreatePolicyRule(ctx context.Context, rule *domain.PolicyRule) error
	GetPolicyRule(ctx context.Context, id string) (*domain.PolicyRule, error)
	ListPolicyRules(ctx context.Context, networkID string) ([]*domain.PolicyRule, error)
	UpdatePolicyRule(ctx context.Context, rule *domain.PolicyRule) error
	DeletePolicyRule(ctx context.Context, id string) error

	// ACL Matrices (one blob per network; missing means empty matrix)
	GetACLMatrix(ctx context.Context, networkID string) (domain.AclMatrix, error)
	PutACLMatrix(ctx context.Context, networkID string, m domain.AclMatrix) error

	// ACL Versions (audit trail of submitted matrices)
	CreateACLVersion(ctx context.Context, version *domain.AclVersion) error
	GetLatestACLVersion(ctx context.Context, networkID string) (*domain.AclVersion, error)
	ListACLVersions(ctx context.Context, networkID string, limit, offset int) ([]*domain.AclVersion, error)
}
