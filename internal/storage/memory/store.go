package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
	"github.com/netgrid/mesh-acl-manager/internal/matrix"
)

// Store is an in-memory implementation of the storage interface for
// testing.
type Store struct {
	mu sync.RWMutex

	apiKeys     map[string]*domain.APIKey     // key: id
	networks    map[string]*domain.Network    // key: id
	entities    map[string][]*domain.Entity   // key: networkID
	tags        map[string][]*domain.Tag      // key: networkID
	policyRules map[string]*domain.PolicyRule // key: id
	matrices    map[string]domain.AclMatrix   // key: networkID
	aclVersions map[string]*domain.AclVersion // key: id
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		apiKeys:     make(map[string]*domain.APIKey),
		networks:    make(map[string]*domain.Network),
		entities:    make(map[string][]*domain.Entity),
		tags:        make(map[string][]*domain.Tag),
		policyRules: make(map[string]*domain.PolicyRule),
		matrices:    make(map[string]domain.AclMatrix),
		aclVersions: make(map[string]*domain.AclVersion),
	}
}

func (s *Store) Close() error { return nil }

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.apiKeys {
		if existing.KeyHash == key.KeyHash {
			return domain.ErrAlreadyExists
		}
	}
	s.apiKeys[key.ID] = key
	return nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.apiKeys {
		if key.KeyHash == keyHash {
			return key, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]*domain.APIKey, 0, len(s.apiKeys))
	for _, key := range s.apiKeys {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })
	return keys, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apiKeys[id]; !exists {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, exists := s.apiKeys[id]
	if !exists {
		return domain.ErrNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	return nil
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apiKeys), nil
}

// ============================================
// Networks
// ============================================

func (s *Store) UpsertNetwork(ctx context.Context, network *domain.Network) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[network.ID] = network
	return nil
}

func (s *Store) GetNetwork(ctx context.Context, id string) (*domain.Network, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	network, exists := s.networks[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return network, nil
}

func (s *Store) ListNetworks(ctx context.Context) ([]*domain.Network, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	networks := make([]*domain.Network, 0, len(s.networks))
	for _, network := range s.networks {
		networks = append(networks, network)
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i].Name < networks[j].Name })
	return networks, nil
}

func (s *Store) DeleteNetwork(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.networks[id]; !exists {
		return domain.ErrNotFound
	}
	delete(s.networks, id)
	delete(s.entities, id)
	delete(s.tags, id)
	delete(s.matrices, id)
	return nil
}

// ============================================
// Entities
// ============================================

func (s *Store) ReplaceEntities(ctx context.Context, networkID string, entities []*domain.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]*domain.Entity, len(entities))
	for i, e := range entities {
		clone := *e
		clone.NetworkID = networkID
		clone.Tags = append([]string(nil), e.Tags...)
		copied[i] = &clone
	}
	sort.Slice(copied, func(i, j int) bool { return copied[i].ID < copied[j].ID })
	s.entities[networkID] = copied
	return nil
}

func (s *Store) ListEntities(ctx context.Context, networkID string) ([]*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Entity(nil), s.entities[networkID]...), nil
}

func (s *Store) GetEntity(ctx context.Context, networkID, id string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities[networkID] {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ============================================
// Tags
// ============================================

func (s *Store) ReplaceTags(ctx context.Context, networkID string, tags []*domain.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]*domain.Tag, len(tags))
	for i, t := range tags {
		clone := *t
		clone.NetworkID = networkID
		copied[i] = &clone
	}
	sort.Slice(copied, func(i, j int) bool { return copied[i].ID < copied[j].ID })
	s.tags[networkID] = copied
	return nil
}

func (s *Store) ListTags(ctx context.Context, networkID string) ([]*domain.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Tag(nil), s.tags[networkID]...), nil
}

// ============================================
// Policy Rules
// ============================================

func (s *Store) CreatePolicyRule(ctx context.Context, rule *domain.PolicyRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policyRules[rule.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.policyRules[rule.ID] = rule.Clone()
	return nil
}

func (s *Store) GetPolicyRule(ctx context.Context, id string) (*domain.PolicyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, exists := s.policyRules[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return rule.Clone(), nil
}

func (s *Store) ListPolicyRules(ctx context.Context, networkID string) ([]*domain.PolicyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules := make([]*domain.PolicyRule, 0)
	for _, rule := range s.policyRules {
		if rule.NetworkID == networkID {
			rules = append(rules, rule.Clone())
		}
	}
	// Stable insertion order
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func (s *Store) UpdatePolicyRule(ctx context.Context, rule *domain.PolicyRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policyRules[rule.ID]; !exists {
		return domain.ErrNotFound
	}
	s.policyRules[rule.ID] = rule.Clone()
	return nil
}

func (s *Store) DeletePolicyRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policyRules[id]; !exists {
		return domain.ErrNotFound
	}
	delete(s.policyRules, id)
	return nil
}

// ============================================
// ACL Matrices
// ============================================

func (s *Store) GetACLMatrix(ctx context.Context, networkID string) (domain.AclMatrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, exists := s.matrices[networkID]
	if !exists {
		return domain.AclMatrix{}, nil
	}
	return matrix.Clone(m), nil
}

func (s *Store) PutACLMatrix(ctx context.Context, networkID string, m domain.AclMatrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrices[networkID] = matrix.Clone(m)
	return nil
}

// ============================================
// ACL Versions
// ============================================

func (s *Store) CreateACLVersion(ctx context.Context, version *domain.AclVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.aclVersions[version.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.aclVersions[version.ID] = version
	return nil
}

func (s *Store) GetLatestACLVersion(ctx context.Context, networkID string) (*domain.AclVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.AclVersion
	for _, v := range s.aclVersions {
		if v.NetworkID != networkID {
			continue
		}
		if latest == nil || v.VersionNumber > latest.VersionNumber {
			latest = v
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (s *Store) ListACLVersions(ctx context.Context, networkID string, limit, offset int) ([]*domain.AclVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := make([]*domain.AclVersion, 0)
	for _, v := range s.aclVersions {
		if v.NetworkID == networkID {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].VersionNumber > versions[j].VersionNumber })
	if offset >= len(versions) {
		return []*domain.AclVersion{}, nil
	}
	versions = versions[offset:]
	if limit > 0 && limit < len(versions) {
		versions = versions[:limit]
	}
	return versions, nil
}
