package domain

import "time"

// PolicyType distinguishes device-to-device rules from identity-based
// rules.
type PolicyType string

const (
	// PolicyDevice grants access between tagged devices.
	PolicyDevice PolicyType = "device-policy"
	// PolicyUser grants users or user groups access to tagged resources.
	PolicyUser PolicyType = "user-policy"
)

// TrafficDirection denotes the traffic flow a rule allows.
type TrafficDirection int

const (
	// DirectionUnidirectional allows source-to-destination traffic only.
	DirectionUnidirectional TrafficDirection = 0
	// DirectionBidirectional allows traffic both ways.
	DirectionBidirectional TrafficDirection = 1
)

// SelectorKind is the type of a selector entry.
type SelectorKind string

const (
	SelectorTag       SelectorKind = "tag"
	SelectorUser      SelectorKind = "user"
	SelectorUserGroup SelectorKind = "user-group"
)

// SelectorEntry is one element of a rule's source or destination
// selector. The wire field for the kind is "id", matching the backend
// of record.
type SelectorEntry struct {
	Kind  SelectorKind `json:"id"`
	Value string       `json:"value"`
}

// IsWildcard reports whether the entry is the all-resources sentinel.
func (e SelectorEntry) IsWildcard() bool {
	return e.Value == Wildcard
}

// PolicyRule is a named, declarative authorization rule. Rules are
// purely additive: a flow is authorized iff at least one enabled rule
// matches it, and there is no deny rule type.
type PolicyRule struct {
	ID                  string           `json:"id" db:"id"`
	NetworkID           string           `json:"network_id" db:"network_id"`
	Name                string           `json:"name" db:"name"`
	PolicyType          PolicyType       `json:"policy_type" db:"policy_type"`
	Enabled             bool             `json:"enabled" db:"enabled"`
	SourceSelector      []SelectorEntry  `json:"src_type" db:"-"` // Stored as JSON column
	DestinationSelector []SelectorEntry  `json:"dst_type" db:"-"` // Stored as JSON column; always tag-based
	Direction           TrafficDirection `json:"allowed_traffic_direction" db:"direction"`
	ProtocolName        string           `json:"protocol,omitempty" db:"protocol_name"` // User policies only; see Services
	TransportType       string           `json:"type,omitempty" db:"transport_type"`    // "tcp" or "udp"
	Ports               []string         `json:"ports,omitempty" db:"-"`                // Single ports or ranges; stored as JSON column
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy of the rule, including its selector and
// port slices.
func (r *PolicyRule) Clone() *PolicyRule {
	clone := *r
	clone.SourceSelector = append([]SelectorEntry(nil), r.SourceSelector...)
	clone.DestinationSelector = append([]SelectorEntry(nil), r.DestinationSelector...)
	clone.Ports = append([]string(nil), r.Ports...)
	return &clone
}

// CreatePolicyRuleRequest is the request body for creating a rule.
type CreatePolicyRuleRequest struct {
	Name                string           `json:"name"`
	PolicyType          PolicyType       `json:"policy_type"`
	Enabled             *bool            `json:"enabled,omitempty"` // Defaults to true
	SourceSelector      []SelectorEntry  `json:"src_type"`
	DestinationSelector []SelectorEntry  `json:"dst_type"`
	Direction           TrafficDirection `json:"allowed_traffic_direction"`
	ProtocolName        string           `json:"protocol,omitempty"`
	TransportType       string           `json:"type,omitempty"`
	Ports               []string         `json:"ports,omitempty"`
}

// UpdatePolicyRuleRequest is the request body for updating a rule.
// Nil fields are left unchanged.
type UpdatePolicyRuleRequest struct {
	Name                *string           `json:"name,omitempty"`
	Enabled             *bool             `json:"enabled,omitempty"`
	SourceSelector      []SelectorEntry   `json:"src_type,omitempty"`
	DestinationSelector []SelectorEntry   `json:"dst_type,omitempty"`
	Direction           *TrafficDirection `json:"allowed_traffic_direction,omitempty"`
	ProtocolName        *string           `json:"protocol,omitempty"`
	TransportType       *string           `json:"type,omitempty"`
	Ports               []string          `json:"ports,omitempty"`
}
