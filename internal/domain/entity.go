package domain

// EntityKind distinguishes the two addressable endpoint types in a
// network's ACL scope.
type EntityKind string

const (
	// EntityNode is a full mesh member.
	EntityNode EntityKind = "node"
	// EntityClient is an external client tunneling in through an
	// ingress gateway.
	EntityClient EntityKind = "client"
)

// Entity is anything that can be a communication endpoint: a network
// node or an external client.
type Entity struct {
	ID             string     `json:"id" db:"id"`
	NetworkID      string     `json:"network_id" db:"network_id"`
	Kind           EntityKind `json:"kind" db:"kind"`
	Tags           []string   `json:"tags" db:"-"`                                      // Stored as JSON column
	BoundGatewayID string     `json:"bound_gateway_id,omitempty" db:"bound_gateway_id"` // Clients only, always set for clients
}

// IsClient reports whether the entity is an external client.
func (e *Entity) IsClient() bool {
	return e.Kind == EntityClient
}

// HasTag reports whether the entity carries the given tag.
func (e *Entity) HasTag(tagID string) bool {
	for _, t := range e.Tags {
		if t == tagID {
			return true
		}
	}
	return false
}

// Network is a mesh network as reported by the upstream controller.
// Networks are read-only here; their lifecycle belongs to the controller.
type Network struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Tag is a named label attachable to entities, used as a selector unit
// in rule-based policies. Scoped to one network.
type Tag struct {
	ID          string `json:"id" db:"id"`
	NetworkID   string `json:"network_id" db:"network_id"`
	DisplayName string `json:"display_name" db:"display_name"`
}

// Wildcard is the sentinel selector value meaning "all resources".
// It never refers to a real tag record.
const Wildcard = "*"
