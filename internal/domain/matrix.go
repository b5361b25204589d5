package domain

import "time"

// AclState is the tri-state value of a single pairwise ACL cell.
type AclState byte

const (
	// StateUndefined - 0 - no explicit decision recorded (default).
	StateUndefined AclState = 0
	// StateDenied - 1 - the pair is not allowed to communicate.
	StateDenied AclState = 1
	// StateAllowed - 2 - the pair is allowed to communicate.
	StateAllowed AclState = 2
)

// Valid reports whether the value is one of the three defined states.
func (s AclState) Valid() bool {
	return s <= StateAllowed
}

func (s AclState) String() string {
	switch s {
	case StateDenied:
		return "denied"
	case StateAllowed:
		return "allowed"
	default:
		return "undefined"
	}
}

// AclMatrix is the pairwise permission relation of a network, keyed by
// entity ID in both dimensions. The relation is symmetric: M[a][b] and
// M[b][a] always hold the same state.
type AclMatrix map[string]map[string]AclState

// Get returns the stored state for a pair, StateUndefined when the
// pair has no entry.
func (m AclMatrix) Get(a, b string) AclState {
	if row, ok := m[a]; ok {
		return row[b]
	}
	return StateUndefined
}

// AclVersion is an audit record of a submitted matrix. The matrix is
// kept as rendered JSON so old versions survive schema drift.
type AclVersion struct {
	ID            string    `json:"id" db:"id"`
	NetworkID     string    `json:"network_id" db:"network_id"`
	VersionNumber int       `json:"version_number" db:"version_number"`
	Matrix        string    `json:"matrix" db:"matrix"` // JSON-rendered AclMatrix
	SubmittedBy   string    `json:"submitted_by,omitempty" db:"submitted_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
