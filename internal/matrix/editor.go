package matrix

import (
	"context"
	"fmt"
	"sync"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
)

// SessionState is the edit/submit protocol state of an editing session.
type SessionState int

const (
	// StateClean means pending equals the server-confirmed baseline.
	StateClean SessionState = iota
	// StateDirty means pending edits exist that have not been submitted.
	StateDirty
	// StateSubmitting means a submit round trip is in flight.
	StateSubmitting
	// StateSubmitFailed means the last submit failed; pending edits are
	// intact and the session is effectively dirty.
	StateSubmitFailed
)

func (s SessionState) String() string {
	switch s {
	case StateDirty:
		return "dirty"
	case StateSubmitting:
		return "submitting"
	case StateSubmitFailed:
		return "submit-failed"
	default:
		return "clean"
	}
}

// EffectiveCell is the display/authorization value of a matrix cell
// after cascade and fixed-pair overrides, as opposed to the raw stored
// value.
type EffectiveCell int

const (
	// CellUndefined mirrors a raw StateUndefined cell.
	CellUndefined EffectiveCell = iota
	// CellDenied mirrors a raw StateDenied cell.
	CellDenied
	// CellAllowed mirrors a raw StateAllowed cell.
	CellAllowed
	// CellForcedDisabled marks a cell suppressed by the gateway-blocking
	// cascade: the client cannot reach its own ingress gateway, so every
	// other cell for it is moot. The raw value underneath is untouched.
	CellForcedDisabled
	// CellFixedAllowed marks a cell the matrix never enforces
	// (client-to-client pairs and the self diagonal); rendered allowed
	// and not editable.
	CellFixedAllowed
)

// Editable reports whether an operator may write through this cell.
func (c EffectiveCell) Editable() bool {
	return c != CellForcedDisabled && c != CellFixedAllowed
}

func (c EffectiveCell) String() string {
	switch c {
	case CellDenied:
		return "denied"
	case CellAllowed:
		return "allowed"
	case CellForcedDisabled:
		return "forced-disabled"
	case CellFixedAllowed:
		return "fixed-allowed"
	default:
		return "undefined"
	}
}

// ACLSubmitter sends a full pending matrix to the backend of record
// and returns the server's authoritative matrix.
type ACLSubmitter interface {
	PutACLs(ctx context.Context, networkID string, m domain.AclMatrix) (domain.AclMatrix, error)
}

// Predicate selects pairs for BulkSet. It is called once per unordered
// pair with a < b.
type Predicate func(a, b string) bool

// Editor is a single-operator editing session over one network's
// pairwise matrix. It holds the server-confirmed baseline and a
// pending working copy, and implements the edit/submit protocol.
//
// The session is single-writer; the mutex only guards the pending
// state against the in-flight submit goroutine.
type Editor struct {
	networkID string

	mu            sync.Mutex
	entities      map[string]*domain.Entity
	original      domain.AclMatrix
	pending       domain.AclMatrix
	submitting    bool
	lastSubmitErr error
}

// NewEditor builds a session from a directory snapshot and a server
// matrix snapshot. The snapshot is normalized: entries for entities
// the directory no longer knows are pruned, missing pairs default to
// StateUndefined.
func NewEditor(networkID string, entities []*domain.Entity, snapshot domain.AclMatrix) *Editor {
	byID := make(map[string]*domain.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}
	original := Normalize(entities, snapshot)
	return &Editor{
		networkID: networkID,
		entities:  byID,
		original:  original,
		pending:   Clone(original),
	}
}

// SetPair writes state into both directions of the pending matrix.
// Writing a pair to itself is a no-op. Unknown entity IDs return a
// StaleEntityError; the caller must refresh the directory first.
func (e *Editor) SetPair(a, b string, state domain.AclState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setPairLocked(a, b, state)
}

func (e *Editor) setPairLocked(a, b string, state domain.AclState) error {
	if e.submitting {
		return domain.ErrSubmitInProgress
	}
	if !state.Valid() {
		return fmt.Errorf("%w: acl state %d", domain.ErrInvalidInput, state)
	}
	if err := e.checkKnownLocked(a, b); err != nil {
		return err
	}
	if a == b {
		return nil
	}
	e.pending[a][b] = state
	e.pending[b][a] = state
	e.lastSubmitErr = nil
	return nil
}

// BulkSet applies state to every unordered pair satisfying the
// predicate. A nil predicate selects all pairs.
func (e *Editor) BulkSet(state domain.AclState, pred Predicate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := sortedIDs(e.pending)
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			if pred != nil && !pred(a, b) {
				continue
			}
			if err := e.setPairLocked(a, b, state); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reset discards pending edits, restoring the server-confirmed
// baseline. A no-op when the session is already clean.
func (e *Editor) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return domain.ErrSubmitInProgress
	}
	e.pending = Clone(e.original)
	e.lastSubmitErr = nil
	return nil
}

// IsDirty reports whether pending differs from the baseline.
func (e *Editor) IsDirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !Equal(e.pending, e.original)
}

// State returns the session's protocol state.
func (e *Editor) State() SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.submitting:
		return StateSubmitting
	case Equal(e.pending, e.original):
		return StateClean
	case e.lastSubmitErr != nil:
		return StateSubmitFailed
	default:
		return StateDirty
	}
}

// LastSubmitError returns the error from the most recent failed
// submit, nil after a successful submit or any subsequent edit.
func (e *Editor) LastSubmitError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSubmitErr
}

// EffectiveState derives the cell value an operator sees, which may
// override the raw stored value. Override precedence: the self
// diagonal and client-to-client pairs are fixed allowed; then the
// gateway-blocking cascade forces cells disabled; otherwise the raw
// pending value shows through.
func (e *Editor) EffectiveState(row, col string) (EffectiveCell, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkKnownLocked(row, col); err != nil {
		return CellUndefined, err
	}
	if row == col {
		return CellFixedAllowed, nil
	}

	re, ce := e.entities[row], e.entities[col]
	if re.IsClient() && ce.IsClient() {
		// The matrix does not support client-to-client enforcement and
		// must never claim otherwise.
		return CellFixedAllowed, nil
	}
	for _, pair := range [2][2]*domain.Entity{{re, ce}, {ce, re}} {
		self, other := pair[0], pair[1]
		if !self.IsClient() || other.ID == self.BoundGatewayID {
			continue
		}
		if e.pending.Get(self.ID, self.BoundGatewayID) == domain.StateDenied {
			return CellForcedDisabled, nil
		}
	}

	switch e.pending.Get(row, col) {
	case domain.StateDenied:
		return CellDenied, nil
	case domain.StateAllowed:
		return CellAllowed, nil
	default:
		return CellUndefined, nil
	}
}

// Pending returns a deep copy of the working matrix.
func (e *Editor) Pending() domain.AclMatrix {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Clone(e.pending)
}

// Original returns a deep copy of the server-confirmed baseline.
func (e *Editor) Original() domain.AclMatrix {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Clone(e.original)
}

// Submit sends the full pending matrix to the backend of record.
// Allowed only while dirty. On success both baseline and pending are
// replaced by the server's authoritative response (the server may
// apply its own derived overrides). On failure, including context
// cancellation, pending edits are left intact and the session drops
// back to dirty.
func (e *Editor) Submit(ctx context.Context, submitter ACLSubmitter) error {
	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		return domain.ErrSubmitInProgress
	}
	if Equal(e.pending, e.original) {
		e.mu.Unlock()
		return domain.ErrNoPendingChanges
	}
	snapshot := Clone(e.pending)
	e.submitting = true
	e.mu.Unlock()

	confirmed, err := submitter.PutACLs(ctx, e.networkID, snapshot)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitting = false
	if err != nil {
		e.lastSubmitErr = err
		return fmt.Errorf("%w: %w", domain.ErrSubmitFailed, err)
	}
	e.original = e.normalizeLocked(confirmed)
	e.pending = Clone(e.original)
	e.lastSubmitErr = nil
	return nil
}

// RefreshDirectory replaces the entity snapshot, pruning both matrices
// to the new entity set while preserving surviving pending edits. Call
// after a StaleEntityError.
func (e *Editor) RefreshDirectory(entities []*domain.Entity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return domain.ErrSubmitInProgress
	}
	byID := make(map[string]*domain.Entity, len(entities))
	for _, ent := range entities {
		byID[ent.ID] = ent
	}
	e.entities = byID
	e.original = e.normalizeLocked(e.original)
	e.pending = e.normalizeLocked(e.pending)
	return nil
}

func (e *Editor) normalizeLocked(m domain.AclMatrix) domain.AclMatrix {
	entities := make([]*domain.Entity, 0, len(e.entities))
	for _, ent := range e.entities {
		entities = append(entities, ent)
	}
	return Normalize(entities, m)
}

func (e *Editor) checkKnownLocked(ids ...string) error {
	for _, id := range ids {
		if _, ok := e.entities[id]; !ok {
			return &domain.StaleEntityError{EntityID: id}
		}
	}
	return nil
}
