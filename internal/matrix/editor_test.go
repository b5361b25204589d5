package matrix

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
)

// fakeSubmitter records the submitted matrix and returns a canned
// response or error.
type fakeSubmitter struct {
	received domain.AclMatrix
	response domain.AclMatrix
	err      error
}

func (f *fakeSubmitter) PutACLs(ctx context.Context, networkID string, m domain.AclMatrix) (domain.AclMatrix, error) {
	f.received = m
	if f.err != nil {
		return nil, f.err
	}
	if f.response != nil {
		return f.response, nil
	}
	return m, nil
}

// blockingSubmitter parks in PutACLs until released, to observe the
// in-flight session state.
type blockingSubmitter struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingSubmitter() *blockingSubmitter {
	return &blockingSubmitter{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingSubmitter) PutACLs(ctx context.Context, networkID string, m domain.AclMatrix) (domain.AclMatrix, error) {
	close(b.started)
	<-b.release
	return m, nil
}

func testEntities() []*domain.Entity {
	return []*domain.Entity{
		{ID: "gw", Kind: domain.EntityNode, Tags: []string{"tag-gw"}},
		{ID: "node-1", Kind: domain.EntityNode},
		{ID: "client-a", Kind: domain.EntityClient, BoundGatewayID: "gw"},
		{ID: "client-b", Kind: domain.EntityClient, BoundGatewayID: "gw"},
	}
}

func TestSetPairWritesBothDirections(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)

	if err := e.SetPair("node-1", "gw", domain.StateAllowed); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	pending := e.Pending()
	if pending.Get("node-1", "gw") != domain.StateAllowed {
		t.Errorf("Expected allowed, got %v", pending.Get("node-1", "gw"))
	}
	if pending.Get("gw", "node-1") != domain.StateAllowed {
		t.Errorf("Expected symmetric write, got %v", pending.Get("gw", "node-1"))
	}
	if !e.IsDirty() {
		t.Error("Expected session to be dirty after edit")
	}
	if e.State() != StateDirty {
		t.Errorf("Expected dirty state, got %v", e.State())
	}
}

func TestSetPairSelfIsNoOp(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)

	if err := e.SetPair("gw", "gw", domain.StateDenied); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}
	if e.IsDirty() {
		t.Error("Expected self pair write to leave the session clean")
	}
}

func TestSetPairUnknownEntity(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)

	err := e.SetPair("node-1", "ghost", domain.StateAllowed)
	var stale *domain.StaleEntityError
	if !errors.As(err, &stale) {
		t.Fatalf("Expected StaleEntityError, got %v", err)
	}
	if stale.EntityID != "ghost" {
		t.Errorf("Expected entity ghost, got %s", stale.EntityID)
	}
	if e.IsDirty() {
		t.Error("Expected failed write to leave the session clean")
	}
}

func TestSetPairInvalidState(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)

	err := e.SetPair("node-1", "gw", domain.AclState(7))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestBulkSet(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)

	// Allow everything touching the gateway
	err := e.BulkSet(domain.StateAllowed, func(a, b string) bool {
		return a == "gw" || b == "gw"
	})
	if err != nil {
		t.Fatalf("BulkSet failed: %v", err)
	}

	pending := e.Pending()
	if pending.Get("gw", "node-1") != domain.StateAllowed {
		t.Errorf("Expected gw/node-1 allowed, got %v", pending.Get("gw", "node-1"))
	}
	if pending.Get("node-1", "client-a") != domain.StateUndefined {
		t.Errorf("Expected unselected pair untouched, got %v", pending.Get("node-1", "client-a"))
	}

	// Nil predicate selects all pairs
	if err := e.BulkSet(domain.StateDenied, nil); err != nil {
		t.Fatalf("BulkSet failed: %v", err)
	}
	pending = e.Pending()
	if pending.Get("node-1", "client-a") != domain.StateDenied {
		t.Errorf("Expected all pairs denied, got %v", pending.Get("node-1", "client-a"))
	}
}

func TestResetRestoresBaseline(t *testing.T) {
	snapshot := domain.AclMatrix{"gw": {"node-1": domain.StateAllowed}}
	e := NewEditor("net-1", testEntities(), snapshot)

	if err := e.SetPair("gw", "node-1", domain.StateDenied); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}
	if err := e.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if e.IsDirty() {
		t.Error("Expected session to be clean after reset")
	}
	if e.Pending().Get("gw", "node-1") != domain.StateAllowed {
		t.Errorf("Expected baseline restored, got %v", e.Pending().Get("gw", "node-1"))
	}

	// Reset from clean is a no-op
	if err := e.Reset(); err != nil {
		t.Fatalf("Reset from clean failed: %v", err)
	}
	if e.State() != StateClean {
		t.Errorf("Expected clean state, got %v", e.State())
	}
}

func TestRevertingEditReturnsToClean(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)

	if err := e.SetPair("gw", "node-1", domain.StateAllowed); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}
	if err := e.SetPair("gw", "node-1", domain.StateUndefined); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}
	if e.State() != StateClean {
		t.Errorf("Expected clean after reverting the edit, got %v", e.State())
	}
}

func TestSubmitSuccess(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)
	if err := e.SetPair("gw", "node-1", domain.StateAllowed); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	sub := &fakeSubmitter{}
	if err := e.Submit(context.Background(), sub); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if sub.received.Get("gw", "node-1") != domain.StateAllowed {
		t.Errorf("Expected pending matrix submitted, got %v", sub.received.Get("gw", "node-1"))
	}
	if e.State() != StateClean {
		t.Errorf("Expected clean after submit, got %v", e.State())
	}
	if e.Original().Get("gw", "node-1") != domain.StateAllowed {
		t.Errorf("Expected baseline replaced, got %v", e.Original().Get("gw", "node-1"))
	}
}

func TestSubmitAdoptsServerOverrides(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)
	if err := e.SetPair("client-a", "client-b", domain.StateDenied); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	// Server stores client pairs allowed no matter what was submitted
	response := domain.AclMatrix{"client-a": {"client-b": domain.StateAllowed}}
	sub := &fakeSubmitter{response: response}
	if err := e.Submit(context.Background(), sub); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if e.Original().Get("client-a", "client-b") != domain.StateAllowed {
		t.Errorf("Expected server value adopted, got %v", e.Original().Get("client-a", "client-b"))
	}
	if e.State() != StateClean {
		t.Errorf("Expected clean after submit, got %v", e.State())
	}
}

func TestSubmitWithoutChanges(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)

	err := e.Submit(context.Background(), &fakeSubmitter{})
	if !errors.Is(err, domain.ErrNoPendingChanges) {
		t.Fatalf("Expected ErrNoPendingChanges, got %v", err)
	}
}

func TestSubmitFailureKeepsPendingEdits(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)
	if err := e.SetPair("gw", "node-1", domain.StateDenied); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	boom := errors.New("connection refused")
	err := e.Submit(context.Background(), &fakeSubmitter{err: boom})
	if !errors.Is(err, domain.ErrSubmitFailed) {
		t.Fatalf("Expected ErrSubmitFailed, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped transport error, got %v", err)
	}

	if e.State() != StateSubmitFailed {
		t.Errorf("Expected submit-failed state, got %v", e.State())
	}
	if e.LastSubmitError() == nil {
		t.Error("Expected last submit error to be recorded")
	}
	if e.Pending().Get("gw", "node-1") != domain.StateDenied {
		t.Errorf("Expected pending edits intact, got %v", e.Pending().Get("gw", "node-1"))
	}

	// A subsequent edit clears the failure marker
	if err := e.SetPair("gw", "node-1", domain.StateAllowed); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}
	if e.State() != StateDirty {
		t.Errorf("Expected dirty after edit, got %v", e.State())
	}
	if e.LastSubmitError() != nil {
		t.Error("Expected last submit error cleared by edit")
	}
}

func TestMutationsRejectedWhileSubmitting(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)
	if err := e.SetPair("gw", "node-1", domain.StateAllowed); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	sub := newBlockingSubmitter()
	done := make(chan error, 1)
	go func() { done <- e.Submit(context.Background(), sub) }()

	<-sub.started
	if e.State() != StateSubmitting {
		t.Errorf("Expected submitting state, got %v", e.State())
	}
	if err := e.SetPair("gw", "node-1", domain.StateDenied); !errors.Is(err, domain.ErrSubmitInProgress) {
		t.Errorf("Expected ErrSubmitInProgress from SetPair, got %v", err)
	}
	if err := e.Reset(); !errors.Is(err, domain.ErrSubmitInProgress) {
		t.Errorf("Expected ErrSubmitInProgress from Reset, got %v", err)
	}
	if err := e.Submit(context.Background(), sub); !errors.Is(err, domain.ErrSubmitInProgress) {
		t.Errorf("Expected ErrSubmitInProgress from Submit, got %v", err)
	}

	close(sub.release)
	if err := <-done; err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if e.State() != StateClean {
		t.Errorf("Expected clean after submit completes, got %v", e.State())
	}
}

func TestEffectiveStateOverrides(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)

	// Self diagonal is fixed allowed
	cell, err := e.EffectiveState("gw", "gw")
	if err != nil {
		t.Fatalf("EffectiveState failed: %v", err)
	}
	if cell != CellFixedAllowed {
		t.Errorf("Expected fixed-allowed diagonal, got %v", cell)
	}

	// Client pairs are fixed allowed even when the raw cell says denied
	if err := e.SetPair("client-a", "client-b", domain.StateDenied); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}
	cell, _ = e.EffectiveState("client-a", "client-b")
	if cell != CellFixedAllowed {
		t.Errorf("Expected fixed-allowed client pair, got %v", cell)
	}
	if cell.Editable() {
		t.Error("Expected fixed-allowed cell to be non-editable")
	}

	// Raw values show through for ordinary pairs
	if err := e.SetPair("gw", "node-1", domain.StateAllowed); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}
	cell, _ = e.EffectiveState("gw", "node-1")
	if cell != CellAllowed {
		t.Errorf("Expected allowed, got %v", cell)
	}

	cell, _ = e.EffectiveState("node-1", "client-a")
	if cell != CellUndefined {
		t.Errorf("Expected undefined, got %v", cell)
	}

	if _, err := e.EffectiveState("gw", "ghost"); err == nil {
		t.Error("Expected error for unknown entity")
	}
}

func TestGatewayBlockingCascade(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)

	// Deny the client its own ingress gateway: every other cell in the
	// client's row collapses.
	if err := e.SetPair("client-a", "gw", domain.StateDenied); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	cell, err := e.EffectiveState("client-a", "node-1")
	if err != nil {
		t.Fatalf("EffectiveState failed: %v", err)
	}
	if cell != CellForcedDisabled {
		t.Errorf("Expected forced-disabled, got %v", cell)
	}
	if cell.Editable() {
		t.Error("Expected forced-disabled cell to be non-editable")
	}

	// Both orientations of the same pair collapse
	cell, _ = e.EffectiveState("node-1", "client-a")
	if cell != CellForcedDisabled {
		t.Errorf("Expected forced-disabled for flipped orientation, got %v", cell)
	}

	// The gateway cell itself stays editable and shows its raw value
	cell, _ = e.EffectiveState("client-a", "gw")
	if cell != CellDenied {
		t.Errorf("Expected denied gateway cell, got %v", cell)
	}
	if !cell.Editable() {
		t.Error("Expected gateway cell to stay editable")
	}

	// Re-allowing the gateway lifts the cascade
	if err := e.SetPair("client-a", "gw", domain.StateAllowed); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}
	cell, _ = e.EffectiveState("client-a", "node-1")
	if cell != CellUndefined {
		t.Errorf("Expected cascade lifted, got %v", cell)
	}
}

func TestBulkAllowThenGatewayDeny(t *testing.T) {
	entities := []*domain.Entity{
		{ID: "n1", Kind: domain.EntityNode},
		{ID: "n2", Kind: domain.EntityNode},
		{ID: "c1", Kind: domain.EntityClient, BoundGatewayID: "n1"},
	}
	e := NewEditor("net-1", entities, nil)

	if err := e.BulkSet(domain.StateAllowed, nil); err != nil {
		t.Fatalf("BulkSet failed: %v", err)
	}
	pending := e.Pending()
	if pending.Get("n1", "n2") != domain.StateAllowed || pending.Get("n2", "n1") != domain.StateAllowed {
		t.Fatal("Expected node pair allowed both ways")
	}
	if pending.Get("c1", "n1") != domain.StateAllowed {
		t.Fatal("Expected client-gateway pair allowed")
	}

	if err := e.SetPair("c1", "n1", domain.StateDenied); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	// The cascade suppresses the cell while the raw value underneath
	// stays allowed.
	cell, err := e.EffectiveState("c1", "n2")
	if err != nil {
		t.Fatalf("EffectiveState failed: %v", err)
	}
	if cell != CellForcedDisabled {
		t.Errorf("Expected forced-disabled, got %v", cell)
	}
	if e.Pending().Get("c1", "n2") != domain.StateAllowed {
		t.Errorf("Expected raw value untouched, got %v", e.Pending().Get("c1", "n2"))
	}
}

func TestRefreshDirectory(t *testing.T) {
	e := NewEditor("net-1", testEntities(), nil)
	if err := e.SetPair("gw", "node-1", domain.StateAllowed); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}
	if err := e.SetPair("gw", "client-a", domain.StateDenied); err != nil {
		t.Fatalf("SetPair failed: %v", err)
	}

	// client-a left the network
	remaining := []*domain.Entity{
		{ID: "gw", Kind: domain.EntityNode},
		{ID: "node-1", Kind: domain.EntityNode},
		{ID: "client-b", Kind: domain.EntityClient, BoundGatewayID: "gw"},
	}
	if err := e.RefreshDirectory(remaining); err != nil {
		t.Fatalf("RefreshDirectory failed: %v", err)
	}

	pending := e.Pending()
	if _, ok := pending["client-a"]; ok {
		t.Error("Expected departed entity pruned from pending")
	}
	if pending.Get("gw", "node-1") != domain.StateAllowed {
		t.Errorf("Expected surviving edit preserved, got %v", pending.Get("gw", "node-1"))
	}

	// The departed entity can no longer be addressed
	err := e.SetPair("gw", "client-a", domain.StateAllowed)
	var stale *domain.StaleEntityError
	if !errors.As(err, &stale) {
		t.Fatalf("Expected StaleEntityError, got %v", err)
	}
}

func TestProperty_PendingStaysSymmetric(t *testing.T) {
	properties := gopter.NewProperties(nil)

	ids := []string{"gw", "node-1", "client-a", "client-b"}

	properties.Property("every edit keeps the pending matrix symmetric",
		prop.ForAll(
			func(picks []int, state domain.AclState) bool {
				e := NewEditor("net-1", testEntities(), nil)
				for _, p := range picks {
					a := ids[p%len(ids)]
					b := ids[(p/len(ids))%len(ids)]
					if err := e.SetPair(a, b, state); err != nil {
						return false
					}
				}
				pending := e.Pending()
				for row, cells := range pending {
					for col, s := range cells {
						if pending.Get(col, row) != s {
							return false
						}
					}
				}
				return true
			},
			gen.SliceOf(gen.IntRange(0, 1000)),
			genAclState(),
		))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ResetAlwaysRestoresBaseline(t *testing.T) {
	properties := gopter.NewProperties(nil)

	ids := []string{"gw", "node-1", "client-a", "client-b"}

	properties.Property("reset returns any edited session to its baseline",
		prop.ForAll(
			func(picks []int, state domain.AclState) bool {
				snapshot := domain.AclMatrix{"gw": {"node-1": domain.StateAllowed}}
				e := NewEditor("net-1", testEntities(), snapshot)
				baseline := e.Original()

				for _, p := range picks {
					a := ids[p%len(ids)]
					b := ids[(p/len(ids))%len(ids)]
					if err := e.SetPair(a, b, state); err != nil {
						return false
					}
				}
				if err := e.Reset(); err != nil {
					return false
				}
				return !e.IsDirty() && Equal(e.Pending(), baseline)
			},
			gen.SliceOf(gen.IntRange(0, 1000)),
			genAclState(),
		))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
