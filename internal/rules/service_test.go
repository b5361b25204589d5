package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
	"github.com/netgrid/mesh-acl-manager/internal/storage/memory"
	"github.com/netgrid/mesh-acl-manager/internal/validation"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	if err := store.UpsertNetwork(context.Background(), &domain.Network{ID: "net-1", Name: "prod"}); err != nil {
		t.Fatalf("Failed to seed network: %v", err)
	}
	return New(store), store
}

func createRequest() *domain.CreatePolicyRuleRequest {
	return &domain.CreatePolicyRuleRequest{
		Name:                "web to db",
		PolicyType:          domain.PolicyDevice,
		SourceSelector:      []domain.SelectorEntry{{Kind: domain.SelectorTag, Value: "tag-web"}},
		DestinationSelector: []domain.SelectorEntry{{Kind: domain.SelectorTag, Value: "tag-db"}},
		Direction:           domain.DirectionUnidirectional,
	}
}

func TestCreateAssignsIDAndDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rule, err := svc.Create(ctx, "net-1", createRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if rule.ID == "" {
		t.Error("Expected ID to be assigned")
	}
	if rule.NetworkID != "net-1" {
		t.Errorf("Expected network net-1, got %s", rule.NetworkID)
	}
	if !rule.Enabled {
		t.Error("Expected enabled to default to true")
	}
	if rule.CreatedAt.IsZero() || rule.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}
}

func TestCreateUnknownNetwork(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "ghost", createRequest())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestCreateInvalidRuleNeverStored(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	req := createRequest()
	req.SourceSelector = nil

	_, err := svc.Create(ctx, "net-1", req)
	var errs validation.ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("Expected ValidationErrors, got %v", err)
	}

	stored, _ := store.ListPolicyRules(ctx, "net-1")
	if len(stored) != 0 {
		t.Errorf("Expected nothing stored after validation failure, got %d rules", len(stored))
	}
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rule, err := svc.Create(ctx, "net-1", createRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	disabled := false
	updated, err := svc.Update(ctx, "net-1", rule.ID, &domain.UpdatePolicyRuleRequest{Enabled: &disabled})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if updated.Enabled {
		t.Error("Expected rule disabled")
	}
	if updated.Name != rule.Name {
		t.Errorf("Expected name untouched, got %s", updated.Name)
	}
	if len(updated.SourceSelector) != 1 {
		t.Errorf("Expected selector untouched, got %v", updated.SourceSelector)
	}
}

func TestUpdateRevalidatesWholeRule(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	rule, err := svc.Create(ctx, "net-1", createRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	empty := ""
	_, err = svc.Update(ctx, "net-1", rule.ID, &domain.UpdatePolicyRuleRequest{Name: &empty})
	var errs validation.ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("Expected ValidationErrors, got %v", err)
	}

	// A rejected selector replacement must not reach the store either.
	_, err = svc.Update(ctx, "net-1", rule.ID, &domain.UpdatePolicyRuleRequest{SourceSelector: []domain.SelectorEntry{}})
	if !errors.As(err, &errs) {
		t.Fatalf("Expected ValidationErrors, got %v", err)
	}

	// Stored rule keeps its old name and selector
	stored, err := store.GetPolicyRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("GetPolicyRule failed: %v", err)
	}
	if stored.Name != "web to db" {
		t.Errorf("Expected stored rule untouched, got name %q", stored.Name)
	}
	if len(stored.SourceSelector) != 1 || stored.SourceSelector[0].Value != "tag-web" {
		t.Errorf("Expected stored selector untouched, got %v", stored.SourceSelector)
	}
}

func TestDeleteAbsentRule(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Delete(context.Background(), "net-1", "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestRuleNotReachableAcrossNetworks(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := store.UpsertNetwork(ctx, &domain.Network{ID: "net-2", Name: "staging"}); err != nil {
		t.Fatalf("Failed to seed network: %v", err)
	}
	rule, err := svc.Create(ctx, "net-1", createRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Get(ctx, "net-2", rule.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for Get via other network, got %v", err)
	}

	empty := ""
	if _, err := svc.Update(ctx, "net-2", rule.ID, &domain.UpdatePolicyRuleRequest{Name: &empty}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for Update via other network, got %v", err)
	}

	if err := svc.Delete(ctx, "net-2", rule.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for Delete via other network, got %v", err)
	}

	// The rule is still intact under its own network.
	got, err := svc.Get(ctx, "net-1", rule.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "web to db" {
		t.Errorf("Expected rule untouched, got name %q", got.Name)
	}
}

func TestListByNetworkInsertionOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		req := createRequest()
		req.Name = name
		if _, err := svc.Create(ctx, "net-1", req); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	list, err := svc.ListByNetwork(ctx, "net-1")
	if err != nil {
		t.Fatalf("ListByNetwork failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 rules, got %d", len(list))
	}
	for i, name := range []string{"first", "second", "third"} {
		if list[i].Name != name {
			t.Errorf("Expected rule %d to be %q, got %q", i, name, list[i].Name)
		}
	}
}
