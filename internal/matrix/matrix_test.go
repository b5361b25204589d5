package matrix

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
)

func nodes(ids ...string) []*domain.Entity {
	out := make([]*domain.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, &domain.Entity{ID: id, Kind: domain.EntityNode})
	}
	return out
}

func TestNormalizeBuildsFullSymmetricMatrix(t *testing.T) {
	entities := nodes("a", "b", "c")
	snapshot := domain.AclMatrix{
		"a": {"b": domain.StateAllowed},
	}

	m := Normalize(entities, snapshot)

	if len(m) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(m))
	}
	if m.Get("a", "b") != domain.StateAllowed || m.Get("b", "a") != domain.StateAllowed {
		t.Errorf("Expected a/b allowed both ways, got %v and %v", m.Get("a", "b"), m.Get("b", "a"))
	}
	if m.Get("a", "c") != domain.StateUndefined {
		t.Errorf("Expected missing pair undefined, got %v", m.Get("a", "c"))
	}
	if _, ok := m["a"]["a"]; ok {
		t.Error("Expected no self entry")
	}
}

func TestNormalizePrunesUnknownEntities(t *testing.T) {
	entities := nodes("a", "b")
	snapshot := domain.AclMatrix{
		"a":    {"gone": domain.StateAllowed, "b": domain.StateDenied},
		"gone": {"a": domain.StateAllowed},
	}

	m := Normalize(entities, snapshot)

	if _, ok := m["gone"]; ok {
		t.Error("Expected pruned row for unknown entity")
	}
	if _, ok := m["a"]["gone"]; ok {
		t.Error("Expected pruned cell for unknown entity")
	}
	if m.Get("a", "b") != domain.StateDenied {
		t.Errorf("Expected surviving cell kept, got %v", m.Get("a", "b"))
	}
}

func TestNormalizeAsymmetricSnapshot(t *testing.T) {
	// Conflicting directions: the lexicographically smaller row
	// ordering wins.
	entities := nodes("a", "b")
	snapshot := domain.AclMatrix{
		"a": {"b": domain.StateAllowed},
		"b": {"a": domain.StateDenied},
	}

	m := Normalize(entities, snapshot)

	if m.Get("a", "b") != domain.StateAllowed {
		t.Errorf("Expected a->b value to win, got %v", m.Get("a", "b"))
	}
	if m.Get("b", "a") != domain.StateAllowed {
		t.Errorf("Expected symmetric result, got %v", m.Get("b", "a"))
	}
}

func TestNormalizeDropsInvalidStates(t *testing.T) {
	entities := nodes("a", "b")
	snapshot := domain.AclMatrix{
		"a": {"b": domain.AclState(42)},
	}

	m := Normalize(entities, snapshot)

	if m.Get("a", "b") != domain.StateUndefined {
		t.Errorf("Expected invalid state coerced to undefined, got %v", m.Get("a", "b"))
	}
}

func TestEqualTreatsMissingAsUndefined(t *testing.T) {
	a := domain.AclMatrix{"x": {"y": domain.StateUndefined}}
	b := domain.AclMatrix{}

	if !Equal(a, b) {
		t.Error("Expected matrices with only undefined cells to be equal")
	}

	a["x"]["y"] = domain.StateDenied
	if Equal(a, b) {
		t.Error("Expected matrices to differ after edit")
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := domain.AclMatrix{"a": {"b": domain.StateAllowed}}
	c := Clone(m)

	c["a"]["b"] = domain.StateDenied
	if m.Get("a", "b") != domain.StateAllowed {
		t.Error("Expected clone mutation to leave the source untouched")
	}
}

func genEntityIDs() gopter.Gen {
	return gen.IntRange(2, 8).Map(func(n int) []string {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("e%d", i)
		}
		return ids
	})
}

func genAclState() gopter.Gen {
	return gen.OneConstOf(domain.StateUndefined, domain.StateDenied, domain.StateAllowed)
}

func TestProperty_NormalizeIsSymmetric(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("normalized matrices are symmetric and self-free",
		prop.ForAll(
			func(ids []string, seed int, state domain.AclState) bool {
				entities := nodes(ids...)
				// Scatter one directed cell into the snapshot
				src := ids[seed%len(ids)]
				dst := ids[(seed/len(ids))%len(ids)]
				snapshot := domain.AclMatrix{src: {dst: state}}

				m := Normalize(entities, snapshot)

				for row, cells := range m {
					if _, ok := cells[row]; ok {
						return false
					}
					for col, s := range cells {
						if m.Get(col, row) != s {
							return false
						}
					}
				}
				return true
			},
			genEntityIDs(),
			gen.IntRange(0, 1000),
			genAclState(),
		))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_NormalizeIsIdempotent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("normalizing a normalized matrix changes nothing",
		prop.ForAll(
			func(ids []string, seed int, state domain.AclState) bool {
				entities := nodes(ids...)
				src := ids[seed%len(ids)]
				dst := ids[(seed/len(ids))%len(ids)]
				snapshot := domain.AclMatrix{src: {dst: state}}

				once := Normalize(entities, snapshot)
				twice := Normalize(entities, once)
				return Equal(once, twice)
			},
			genEntityIDs(),
			gen.IntRange(0, 1000),
			genAclState(),
		))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
