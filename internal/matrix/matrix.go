// Package matrix implements the pairwise ACL model: a symmetric
// tri-state relation over a network's entities, and the editing
// session operators use to mutate it and submit it to the backend of
// record.
package matrix

import (
	"sort"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
)

// Clone returns a deep copy of the matrix.
func Clone(m domain.AclMatrix) domain.AclMatrix {
	out := make(domain.AclMatrix, len(m))
	for id, row := range m {
		outRow := make(map[string]domain.AclState, len(row))
		for other, state := range row {
			outRow[other] = state
		}
		out[id] = outRow
	}
	return out
}

// Equal reports whether two matrices hold the same states, treating a
// missing cell as StateUndefined.
func Equal(a, b domain.AclMatrix) bool {
	for id, row := range a {
		for other, state := range row {
			if b.Get(id, other) != state {
				return false
			}
		}
	}
	for id, row := range b {
		for other, state := range row {
			if a.Get(id, other) != state {
				return false
			}
		}
	}
	return true
}

// Normalize builds a full symmetric matrix over the given entities
// from a (possibly partial, possibly stale) snapshot. Cells for
// entities absent from the directory are pruned, missing pairs default
// to StateUndefined, and self pairs carry no entry. When the snapshot
// is asymmetric the value stored under the lexicographically smaller
// row ordering wins.
func Normalize(entities []*domain.Entity, snapshot domain.AclMatrix) domain.AclMatrix {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)

	out := make(domain.AclMatrix, len(ids))
	for _, id := range ids {
		out[id] = make(map[string]domain.AclState, len(ids)-1)
	}
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			state := snapshot.Get(a, b)
			if state == domain.StateUndefined {
				state = snapshot.Get(b, a)
			}
			if !state.Valid() {
				state = domain.StateUndefined
			}
			out[a][b] = state
			out[b][a] = state
		}
	}
	return out
}

// sortedIDs returns the matrix's row keys in lexicographic order.
func sortedIDs(m domain.AclMatrix) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
