package model

import (
	"fmt"
	"sort"
	"strings"
)

type (
	// Inclusion is a vertex / hyperedge incidence pair.
	Inclusion struct {
		Vertex VertexId
		Edge   EdgeId
	}

	// InclusionList is an ordered list of inclusion pairs.
	InclusionList []Inclusion
)

// Less defines the canonical (vertex, edge) ordering of pairs.
func (i Inclusion) Less(other Inclusion) bool {
	if i.Vertex != other.Vertex {
		return i.Vertex < other.Vertex
	}

	return i.Edge < other.Edge
}

// String implements the stringer interface.
func (i Inclusion) String() string {
	return fmt.Sprintf("(%d, %d)", i.Vertex, i.Edge)
}

// String implements the stringer interface.
func (l InclusionList) String() string {
	str := strings.Builder{}
	for idx, item := range l {
		str.WriteString(fmt.Sprintf("- [%d] %s\n", idx, item))
	}

	return str.String()
}

// IsCanonical checks that the list is strictly ascending (sorted and free of duplicates).
func (l InclusionList) IsCanonical() bool {
	for idx := 1; idx < len(l); idx++ {
		if !l[idx-1].Less(l[idx]) {
			return false
		}
	}

	return true
}

// Canonical returns a sorted, deduplicated copy of the list.
func (l InclusionList) Canonical() InclusionList {
	out := make(InclusionList, len(l))
	copy(out, l)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Less(out[j])
	})

	uniq := out[:0]
	for _, item := range out {
		if len(uniq) > 0 && uniq[len(uniq)-1] == item {
			continue
		}
		uniq = append(uniq, item)
	}

	return uniq
}
