package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pnnl/chgl/model"
)

type (
	// InclusionSet keeps distinct inclusion pairs alongside the sorted list view.
	// The sorted view gives every coalesced request a deterministic encoding.
	InclusionSet struct {
		list       []model.Inclusion
		pairsMatch map[model.Inclusion]struct{}
	}
)

// String implements stringer interface.
func (s *InclusionSet) String() string {
	str := strings.Builder{}
	for i, pair := range s.list {
		str.WriteString(fmt.Sprintf("- [%d] %s\n", i, pair))
	}

	return str.String()
}

// Add inserts the pair keeping the sorted order; returns false if the pair is already present.
func (s *InclusionSet) Add(pair model.Inclusion) bool {
	if _, found := s.pairsMatch[pair]; found {
		return false
	}
	s.pairsMatch[pair] = struct{}{}

	// Insert
	idxToInsert := s.findIdxGTETarget(pair)
	s.list = append(s.list, model.Inclusion{})
	copy(s.list[idxToInsert+1:], s.list[idxToInsert:])
	s.list[idxToInsert] = pair

	return true
}

// Contains checks if the pair is present.
func (s *InclusionSet) Contains(pair model.Inclusion) bool {
	_, found := s.pairsMatch[pair]
	return found
}

// Len returns the number of distinct pairs.
func (s *InclusionSet) Len() int {
	return len(s.list)
}

// Export builds a model.InclusionList copy in canonical order.
func (s *InclusionSet) Export() model.InclusionList {
	list := make(model.InclusionList, len(s.list))
	copy(list, s.list)

	return list
}

// Reset drops all pairs.
func (s *InclusionSet) Reset() {
	s.list = s.list[:0]
	s.pairsMatch = make(map[model.Inclusion]struct{})
}

// findIdxGTETarget returns the leftmost index whose pair is not less than the target.
func (s *InclusionSet) findIdxGTETarget(pair model.Inclusion) int {
	return sort.Search(len(s.list), func(i int) bool {
		return !s.list[i].Less(pair)
	})
}

// NewInclusionSet creates a new empty InclusionSet object.
func NewInclusionSet() *InclusionSet {
	return &InclusionSet{
		pairsMatch: make(map[model.Inclusion]struct{}),
	}
}
