// Package client implements the terminal chat client: a sticky session over
// the streaming transport, a bounded comparison-selection set, and styled
// rendering of answers and phone cards.
package client

// MaxSelected bounds the comparison selection. Comparing more than three
// phones at once produces tables too wide to read.
const MaxSelected = 3

// SelectionSet tracks the phones picked for comparison. Toggling a selected
// phone removes it; adding beyond the bound evicts the oldest selection.
// Membership checks are O(1); order of selection is preserved.
type SelectionSet struct {
	order   []string
	members map[string]struct{}
}

// NewSelectionSet returns an empty selection.
func NewSelectionSet() *SelectionSet {
	return &SelectionSet{members: make(map[string]struct{})}
}

// Toggle flips membership of id. It reports whether id is now selected, and
// the id evicted to make room, if any.
func (s *SelectionSet) Toggle(id string) (selected bool, evicted string) {
	if _, ok := s.members[id]; ok {
		s.remove(id)
		return false, ""
	}

	if len(s.order) >= MaxSelected {
		evicted = s.order[0]
		s.remove(evicted)
	}

	s.order = append(s.order, id)
	s.members[id] = struct{}{}
	return true, evicted
}

// Contains reports whether id is selected.
func (s *SelectionSet) Contains(id string) bool {
	_, ok := s.members[id]
	return ok
}

// IDs returns the selected ids in selection order.
func (s *SelectionSet) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of selected phones.
func (s *SelectionSet) Len() int {
	return len(s.order)
}

// Clear empties the selection.
func (s *SelectionSet) Clear() {
	s.order = s.order[:0]
	clear(s.members)
}

func (s *SelectionSet) remove(id string) {
	delete(s.members, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
