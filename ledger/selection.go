package ledger

import "strings"

// SelectionSet is the transient set of entry ids a user picked for one batch
// action. It keeps selection order and owns no transaction data; clearing
// it never affects the book.
type SelectionSet struct {
	ids   []string
	index map[string]int
}

// NewSelection creates a selection holding the given ids.
func NewSelection(ids ...string) *SelectionSet {
	s := &SelectionSet{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add selects an id. Adding an id twice has no effect.
func (s *SelectionSet) Add(id string) {
	id = strings.TrimSpace(id)
	if id == "" || s.Contains(id) {
		return
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	s.index[id] = len(s.ids)
	s.ids = append(s.ids, id)
}

// Remove deselects an id.
func (s *SelectionSet) Remove(id string) {
	pos, ok := s.index[id]
	if !ok {
		return
	}
	s.ids = append(s.ids[:pos], s.ids[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.ids); i++ {
		s.index[s.ids[i]] = i
	}
}

// Toggle selects an id if absent and deselects it otherwise.
// It returns whether the id is selected afterwards.
func (s *SelectionSet) Toggle(id string) bool {
	if s.Contains(id) {
		s.Remove(id)
		return false
	}
	s.Add(id)
	return s.Contains(id)
}

// Contains reports whether id is selected.
func (s *SelectionSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

// IDs returns the selected ids in selection order.
func (s *SelectionSet) IDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of selected ids.
func (s *SelectionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Clear empties the selection.
func (s *SelectionSet) Clear() {
	if s == nil {
		return
	}
	s.ids = nil
	s.index = nil
}
