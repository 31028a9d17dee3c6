package directory

import (
	"sort"
	"sync"
)

// ContactGraph is the read side consumed by the router: delivery and presence
// visibility are granted per recorded relation, checked at message time so a
// revoked contact takes effect on the next frame.
type ContactGraph interface {
	IsContact(ownerID, otherID string) bool
	ContactsOf(ownerID string) []string
}

// ContactStore records contact relations in memory. Add writes the relation
// in both directions, so the per-side checks in ContactGraph behave
// symmetrically for contacts created through it.
type ContactStore struct {
	mu       sync.RWMutex
	contacts map[string]map[string]struct{}
}

// NewContactStore creates an empty contact store.
func NewContactStore() *ContactStore {
	return &ContactStore{
		contacts: make(map[string]map[string]struct{}),
	}
}

// Add records a and b as mutual contacts. Self-relations are ignored.
func (s *ContactStore) Add(aID, bID string) {
	if aID == "" || bID == "" || aID == bID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.add(aID, bID)
	s.add(bID, aID)
}

func (s *ContactStore) add(ownerID, otherID string) {
	set, ok := s.contacts[ownerID]
	if !ok {
		set = make(map[string]struct{})
		s.contacts[ownerID] = set
	}
	set[otherID] = struct{}{}
}

// Remove drops the relation in both directions.
func (s *ContactStore) Remove(aID, bID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.contacts[aID], bID)
	delete(s.contacts[bID], aID)
}

// IsContact reports whether ownerID has recorded otherID as a contact.
func (s *ContactStore) IsContact(ownerID, otherID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.contacts[ownerID][otherID]
	return ok
}

// ContactsOf returns the ids ownerID has recorded, sorted for stable output.
func (s *ContactStore) ContactsOf(ownerID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.contacts[ownerID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
