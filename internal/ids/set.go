package ids

import (
	"github.com/RoaringBitmap/roaring"
)

// Set is a sorted collection of element ids within a single dimension.
// It is backed by a Roaring bitmap so large, sparse dimensions (millions
// of elements, as in a customer or article dimension) stay cheap to
// intersect and iterate.
type Set struct {
	bm *roaring.Bitmap
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{bm: roaring.New()}
}

// SetOf returns a set containing exactly the given ids.
func SetOf(idList ...ID) *Set {
	s := NewSet()
	for _, id := range idList {
		s.Add(id)
	}
	return s
}

// Add inserts id into the set; a no-op if already present.
func (s *Set) Add(id ID) { s.bm.Add(uint32(id)) }

// Remove deletes id from the set; a no-op if absent.
func (s *Set) Remove(id ID) { s.bm.Remove(uint32(id)) }

// Contains reports whether id is a member of the set.
func (s *Set) Contains(id ID) bool { return s.bm.Contains(uint32(id)) }

// Len reports the number of elements in the set.
func (s *Set) Len() int { return int(s.bm.GetCardinality()) }

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set { return &Set{bm: s.bm.Clone()} }

// Intersect returns a new set containing the ids present in both s and
// other.
func (s *Set) Intersect(other *Set) *Set {
	return &Set{bm: roaring.And(s.bm, other.bm)}
}

// Union returns a new set containing the ids present in either s or other.
func (s *Set) Union(other *Set) *Set {
	return &Set{bm: roaring.Or(s.bm, other.bm)}
}

// Each calls fn once per member, in ascending id order. Iteration stops
// early if fn returns false.
func (s *Set) Each(fn func(ID) bool) {
	it := s.bm.Iterator()
	for it.HasNext() {
		if !fn(ID(it.Next())) {
			return
		}
	}
}

// Slice returns the set's members as a sorted slice.
func (s *Set) Slice() []ID {
	out := make([]ID, 0, s.Len())
	s.Each(func(id ID) bool {
		out = append(out, id)
		return true
	})
	return out
}

// Min returns the smallest member and true, or (0, false) if empty.
func (s *Set) Min() (ID, bool) {
	if s.bm.IsEmpty() {
		return 0, false
	}
	return ID(s.bm.Minimum()), true
}

// Ceiling returns the smallest member >= id, and true, or (0, false) if
// none exists. Used by stream Move() to find the next valid coordinate
// for a misplaced or expansion dimension.
func (s *Set) Ceiling(id ID) (ID, bool) {
	it := s.bm.Iterator()
	it.AdvanceIfNeeded(uint32(id))
	if !it.HasNext() {
		return 0, false
	}
	return ID(it.Next()), true
}
