// Package boundary implements the Boundary Set: the positions in an ordered
// event sequence where events may be inserted or removed without splitting an
// atomic unit.
//
// A Set over a sequence of length n holds integers in [0, n] and always holds
// both 0 and n. Position i is the gap before element i; n is the gap after the
// last element.
package boundary

import (
	"fmt"
	"strconv"
	"strings"
)

// Set is a Boundary Set over a sequence of fixed length.
//
// The zero value is not usable; construct with Complete or Endpoints.
type Set struct {
	length  int
	members []bool // members[i] reports whether position i is a boundary
}

// Complete returns the maximal set for a sequence of the given length: every
// position 0..length.
func Complete(length int) *Set {
	if length < 0 {
		length = 0
	}
	members := make([]bool, length+1)
	for i := range members {
		members[i] = true
	}
	return &Set{length: length, members: members}
}

// Endpoints returns the minimal set {0, length}, which is {0} when the
// sequence is empty.
func Endpoints(length int) *Set {
	if length < 0 {
		length = 0
	}
	members := make([]bool, length+1)
	members[0] = true
	members[length] = true
	return &Set{length: length, members: members}
}

// Length returns the length of the sequence the set describes.
func (s *Set) Length() int {
	return s.length
}

// Contains reports whether i is a member.
func (s *Set) Contains(i int) bool {
	if i < 0 || i > s.length {
		return false
	}
	return s.members[i]
}

// Remove deletes i from the set. The endpoints 0 and Length are never
// removed; out-of-range positions are ignored.
func (s *Set) Remove(i int) {
	if i <= 0 || i >= s.length {
		return
	}
	s.members[i] = false
}

// RemoveRange deletes every position in [from, to).
func (s *Set) RemoveRange(from, to int) {
	for i := from; i < to; i++ {
		s.Remove(i)
	}
}

// FindNext returns the smallest member >= threshold, or > threshold when
// strict is set. If no member qualifies, threshold itself is returned.
func (s *Set) FindNext(threshold int, strict bool) int {
	start := threshold
	if strict {
		start++
	}
	if start < 0 {
		start = 0
	}
	for i := start; i <= s.length; i++ {
		if s.members[i] {
			return i
		}
	}
	return threshold
}

// Intersect returns a new set holding the positions present in both s and
// other. Both sets must describe the same sequence length.
func (s *Set) Intersect(other *Set) (*Set, error) {
	if s.length != other.length {
		return nil, fmt.Errorf("intersect boundary sets: length mismatch %d != %d", s.length, other.length)
	}
	out := &Set{length: s.length, members: make([]bool, s.length+1)}
	for i := range out.members {
		out.members[i] = s.members[i] && other.members[i]
	}
	return out, nil
}

// Members returns the positions in ascending order.
func (s *Set) Members() []int {
	out := make([]int, 0, len(s.members))
	for i, ok := range s.members {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// Len returns the number of members.
func (s *Set) Len() int {
	n := 0
	for _, ok := range s.members {
		if ok {
			n++
		}
	}
	return n
}

// Equal reports whether both sets describe the same length and positions.
func (s *Set) Equal(other *Set) bool {
	if s.length != other.length {
		return false
	}
	for i := range s.members {
		if s.members[i] != other.members[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	members := make([]bool, len(s.members))
	copy(members, s.members)
	return &Set{length: s.length, members: members}
}

// String renders the set as {0,2,5}.
func (s *Set) String() string {
	members := s.Members()
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = strconv.Itoa(m)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
