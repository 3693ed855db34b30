package set

type unit = struct{}

// Set is an unordered set of values of type T. The zero value is an empty, read-only set.
type Set[T comparable] map[T]unit

// New returns an empty set.
func New[T comparable]() Set[T] {
	return make(Set[T])
}

// Of returns a set containing the given values.
func Of[T comparable](vals ...T) Set[T] {
	return FromSlice(vals)
}

// FromSlice returns a set containing the values in the given slice.
func FromSlice[T comparable](vals []T) Set[T] {
	s := make(Set[T], len(vals))
	for _, v := range vals {
		s.Insert(v)
	}
	return s
}

// FromKeys builds a set from the keys of a map.
func FromKeys[M ~map[K]V, K comparable, V any](m M) Set[K] {
	s := make(Set[K], len(m))
	for key := range m {
		s.Insert(key)
	}
	return s
}

// Contains checks whether val is present in the set.
func (s Set[T]) Contains(val T) bool {
	_, ok := s[val]
	return ok
}

// Insert adds val to the set.
func (s Set[T]) Insert(val T) {
	s[val] = unit{}
}

// Remove removes val from the set.
func (s Set[T]) Remove(val T) {
	delete(s, val)
}

// Len is the number of members.
func (s Set[T]) Len() int {
	return len(s)
}

// ToSlice returns the members of the set in no particular order.
func (s Set[T]) ToSlice() []T {
	res := make([]T, 0, len(s))
	for val := range s {
		res = append(res, val)
	}
	return res
}
