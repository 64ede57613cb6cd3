/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import "sort"

// orderedIndex is a name-keyed container that iterates in DNS canonical
// order and supports predecessor/successor lookup with wrap-around. The
// reference implementation backs both the domain tree and the denial
// chain with a red-black tree (see spec.md Design Notes); no third-party
// library in the retrieved pack offers an ordered map with neighbour
// lookups, so this is built on the standard library: a name-sorted slice
// searched with sort.Search gives O(log n) lookup and O(log n) neighbour
// queries, at the cost of O(n) insert/delete, which is acceptable for the
// batch-oriented signing passes this engine performs.
type orderedIndex[V any] struct {
	keys   []string
	values map[string]V
}

func newOrderedIndex[V any]() *orderedIndex[V] {
	return &orderedIndex[V]{values: make(map[string]V)}
}

func (o *orderedIndex[V]) Len() int { return len(o.keys) }

func (o *orderedIndex[V]) search(name string) (idx int, found bool) {
	idx = sort.Search(len(o.keys), func(i int) bool {
		return CompareCanonical(o.keys[i], name) >= 0
	})
	if idx < len(o.keys) && EqualCanonical(o.keys[idx], name) {
		return idx, true
	}
	return idx, false
}

func (o *orderedIndex[V]) Get(name string) (V, bool) {
	if idx, ok := o.search(name); ok {
		return o.values[o.keys[idx]], true
	}
	var zero V
	return zero, false
}

// Set inserts or replaces the value at name, returning true if name was
// newly inserted.
func (o *orderedIndex[V]) Set(name string, v V) bool {
	idx, found := o.search(name)
	if found {
		o.values[o.keys[idx]] = v
		return false
	}
	o.keys = append(o.keys, "")
	copy(o.keys[idx+1:], o.keys[idx:])
	o.keys[idx] = name
	o.values[name] = v
	return true
}

func (o *orderedIndex[V]) Delete(name string) bool {
	idx, found := o.search(name)
	if !found {
		return false
	}
	key := o.keys[idx]
	o.keys = append(o.keys[:idx], o.keys[idx+1:]...)
	delete(o.values, key)
	return true
}

func (o *orderedIndex[V]) First() (string, V, bool) {
	if len(o.keys) == 0 {
		var zero V
		return "", zero, false
	}
	return o.keys[0], o.values[o.keys[0]], true
}

func (o *orderedIndex[V]) Last() (string, V, bool) {
	if len(o.keys) == 0 {
		var zero V
		return "", zero, false
	}
	last := o.keys[len(o.keys)-1]
	return last, o.values[last], true
}

// Next returns the successor of name in canonical order, wrapping around
// to the first entry when name is the last (or has no successor present).
func (o *orderedIndex[V]) Next(name string) (string, V, bool) {
	if len(o.keys) == 0 {
		var zero V
		return "", zero, false
	}
	idx, found := o.search(name)
	if found {
		idx++
	}
	if idx >= len(o.keys) {
		idx = 0
	}
	return o.keys[idx], o.values[o.keys[idx]], true
}

// Prev returns the predecessor of name in canonical order, wrapping
// around to the last entry when name is the first.
func (o *orderedIndex[V]) Prev(name string) (string, V, bool) {
	if len(o.keys) == 0 {
		var zero V
		return "", zero, false
	}
	idx, _ := o.search(name)
	idx--
	if idx < 0 {
		idx = len(o.keys) - 1
	}
	return o.keys[idx], o.values[o.keys[idx]], true
}

// Keys returns the names in canonical order. The returned slice must not
// be mutated by the caller.
func (o *orderedIndex[V]) Keys() []string {
	return o.keys
}

func (o *orderedIndex[V]) ForEach(fn func(name string, v V) bool) {
	for _, k := range o.keys {
		if !fn(k, o.values[k]) {
			return
		}
	}
}

// ForEachReverse iterates in reverse canonical order, used by commit()'s
// leaf-GC pass so children are evaluated before their parents.
func (o *orderedIndex[V]) ForEachReverse(fn func(name string, v V) bool) {
	for i := len(o.keys) - 1; i >= 0; i-- {
		k := o.keys[i]
		if !fn(k, o.values[k]) {
			return
		}
	}
}
