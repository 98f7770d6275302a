// package deviceid implements a dense map keyed by a single-byte bus
// device id, giving O(1) access and ordered iteration over only the
// ids that have ever been set.
package deviceid

// numIDs covers every possible 1-byte device id, including the
// broadcast id.
const numIDs = 256

// Map is a dense map from device id to a value of type V. Its zero value
// is ready to use.
type Map[V any] struct {
	present [numIDs]bool
	values  [numIDs]V
}

// Set stores v under id.
func (m *Map[V]) Set(id byte, v V) {
	m.values[id] = v
	m.present[id] = true
}

// Get returns the value stored under id and whether one was present.
func (m *Map[V]) Get(id byte) (V, bool) {
	return m.values[id], m.present[id]
}

// Delete removes any value stored under id.
func (m *Map[V]) Delete(id byte) {
	var zero V
	m.values[id] = zero
	m.present[id] = false
}

// Clear removes every stored value. Calling Clear on an already-empty Map
// is a no-op.
func (m *Map[V]) Clear() {
	for id := range m.present {
		if m.present[id] {
			var zero V
			m.values[id] = zero
			m.present[id] = false
		}
	}
}

// Len reports how many ids currently have a value.
func (m *Map[V]) Len() int {
	n := 0
	for _, p := range m.present {
		if p {
			n++
		}
	}
	return n
}

// Each calls f for every present id in ascending order, skipping absent
// entries. It stops early if f returns false.
func (m *Map[V]) Each(f func(id byte, v V) bool) {
	for id := 0; id < numIDs; id++ {
		if !m.present[id] {
			continue
		}
		if !f(byte(id), m.values[id]) {
			return
		}
	}
}
