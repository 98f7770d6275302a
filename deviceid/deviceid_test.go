package deviceid

import "testing"

func TestSetGet(t *testing.T) {
	var m Map[string]
	m.Set(5, "five")
	v, ok := m.Get(5)
	if !ok || v != "five" {
		t.Fatalf("got %q, %v", v, ok)
	}
	if _, ok := m.Get(6); ok {
		t.Fatal("expected 6 to be absent")
	}
}

func TestEachAscendingSkipsAbsent(t *testing.T) {
	var m Map[int]
	m.Set(200, 2)
	m.Set(1, 1)
	m.Set(254, 254)

	var order []byte
	m.Each(func(id byte, v int) bool {
		order = append(order, id)
		return true
	})
	want := []byte{1, 200, 254}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestClearIdempotent(t *testing.T) {
	var m Map[int]
	m.Set(1, 10)
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("len after clear = %d, want 0", m.Len())
	}
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("len after second clear = %d, want 0", m.Len())
	}
}

func TestEachStopsEarly(t *testing.T) {
	var m Map[int]
	m.Set(1, 1)
	m.Set(2, 2)
	m.Set(3, 3)
	count := 0
	m.Each(func(id byte, v int) bool {
		count++
		return id != 2
	})
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}
