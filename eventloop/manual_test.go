package eventloop

import (
	"testing"
	"time"
)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	start := time.Unix(1700000000, 0)
	m := NewManual(start)
	var got []string
	m.After(30*time.Millisecond, func() { got = append(got, "c") })
	m.After(10*time.Millisecond, func() {
		got = append(got, "a")
		m.Post(func() { got = append(got, "a-post") })
		m.After(5*time.Millisecond, func() { got = append(got, "b") })
	})
	stop := m.After(20*time.Millisecond, func() { got = append(got, "never") })
	stop.Stop()

	m.Advance(12 * time.Millisecond)
	if len(got) != 2 || got[0] != "a" || got[1] != "a-post" {
		t.Fatalf("after 12ms got %v", got)
	}
	m.Advance(100 * time.Millisecond)
	want := []string{"a", "a-post", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if !m.Now().Equal(start.Add(112 * time.Millisecond)) {
		t.Fatalf("clock = %v", m.Now().Sub(start))
	}
	if m.Pending() != 0 {
		t.Fatalf("Pending = %d, want 0", m.Pending())
	}
}
