package actuator

import "testing"

func TestRegistry_Mapping(t *testing.T) {
	r := NewRegistry("ro", 1, 8)

	if r.Count() != 8 {
		t.Fatalf("Count() = %d, want 8", r.Count())
	}

	idx, ok := r.Lookup("ro1")
	if !ok || idx != 0 {
		t.Errorf("Lookup(ro1) = %d, %v, want 0, true", idx, ok)
	}
	idx, ok = r.Lookup("ro8")
	if !ok || idx != 7 {
		t.Errorf("Lookup(ro8) = %d, %v, want 7, true", idx, ok)
	}

	if _, ok := r.Lookup("ro9"); ok {
		t.Error("Lookup(ro9) should miss")
	}
	if _, ok := r.Lookup("ai1"); ok {
		t.Error("Lookup(ai1) should miss")
	}
}

func TestRegistry_PointID(t *testing.T) {
	r := NewRegistry("relay", 0, 4)

	if got := r.PointID(0); got != "relay0" {
		t.Errorf("PointID(0) = %q, want relay0", got)
	}
	if got := r.PointID(3); got != "relay3" {
		t.Errorf("PointID(3) = %q, want relay3", got)
	}
	if got := r.PointID(4); got != "" {
		t.Errorf("PointID(4) = %q, want empty", got)
	}
}

func TestRegistry_PointIDs(t *testing.T) {
	r := NewRegistry("ro", 1, 3)

	ids := r.PointIDs()
	want := []string{"ro1", "ro2", "ro3"}
	if len(ids) != len(want) {
		t.Fatalf("PointIDs() length = %d, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("PointIDs()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
