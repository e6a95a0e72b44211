package tunnelset

import "testing"

func TestSetInsertLookupDelete(t *testing.T) {
	var s Set

	a := New("tunnel://a", InitAge)
	b := New("tunnel://b", InitAge)
	c := New("tunnel://c", InitAge)
	s.Insert(a)
	s.Insert(b)
	s.Insert(c)

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	if got := s.Get("tunnel://b"); got != b {
		t.Fatalf("Get(b) = %v, want %v", got, b)
	}
	if s.Lookup("tunnel://missing") != -1 {
		t.Fatalf("Lookup(missing) should be -1")
	}

	removed := s.Delete("tunnel://a")
	if removed != a {
		t.Fatalf("Delete(a) returned %v, want %v", removed, a)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() after delete = %d, want 2", s.Len())
	}
	// Order of remaining elements is preserved.
	if got := s.URLs(); len(got) != 2 || got[0] != "tunnel://b" || got[1] != "tunnel://c" {
		t.Fatalf("URLs() after delete = %v", got)
	}

	if s.Delete("tunnel://a") != nil {
		t.Fatalf("Delete of already-removed URL should return nil")
	}
}

func TestSetReplace(t *testing.T) {
	var s Set

	a := New("tunnel://a", InitAge)
	s.Insert(a)

	a2 := New("tunnel://a", InitAge)
	a2.ID = 42

	old := s.Replace(a2)
	if old != a {
		t.Fatalf("Replace returned %v, want the displaced original %v", old, a)
	}
	if s.Get("tunnel://a") != a2 {
		t.Fatalf("set still references the old record after Replace")
	}

	// Replace with no matching URL is a no-op and returns nil.
	b := New("tunnel://b", InitAge)
	if got := s.Replace(b); got != nil {
		t.Fatalf("Replace with unknown URL returned %v, want nil", got)
	}
	if s.Len() != 1 {
		t.Fatalf("Replace with unknown URL must not insert; Len() = %d", s.Len())
	}
}

func TestSetSameRecordInBothSets(t *testing.T) {
	var cache, active Set

	rec := New("tunnel://shared", InitAge)
	cache.Insert(rec)
	active.Insert(rec)

	rec.Weight = 0.75

	if cache.Get("tunnel://shared").Weight != 0.75 {
		t.Fatalf("mutation through one set reference must be visible via the other")
	}
}

func TestClampWeight(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-1, WeightMin},
		{0, WeightMin},
		{WeightMin, WeightMin},
		{0.5, 0.5},
		{WeightMax, WeightMax},
		{2, WeightMax},
	}
	for _, c := range cases {
		if got := ClampWeight(c.in); got != c.want {
			t.Errorf("ClampWeight(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
