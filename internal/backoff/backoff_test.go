package backoff

import "testing"

func TestBackoffSequence(t *testing.T) {
	b := New(10, 0, 6) // no jitter, easy to assert exactly

	want := []int64{10, 60, 360}
	for i, w := range want {
		if got := int64(b.Next()); got != w {
			t.Fatalf("Next() call %d = %d, want %d", i, got, w)
		}
	}

	b.Reset()
	if got := int64(b.Next()); got != 10 {
		t.Fatalf("Next() after Reset = %d, want 10", got)
	}
}

func TestBackoffJitterBounded(t *testing.T) {
	b := New(100, 10, 2)
	for i := 0; i < 20; i++ {
		d := b.Next()
		if d < 100 {
			t.Fatalf("jittered delay %d below base 100", d)
		}
	}
}
