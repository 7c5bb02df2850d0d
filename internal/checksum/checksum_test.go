package checksum

import "testing"

func TestSumStable(t *testing.T) {
	a := Sum([]byte("export default 1"))
	b := SumString("export default 1")
	if a != b {
		t.Fatalf("Sum and SumString disagree: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if Sum([]byte("x")) == a {
		t.Fatal("different inputs produced the same digest")
	}
}

func TestShort(t *testing.T) {
	s := Short([]byte("hello"))
	if len(s) != 16 {
		t.Fatalf("Short length = %d, want 16", len(s))
	}
	if s != Sum([]byte("hello"))[:16] {
		t.Fatal("Short is not a prefix of Sum")
	}
}
