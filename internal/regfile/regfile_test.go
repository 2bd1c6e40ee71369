package regfile

import "testing"

func TestGeneralGetSet(t *testing.T) {
	g := NewGeneral()
	g.Set(5, 0xDEADBEEF)
	if got := g.Get(5); got != 0xDEADBEEF {
		t.Fatalf("Get(5) = %#x, want 0xDEADBEEF", got)
	}
	if got := g.Get(6); got != 0 {
		t.Fatalf("Get(6) = %#x, want 0", got)
	}
}

func TestGeneralInvalidIndex(t *testing.T) {
	g := NewGeneral()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range index")
		}
	}()
	g.Get(NumRegisters)
}

func TestSpecialEgressAutoClear(t *testing.T) {
	s := NewSpecialFile()
	s.SetNamed(PEGRESS, 42)
	if got := s.GetNamed(PEGRESS); got != 42 {
		t.Fatalf("first read = %d, want 42", got)
	}
	if got := s.GetNamed(PEGRESS); got != 0 {
		t.Fatalf("second read = %d, want 0 (auto-clear)", got)
	}
}

func TestSpecialNonEgressIdempotent(t *testing.T) {
	s := NewSpecialFile()
	s.SetNamed(VLEN, 7)
	if got := s.GetNamed(VLEN); got != 7 {
		t.Fatalf("first read = %d, want 7", got)
	}
	if got := s.GetNamed(VLEN); got != 7 {
		t.Fatalf("second read = %d, want 7 (non-egress, idempotent)", got)
	}
}

func TestLookupRoundTrip(t *testing.T) {
	for _, name := range []string{"VERSION", "RET", "FWD_TMP", "PEGRESS", "X_STRIDE"} {
		s, ok := Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) not found", name)
		}
		if s.String() != name {
			t.Fatalf("Lookup(%q).String() = %q", name, s.String())
		}
	}
	if _, ok := Lookup("NOT_A_REGISTER"); ok {
		t.Fatal("Lookup of unknown name should fail")
	}
}
