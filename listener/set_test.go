package listener

import "testing"

func TestSetInstallGetRemove(t *testing.T) {
	l, err := Listen(47381, KindForward, nil, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	s := NewSet()
	s.Install(l)

	got, ok := s.Get(l.LocalPort)
	if !ok || got != l {
		t.Fatalf("Get(%d) = (%v, %v), want (%v, true)", l.LocalPort, got, ok, l)
	}

	if !s.Remove(l.LocalPort) {
		t.Fatal("Remove reported false for installed listener")
	}
	if _, ok := s.Get(l.LocalPort); ok {
		t.Error("listener still present after Remove")
	}
}

func TestSetAll(t *testing.T) {
	l1, err := Listen(47382, KindForward, nil, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l1.Close()
	l2, err := Listen(47383, KindForward, nil, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l2.Close()

	s := NewSet()
	s.Install(l1)
	s.Install(l2)

	all := s.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d listeners, want 2", len(all))
	}
}

func TestSetRemoveUnknownPort(t *testing.T) {
	s := NewSet()
	if s.Remove(12345) {
		t.Error("Remove reported true for port never installed")
	}
}
