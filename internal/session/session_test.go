package session

import "testing"

func TestSessionCap(t *testing.T) {
	s := New()
	var hashes []string
	for i := 0; i < HTTPSessionsMax+5; i++ {
		h, err := s.New()
		if err != nil {
			t.Fatal(err)
		}
		hashes = append(hashes, h)
	}

	if s.Len() != HTTPSessionsMax {
		t.Fatalf("store length = %d, want %d", s.Len(), HTTPSessionsMax)
	}

	for i, h := range hashes {
		ok := s.Validate(h)
		wantOK := i >= len(hashes)-HTTPSessionsMax
		if ok != wantOK {
			t.Fatalf("hash %d validate=%v, want %v", i, ok, wantOK)
		}
	}
}

func TestValidateUnknown(t *testing.T) {
	s := New()
	if s.Validate("deadbeef") {
		t.Fatal("expected unknown hash to fail validation")
	}
}

func TestRemove(t *testing.T) {
	s := New()
	h, _ := s.New()
	if err := s.Remove(h); err != nil {
		t.Fatal(err)
	}
	if s.Validate(h) {
		t.Fatal("expected removed session to fail validation")
	}
	if err := s.Remove(h); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
