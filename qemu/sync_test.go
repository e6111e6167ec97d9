package qemu

import "testing"

func TestParseSync(t *testing.T) {
	got, ok := ParseSync("host:sync:abc123:1")
	if !ok || got.Serial != "abc123" || !got.Suspended {
		t.Fatalf("ParseSync(suspend) = (%+v, %v), want ({abc123 true}, true)", got, ok)
	}

	got, ok = ParseSync("host:sync:abc123:0")
	if !ok || got.Serial != "abc123" || got.Suspended {
		t.Fatalf("ParseSync(resume) = (%+v, %v), want ({abc123 false}, true)", got, ok)
	}
}

func TestParseSyncInvalid(t *testing.T) {
	cases := []string{
		"host:devices",
		"host:sync:abc123",
		"host:sync:abc123:2",
		"",
	}
	for _, req := range cases {
		if _, ok := ParseSync(req); ok {
			t.Errorf("ParseSync(%q) = ok, want failure", req)
		}
	}
}
