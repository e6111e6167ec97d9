package registry

import (
	"fmt"
	"testing"

	"github.com/TizenTeam/sdb/transport"
)

func newTestTransport(serial string, origin transport.Origin) *transport.Transport {
	return transport.New(serial, "dev-"+serial, origin, nil, nil, nil, nil)
}

type fakeTracker struct {
	pushes [][]byte
}

func (f *fakeTracker) PushDeviceList(body []byte) {
	f.pushes = append(f.pushes, body)
}

func TestAddFindRemove(t *testing.T) {
	r := New()
	t1 := newTestTransport("abc123", transport.OriginUSB)
	r.Add(t1)

	got, ok := r.FindBySerial("abc123")
	if !ok || got != t1 {
		t.Fatalf("FindBySerial(abc123) = (%v, %v), want (%v, true)", got, ok, t1)
	}

	r.Remove(t1)
	if _, ok := r.FindBySerial("abc123"); ok {
		t.Fatal("expected transport to be gone after Remove")
	}
}

func TestAcquireAnyExactlyOne(t *testing.T) {
	r := New()
	if n := len(r.FindByKind(KindAny)); n != 0 {
		t.Fatalf("empty registry should have 0 transports, got %d", n)
	}

	t1 := newTestTransport("abc123", transport.OriginUSB)
	r.Add(t1)
	if n := len(r.FindByKind(KindAny)); n != 1 {
		t.Fatalf("expected exactly 1 transport, got %d", n)
	}

	r.Add(newTestTransport("def456", transport.OriginLocal))
	if n := len(r.FindByKind(KindAny)); n != 2 {
		t.Fatalf("expected exactly 2 transports, got %d", n)
	}
}

func TestFindByKindUSBOnly(t *testing.T) {
	r := New()
	r.Add(newTestTransport("usb1", transport.OriginUSB))
	r.Add(newTestTransport("tcp1", transport.OriginConnect))

	usbOnly := r.FindByKind(KindUSB)
	if len(usbOnly) != 1 || usbOnly[0].Serial != "usb1" {
		t.Fatalf("FindByKind(KindUSB) = %v, want [usb1]", usbOnly)
	}

	localOnly := r.FindByKind(KindLocal)
	if len(localOnly) != 1 || localOnly[0].Serial != "tcp1" {
		t.Fatalf("FindByKind(KindLocal) = %v, want [tcp1]", localOnly)
	}
}

func TestFormatListNoDevices(t *testing.T) {
	// §8 scenario 1: enumerate with no devices.
	if body := FormatList(nil); len(body) != 0 {
		t.Errorf("FormatList(nil) = %q, want empty", body)
	}
}

func TestFormatListOneDevice(t *testing.T) {
	// §8 scenario 2.
	tr := newTestTransport("abc123", transport.OriginUSB)
	tr.SetState(transport.Device)
	tr.Name = "dev0"

	got := string(FormatList([]*transport.Transport{tr}))
	want := fmt.Sprintf("%-20s\t%-10s\t%s\n", "abc123", "device", "dev0")
	if got != want {
		t.Errorf("FormatList = %q, want %q", got, want)
	}
}

func TestBroadcastChangedPushesTrackers(t *testing.T) {
	r := New()
	tracker := &fakeTracker{}
	r.AddTracker(tracker)

	r.Add(newTestTransport("abc123", transport.OriginUSB))
	if len(tracker.pushes) != 1 {
		t.Fatalf("expected 1 push after Add, got %d", len(tracker.pushes))
	}

	r.RemoveTracker(tracker)
	r.Add(newTestTransport("def456", transport.OriginUSB))
	if len(tracker.pushes) != 1 {
		t.Errorf("expected no further pushes after RemoveTracker, got %d", len(tracker.pushes))
	}
}
