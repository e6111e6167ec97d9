package smartsocket

import (
	"testing"

	"github.com/TizenTeam/sdb/registry"
)

func TestParseRequestBareHostScope(t *testing.T) {
	got := ParseRequest("host:devices")
	want := ParsedRequest{Scoped: false, Command: "devices"}
	if got != want {
		t.Errorf("ParseRequest(%q) = %+v, want %+v", "host:devices", got, want)
	}
}

func TestParseRequestHostSerial(t *testing.T) {
	got := ParseRequest("host-serial:abc123:get-state")
	if !got.Scoped || got.Selector.Serial != "abc123" || got.Command != "get-state" {
		t.Errorf("ParseRequest(host-serial:...) = %+v", got)
	}
}

func TestParseRequestHostSerialNoCommand(t *testing.T) {
	got := ParseRequest("host-serial:abc123")
	if !got.Scoped || got.Selector.Serial != "abc123" || got.Command != "" {
		t.Errorf("ParseRequest(host-serial: no command) = %+v", got)
	}
}

func TestParseRequestHostUSB(t *testing.T) {
	got := ParseRequest("host-usb:forward:tcp:9999;tcp:8888")
	if !got.Scoped || got.Selector.Kind != registry.KindUSB || got.Command != "forward:tcp:9999;tcp:8888" {
		t.Errorf("ParseRequest(host-usb:...) = %+v", got)
	}
}

func TestParseRequestHostLocal(t *testing.T) {
	got := ParseRequest("host-local:get-serialno")
	if !got.Scoped || got.Selector.Kind != registry.KindLocal || got.Command != "get-serialno" {
		t.Errorf("ParseRequest(host-local:...) = %+v", got)
	}
}

func TestParseRequestHostTransportShorthand(t *testing.T) {
	tests := []struct {
		req      string
		wantKind registry.Kind
	}{
		{"host:transport-any", registry.KindAny},
		{"host:transport-usb", registry.KindUSB},
		{"host:transport-local", registry.KindLocal},
	}
	for _, tt := range tests {
		got := ParseRequest(tt.req)
		if !got.Scoped || got.Selector.Kind != tt.wantKind || got.Command != "transport" {
			t.Errorf("ParseRequest(%q) = %+v", tt.req, got)
		}
	}
}

func TestParseRequestHostTransportSerial(t *testing.T) {
	got := ParseRequest("host:transport:abc123")
	if !got.Scoped || got.Selector.Serial != "abc123" || got.Command != "transport" {
		t.Errorf("ParseRequest(host:transport:abc123) = %+v", got)
	}
}

func TestIsTransportBindCommand(t *testing.T) {
	cases := map[string]bool{
		"transport":       true,
		"transport-any":   true,
		"transport-usb":   true,
		"transport-local": true,
		"transport:abc":   true,
		"get-state":       false,
		"forward:x":       false,
	}
	for cmd, want := range cases {
		if got := IsTransportBindCommand(cmd); got != want {
			t.Errorf("IsTransportBindCommand(%q) = %v, want %v", cmd, got, want)
		}
	}
}

func TestParseForward(t *testing.T) {
	spec, ok := ParseForward("tcp:9999;tcp:8888")
	if !ok || spec.LocalPort != 9999 || spec.RemotePort != 8888 {
		t.Fatalf("ParseForward = (%+v, %v), want ({9999 8888}, true)", spec, ok)
	}
}

func TestParseForwardInvalid(t *testing.T) {
	cases := []string{
		"tcp:9999",
		"tcp:9999;udp:8888",
		"tcp:abc;tcp:8888",
		"tcp:0;tcp:8888",
	}
	for _, arg := range cases {
		if _, ok := ParseForward(arg); ok {
			t.Errorf("ParseForward(%q) = ok, want failure", arg)
		}
	}
}
