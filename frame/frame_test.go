package frame

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("host::\x00"),
		bytes.Repeat([]byte{0xAB}, MaxPayload),
	}
	for _, payload := range cases {
		m := Message{Command: CNXN, Arg0: ProtocolVersion, Arg1: MaxPayload}
		Encode(&m, payload)

		buf := make([]byte, HeaderSize)
		PutHeader(buf, &m)
		got := GetHeader(buf)

		if err := ValidateHeader(&got); err != nil {
			t.Fatalf("ValidateHeader: %v", err)
		}
		if err := ValidateData(&got, payload); err != nil {
			t.Fatalf("ValidateData: %v", err)
		}
		if got != m {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
		}
	}
}

func TestZeroLengthChecksum(t *testing.T) {
	m := Message{Command: OKAY}
	Encode(&m, nil)
	if m.DataCheck != 0 {
		t.Errorf("expected zero checksum for empty payload, got %d", m.DataCheck)
	}
	if m.DataLength != 0 {
		t.Errorf("expected zero length, got %d", m.DataLength)
	}
}

func TestMaxPayloadAccepted(t *testing.T) {
	m := Message{Command: WRTE, DataLength: MaxPayload, Magic: uint32(WRTE) ^ 0xFFFFFFFF}
	if err := ValidateHeader(&m); err != nil {
		t.Errorf("MaxPayload should be accepted: %v", err)
	}
}

func TestPayloadOverflowRejected(t *testing.T) {
	m := Message{Command: WRTE, DataLength: MaxPayload + 1, Magic: uint32(WRTE) ^ 0xFFFFFFFF}
	if err := ValidateHeader(&m); err != ErrPayloadTooLarge {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestBadMagicRejected(t *testing.T) {
	m := Message{Command: WRTE, Magic: 0}
	if err := ValidateHeader(&m); err != ErrBadMagic {
		t.Errorf("expected ErrBadMagic, got %v", err)
	}
}

func TestBadChecksumRejected(t *testing.T) {
	m := Message{Command: WRTE}
	Encode(&m, []byte("hello"))
	if err := ValidateData(&m, []byte("world")); err != ErrBadChecksum {
		t.Errorf("expected ErrBadChecksum, got %v", err)
	}
}

func TestHandshakeFrameLiteral(t *testing.T) {
	// §8 scenario 3: version handshake literal bytes.
	payload := []byte("host::\x00")
	m := Message{Command: CNXN, Arg0: ProtocolVersion, Arg1: MaxPayload}
	Encode(&m, payload)

	if m.Command != 0x4e584e43 {
		t.Errorf("CNXN command tag = %#x, want 0x4e584e43", uint32(m.Command))
	}
	if m.Arg0 != 0x01000000 {
		t.Errorf("Arg0 = %#x, want 0x01000000", m.Arg0)
	}
	if m.Arg1 != 0x00001000 {
		t.Errorf("Arg1 = %#x, want 0x00001000", m.Arg1)
	}
	if want := Checksum(payload); m.DataCheck != want {
		t.Errorf("DataCheck = %#x, want %#x", m.DataCheck, want)
	}
	if m.Magic != 0xb1a7b1bc {
		t.Errorf("Magic = %#x, want 0xb1a7b1bc", m.Magic)
	}
}
