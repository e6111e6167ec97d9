// Package smartsocket implements the request framing, parsing, and reply
// formatting for the server-control protocol (§4.7, §6): a 4-byte ASCII
// hex length prefix followed by that many bytes of UTF-8 request text,
// answered with OKAY/FAIL plus a length-prefixed body.
package smartsocket

import (
	"encoding/hex"
	"fmt"
)

// Reader accumulates bytes fed from an unbound local socket's Readable
// callback into a single growable queue (Design Notes: "disallow the
// ad-hoc concatenate-two-packets path by making the buffer a single
// growable byte queue") and invokes Handle once a full request has
// arrived. One Reader serves exactly one connection and hands every
// complete request on it to Handle, in order, including several that
// arrive in one Feed call.
type Reader struct {
	buf    []byte
	Handle func(request string) error
}

// NewReader creates a request accumulator that calls handle with each
// complete request it assembles.
func NewReader(handle func(request string) error) *Reader {
	return &Reader{Handle: handle}
}

// Feed implements localsocket.RequestSink.
func (r *Reader) Feed(data []byte) error {
	r.buf = append(r.buf, data...)
	for {
		if len(r.buf) < 4 {
			return nil
		}
		n, err := hex.DecodeString(string(r.buf[:4]))
		if err != nil || len(n) != 2 {
			return fmt.Errorf("smartsocket: malformed length prefix %q", r.buf[:4])
		}
		length := int(n[0])<<8 | int(n[1])
		if len(r.buf) < 4+length {
			return nil // wait for the rest
		}
		request := string(r.buf[4 : 4+length])
		r.buf = r.buf[4+length:]
		if err := r.Handle(request); err != nil {
			return err
		}
	}
}

// FormatLength renders n as the 4-digit lowercase hex prefix used both
// for requests and for OKAY/FAIL reply bodies.
func FormatLength(n int) string {
	return fmt.Sprintf("%04x", n)
}

// OKAY formats a successful reply: "OKAY" + 4-hex-digit length + body.
func OKAY(body []byte) []byte {
	return append([]byte("OKAY"+FormatLength(len(body))), body...)
}

// FAIL formats a failure reply: "FAIL" + 4-hex-digit length + reason.
func FAIL(reason string) []byte {
	return append([]byte("FAIL"+FormatLength(len(reason))), reason...)
}

// BareOKAY is the zero-body OKAY reply ("OKAY0000", the same bytes an
// empty device list produces, §8 scenario 1), used for acknowledgements
// such as the bound-transport reply and kill.
func BareOKAY() []byte {
	return OKAY(nil)
}

// LengthPrefixed renders body with a bare 4-hex-digit length prefix and no
// OKAY/FAIL tag, the form used for every device-tracker push after the
// initial OKAY reply (§8 scenario 6).
func LengthPrefixed(body []byte) []byte {
	return append([]byte(FormatLength(len(body))), body...)
}
