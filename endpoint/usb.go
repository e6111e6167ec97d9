package endpoint

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/google/gousb"
)

// USBEndpoint is a device endpoint backed by a pair of USB bulk pipes.
// It is the host-side capability a transport runs over for a
// USB-attached board; enumeration and interface claiming happen in the
// caller (the USB backend is an external collaborator per spec §1 — this
// type only wraps the already-claimed pipes).
type USBEndpoint struct {
	dev *gousb.Device
	in  *gousb.InEndpoint
	out *gousb.OutEndpoint

	once sync.Once
}

// NewUSBEndpoint wraps a claimed bulk IN/OUT endpoint pair on an already
// opened device.
func NewUSBEndpoint(dev *gousb.Device, in *gousb.InEndpoint, out *gousb.OutEndpoint) *USBEndpoint {
	return &USBEndpoint{dev: dev, in: in, out: out}
}

func (e *USBEndpoint) ReadExact(buf []byte) error {
	for got := 0; got < len(buf); {
		n, err := e.in.Read(buf[got:])
		if n > 0 {
			got += n
		}
		if err != nil {
			glog.V(2).Infof("endpoint: usb bulk read failed after %d/%d bytes: %v", got, len(buf), err)
			return err
		}
		if n == 0 {
			return fmt.Errorf("endpoint: usb bulk read returned 0 bytes: %w", ErrShortIO)
		}
	}
	return nil
}

func (e *USBEndpoint) WriteAll(buf []byte) error {
	for sent := 0; sent < len(buf); {
		n, err := e.out.Write(buf[sent:])
		if n > 0 {
			sent += n
		}
		if err != nil {
			glog.V(2).Infof("endpoint: usb bulk write failed after %d/%d bytes: %v", sent, len(buf), err)
			return err
		}
		if n == 0 {
			return fmt.Errorf("endpoint: usb bulk write sent 0 bytes: %w", ErrShortIO)
		}
	}
	return nil
}

// Kick aborts any in-flight bulk transfer by closing the underlying USB
// device handle. Idempotent.
func (e *USBEndpoint) Kick() {
	e.once.Do(func() {
		e.dev.Close()
	})
}

func (e *USBEndpoint) Close() error {
	e.Kick()
	return nil
}
