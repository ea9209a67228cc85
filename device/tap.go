// Package device provides NIC implementations for interfaces.NIC: a
// Linux TAP device for running against a real kernel interface, and a
// loopback pair for tests and in-process integration.
package device

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/behrlich/unet/internal/interfaces"
)

const (
	ifNameSize = 16
	tunSetIff  = 0x400454ca // TUNSETIFF on amd64/arm64

	iffTap        = 0x0002
	iffNoPI       = 0x1000
	iffMultiQueue = 0x0100
)

type ifReq struct {
	name  [ifNameSize]byte
	flags uint16
	_     [22]byte // pad to match struct ifreq's size
}

// TAP is a Linux TAP network device: frames written to it appear on the
// host's network stack side of the interface, and frames the kernel
// sends out the interface arrive via Receive.
type TAP struct {
	file *os.File
	name string
	mac  [6]byte
	mtu  int

	mu        sync.Mutex
	receiveFn func([]byte)
	closed    bool
}

// OpenTAP creates (or attaches to) a TAP interface named name. mac and
// mtu describe the link as this process presents it; the caller is
// responsible for having configured the interface's kernel-side address
// and bring-up (e.g. via `ip link set <name> up`) outside this process,
// since that requires privileges this package does not assume.
func OpenTAP(name string, mac [6]byte, mtu int) (*TAP, error) {
	f, err := os.OpenFile("/dev/net/tun", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("device: open /dev/net/tun: %w", err)
	}

	var req ifReq
	copy(req.name[:], name)
	req.flags = iffTap | iffNoPI

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), tunSetIff, uintptr(unsafe.Pointer(&req))); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("device: TUNSETIFF: %w", errno)
	}

	t := &TAP{file: f, name: name, mac: mac, mtu: mtu}
	go t.readLoop()
	return t, nil
}

func (t *TAP) readLoop() {
	buf := make([]byte, 14+t.mtu)
	for {
		n, err := t.file.Read(buf)
		if err != nil {
			return // closed
		}
		t.mu.Lock()
		fn := t.receiveFn
		t.mu.Unlock()
		if fn != nil {
			fn(append([]byte(nil), buf[:n]...))
		}
	}
}

func (t *TAP) MTU() int         { return t.mtu }
func (t *TAP) MAC() [6]byte     { return t.mac }
func (t *TAP) Name() string     { return t.name }

func (t *TAP) Transmit(buf []byte) error {
	_, err := t.file.Write(buf)
	return err
}

func (t *TAP) SetReceiver(fn func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receiveFn = fn
}

func (t *TAP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.file.Close()
}

var _ interfaces.NIC = (*TAP)(nil)
