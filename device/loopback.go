package device

import (
	"sync"

	"github.com/behrlich/unet/internal/interfaces"
)

// Loopback is one end of an in-process NIC pair: frames Transmit()ed on
// one end are delivered to the other end's registered receiver, with no
// real hardware or kernel interface involved. Used for integration tests
// that exercise a full two-stack conversation in one process.
type Loopback struct {
	mac [6]byte
	mtu int

	mu        sync.Mutex
	receiveFn func([]byte)
	peer      *Loopback
}

// NewLoopbackPair creates two Loopback NICs wired to each other.
func NewLoopbackPair(macA, macB [6]byte, mtu int) (a, b *Loopback) {
	a = &Loopback{mac: macA, mtu: mtu}
	b = &Loopback{mac: macB, mtu: mtu}
	a.peer = b
	b.peer = a
	return a, b
}

func (l *Loopback) MTU() int     { return l.mtu }
func (l *Loopback) MAC() [6]byte { return l.mac }

func (l *Loopback) Transmit(buf []byte) error {
	cp := append([]byte(nil), buf...)
	l.peer.mu.Lock()
	fn := l.peer.receiveFn
	l.peer.mu.Unlock()
	if fn != nil {
		fn(cp)
	}
	return nil
}

func (l *Loopback) SetReceiver(fn func([]byte)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receiveFn = fn
}

func (l *Loopback) Close() error { return nil }

var _ interfaces.NIC = (*Loopback)(nil)
