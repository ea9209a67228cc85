package link

import (
	"testing"

	"github.com/behrlich/unet/internal/buffer"
	"github.com/behrlich/unet/internal/frame"
	"github.com/behrlich/unet/internal/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNIC struct {
	mac       [6]byte
	mtu       int
	sent      [][]byte
	receiveFn func([]byte)
}

func (f *fakeNIC) MTU() int                      { return f.mtu }
func (f *fakeNIC) MAC() [6]byte                  { return f.mac }
func (f *fakeNIC) Transmit(buf []byte) error     { f.sent = append(f.sent, append([]byte(nil), buf...)); return nil }
func (f *fakeNIC) SetReceiver(fn func([]byte))   { f.receiveFn = fn }
func (f *fakeNIC) Close() error                  { return nil }

var _ interfaces.NIC = (*fakeNIC)(nil)

func newTestInterface() (*Interface, *fakeNIC) {
	nic := &fakeNIC{mac: [6]byte{2, 0, 0, 0, 0, 1}, mtu: 1500}
	pool := buffer.New(16)
	pool.Donate(16)
	iface := NewInterface(nic, pool, interfaces.NoOpObserver{}, noopLogger{})
	iface.Start()
	return iface, nic
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any)  {}
func (noopLogger) Debugf(string, ...any) {}

func TestTransmitPrependsHeader(t *testing.T) {
	iface, nic := newTestInterface()

	f, ok := iface.AcquireFrame()
	require.True(t, ok)
	require.True(t, f.SetPayload([]byte("payload")))

	dst := Addr{1, 2, 3, 4, 5, 6}
	require.NoError(t, iface.Transmit(dst, EthertypeIPv4, f))

	require.Len(t, nic.sent, 1)
	sent := nic.sent[0]
	require.Len(t, sent, HeaderLen+len("payload"))
	assert.Equal(t, dst[:], sent[0:6])
	assert.Equal(t, iface.MAC()[:], sent[6:12])
	assert.Equal(t, []byte{0x08, 0x00}, sent[12:14])
	assert.Equal(t, "payload", string(sent[14:]))
}

func TestReceiveDispatchesByEthertype(t *testing.T) {
	iface, nic := newTestInterface()

	var gotSrc Addr
	var gotBody string
	iface.RegisterHandler(EthertypeARP, func(src Addr, body *frame.Frame) {
		gotSrc = src
		gotBody = string(body.Bytes())
	})

	raw := make([]byte, HeaderLen+3)
	copy(raw[0:6], iface.MAC()[:])
	copy(raw[6:12], []byte{9, 9, 9, 9, 9, 9})
	raw[12], raw[13] = 0x08, 0x06
	copy(raw[14:], []byte("arp"))

	nic.receiveFn(raw)

	assert.Equal(t, Addr{9, 9, 9, 9, 9, 9}, gotSrc)
	assert.Equal(t, "arp", gotBody)
}

func TestReceiveUnknownEthertypeDropped(t *testing.T) {
	iface, nic := newTestInterface()

	raw := make([]byte, HeaderLen+1)
	raw[12], raw[13] = 0xFF, 0xFF

	// Should not panic, just drop.
	nic.receiveFn(raw)
	_ = iface
}

func TestReceiveShortFrameDropped(t *testing.T) {
	iface, nic := newTestInterface()
	nic.receiveFn([]byte{1, 2, 3})
	_ = iface
}
