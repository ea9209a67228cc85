package ipv4

import (
	"encoding/binary"
	"testing"

	"github.com/behrlich/unet/internal/buffer"
	"github.com/behrlich/unet/internal/frame"
	"github.com/behrlich/unet/internal/interfaces"
	"github.com/behrlich/unet/internal/link"
	"github.com/behrlich/unet/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}
func (noopLogger) Debugf(string, ...any) {}

type fakeResolver struct {
	delivered []struct {
		target Addr
		frame  *frame.Frame
	}
}

func (r *fakeResolver) Resolve(target Addr, f *frame.Frame) {
	r.delivered = append(r.delivered, struct {
		target Addr
		frame  *frame.Frame
	}{target, f})
}

func newTestLayer() (*Layer, *buffer.Pool, *fakeResolver, *timer.Manual) {
	pool := buffer.New(32)
	pool.Donate(32)
	resolver := &fakeResolver{}
	clock := timer.NewManual()
	l := New(Addr{10, 0, 0, 1}, pool, resolver, clock, interfaces.NoOpObserver{}, noopLogger{})
	l.Router().AddRoute(Route{Prefix: 24, Network: Addr{10, 0, 0, 0}, OnLink: true})
	return l, pool, resolver, clock
}

func TestChecksumRoundTrip(t *testing.T) {
	hdr := make([]byte, HeaderLen)
	hdr[0] = 0x45
	binary.BigEndian.PutUint16(hdr[2:4], 40)
	hdr[8] = 64
	hdr[9] = ProtoTCP
	copy(hdr[12:16], []byte{10, 0, 0, 1})
	copy(hdr[16:20], []byte{10, 0, 0, 2})

	sum := Checksum(hdr)
	binary.BigEndian.PutUint16(hdr[10:12], sum)

	assert.Equal(t, uint16(0), Checksum(hdr))
}

func TestTransmitBuildsHeaderAndResolvesRoute(t *testing.T) {
	l, pool, resolver, _ := newTestLayer()

	raw, ok := pool.Acquire()
	require.True(t, ok)
	f := frame.New(raw)
	require.True(t, f.SetPayload([]byte("hello")))

	require.NoError(t, l.Transmit(Addr{10, 0, 0, 9}, ProtoTCP, f))

	require.Len(t, resolver.delivered, 1)
	assert.Equal(t, Addr{10, 0, 0, 9}, resolver.delivered[0].target)

	hdr := resolver.delivered[0].frame.Bytes()[:HeaderLen]
	assert.Equal(t, byte(0x45), hdr[0])
	assert.Equal(t, ProtoTCP, int(hdr[9]))
	assert.Equal(t, uint16(0), Checksum(hdr))
}

func TestTransmitNoRouteFails(t *testing.T) {
	l, pool, _, _ := newTestLayer()

	raw, _ := pool.Acquire()
	f := frame.New(raw)
	f.SetPayload([]byte("x"))

	err := l.Transmit(Addr{192, 168, 1, 1}, ProtoTCP, f)
	assert.Error(t, err)
}

func buildIPv4Packet(proto uint8, src, dst Addr, flagsFrag uint16, payload []byte) []byte {
	b := make([]byte, HeaderLen+len(payload))
	b[0] = 0x45
	binary.BigEndian.PutUint16(b[2:4], uint16(len(b)))
	binary.BigEndian.PutUint16(b[6:8], flagsFrag)
	b[8] = 64
	b[9] = proto
	copy(b[12:16], src[:])
	copy(b[16:20], dst[:])
	sum := Checksum(b[:HeaderLen])
	binary.BigEndian.PutUint16(b[10:12], sum)
	copy(b[HeaderLen:], payload)
	return b
}

func TestReceiveDispatchesUnfragmentedDatagram(t *testing.T) {
	l, pool, _, _ := newTestLayer()

	var gotSrc, gotDst Addr
	var gotPayload string
	l.RegisterHandler(ProtoTCP, func(src, dst Addr, proto uint8, body *frame.Frame) {
		gotSrc, gotDst = src, dst
		gotPayload = string(body.Bytes())
		pool.Release(body.Raw())
	})

	raw, _ := pool.Acquire()
	f := frame.New(raw)
	f.SetPayload(buildIPv4Packet(ProtoTCP, Addr{10, 0, 0, 2}, Addr{10, 0, 0, 1}, 0, []byte("payload")))

	l.receive(link.Addr{}, f)

	assert.Equal(t, Addr{10, 0, 0, 2}, gotSrc)
	assert.Equal(t, Addr{10, 0, 0, 1}, gotDst)
	assert.Equal(t, "payload", gotPayload)
}

func TestReceiveBadChecksumDropped(t *testing.T) {
	l, pool, _, _ := newTestLayer()
	called := false
	l.RegisterHandler(ProtoTCP, func(Addr, Addr, uint8, *frame.Frame) { called = true })

	raw, _ := pool.Acquire()
	f := frame.New(raw)
	pkt := buildIPv4Packet(ProtoTCP, Addr{10, 0, 0, 2}, Addr{10, 0, 0, 1}, 0, []byte("payload"))
	pkt[10] ^= 0xFF // corrupt checksum
	f.SetPayload(pkt)

	l.receive(link.Addr{}, f)
	assert.False(t, called)
}
