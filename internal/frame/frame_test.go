package frame

import (
	"testing"

	"github.com/behrlich/unet/internal/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRaw() *[]byte {
	b := make([]byte, buffer.Size)
	return &b
}

func TestSetPayloadAndBytes(t *testing.T) {
	f := New(newRaw())
	require.True(t, f.SetPayload([]byte("hello")))
	assert.Equal(t, "hello", string(f.Bytes()))
	assert.Equal(t, 5, f.Len())
}

func TestPrependBuildsHeadersInward(t *testing.T) {
	f := New(newRaw())
	require.True(t, f.SetPayload([]byte("payload")))

	tcpHdr, ok := f.Prepend(4)
	require.True(t, ok)
	copy(tcpHdr, []byte{1, 2, 3, 4})

	ipHdr, ok := f.Prepend(2)
	require.True(t, ok)
	copy(ipHdr, []byte{0xAA, 0xBB})

	full := f.Bytes()
	assert.Equal(t, []byte{0xAA, 0xBB, 1, 2, 3, 4}, full[:6])
	assert.Equal(t, "payload", string(full[6:]))
}

func TestAdvanceWalksHeaders(t *testing.T) {
	f := New(newRaw())
	require.True(t, f.SetPayload([]byte{0xAA, 0xBB, 1, 2, 3, 4, 'h', 'i'}))

	ipHdr, ok := f.Advance(2)
	require.True(t, ok)
	assert.Equal(t, []byte{0xAA, 0xBB}, ipHdr)

	tcpHdr, ok := f.Advance(4)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, tcpHdr)

	assert.Equal(t, "hi", string(f.Bytes()))
}

func TestAdvanceShortBufferFails(t *testing.T) {
	f := New(newRaw())
	require.True(t, f.SetPayload([]byte{1, 2}))

	_, ok := f.Advance(10)
	assert.False(t, ok)
}

func TestPrependRespectsHeadroom(t *testing.T) {
	f := New(newRaw())
	require.True(t, f.SetPayload([]byte("x")))

	_, ok := f.Prepend(buffer.Size + 1)
	assert.False(t, ok)
}

func TestTruncate(t *testing.T) {
	f := New(newRaw())
	require.True(t, f.SetPayload([]byte("0123456789")))
	f.Truncate(4)
	assert.Equal(t, "0123", string(f.Bytes()))
}

func TestChainFIFOOrder(t *testing.T) {
	a := New(newRaw())
	b := New(newRaw())
	c := New(newRaw())
	require.True(t, a.SetPayload([]byte("a")))
	require.True(t, b.SetPayload([]byte("b")))
	require.True(t, c.SetPayload([]byte("c")))

	a.Chain(b)
	a.Chain(c)

	head, rest := a.PopChain()
	assert.Equal(t, "a", string(head.Bytes()))
	require.NotNil(t, rest)
	assert.Equal(t, "b", string(rest.Bytes()))

	head2, rest2 := rest.PopChain()
	assert.Equal(t, "b", string(head2.Bytes()))
	require.NotNil(t, rest2)
	assert.Equal(t, "c", string(rest2.Bytes()))

	_, rest3 := rest2.PopChain()
	assert.Nil(t, rest3)
}

func TestClone(t *testing.T) {
	f := New(newRaw())
	require.True(t, f.SetPayload([]byte("original")))

	clone := f.Clone(newRaw())
	assert.Equal(t, "original", string(clone.Bytes()))
	assert.NotSame(t, f.Raw(), clone.Raw())
}
