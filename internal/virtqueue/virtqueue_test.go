package virtqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueKickPopAvail(t *testing.T) {
	q := New(8)

	tok, err := q.Enqueue([]Chunk{{Data: []byte("hello")}})
	require.NoError(t, err)

	// Not visible to the device until Kick publishes avail.idx.
	_, _, ok := q.PopAvail()
	assert.False(t, ok)

	q.Kick()

	gotTok, chunks, ok := q.PopAvail()
	require.True(t, ok)
	assert.Equal(t, tok, gotTok)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", string(chunks[0].Data))
}

func TestMultiDescriptorChain(t *testing.T) {
	q := New(8)
	startFree := q.NumFree()

	tok, err := q.Enqueue([]Chunk{
		{Data: []byte("header")},
		{Data: make([]byte, 4), DeviceWritable: true},
	})
	require.NoError(t, err)
	assert.Equal(t, startFree-2, q.NumFree())

	q.Kick()
	gotTok, chunks, ok := q.PopAvail()
	require.True(t, ok)
	assert.Equal(t, tok, gotTok)
	require.Len(t, chunks, 2)
	assert.False(t, chunks[0].DeviceWritable)
	assert.True(t, chunks[1].DeviceWritable)
}

func TestPushUsedAndDequeueReclaimsDescriptors(t *testing.T) {
	q := New(8)
	startFree := q.NumFree()

	tok, err := q.Enqueue([]Chunk{{Data: []byte("a")}, {Data: []byte("b")}})
	require.NoError(t, err)
	q.Kick()

	devTok, _, ok := q.PopAvail()
	require.True(t, ok)
	q.PushUsed(devTok, 2)

	c, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, tok, c.Token)
	assert.Equal(t, uint32(2), c.Len)
	assert.Equal(t, startFree, q.NumFree())
}

func TestDequeueEmptyIsFalse(t *testing.T) {
	q := New(4)
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestEnqueueFailsWhenRingFull(t *testing.T) {
	q := New(2)
	_, err := q.Enqueue([]Chunk{{Data: []byte("a")}, {Data: []byte("b")}, {Data: []byte("c")}})
	assert.Error(t, err)
}

func TestInterruptFlagsDefaultEnabled(t *testing.T) {
	q := New(4)
	assert.True(t, q.InterruptsEnabled())
	q.DisableInterrupts()
	assert.False(t, q.InterruptsEnabled())
	q.EnableInterrupts()
	assert.True(t, q.InterruptsEnabled())
}

func TestKickSignalsNotifyChannel(t *testing.T) {
	q := New(4)
	q.Enqueue([]Chunk{{Data: []byte("x")}})
	q.Kick()

	select {
	case <-q.NotifyC():
	default:
		t.Fatal("expected a notify signal after Kick")
	}
}
