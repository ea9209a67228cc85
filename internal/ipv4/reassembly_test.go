package ipv4

import (
	"testing"

	"github.com/behrlich/unet/internal/buffer"
	"github.com/behrlich/unet/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragFrame(pool *buffer.Pool, data []byte) *frame.Frame {
	raw, _ := pool.Acquire()
	f := frame.New(raw)
	f.SetPayload(data)
	return f
}

func TestReassemblerCompletesInOrder(t *testing.T) {
	pool := buffer.New(8)
	pool.Donate(8)
	r := NewReassembler()
	key := fragKey{src: Addr{1, 2, 3, 4}, dst: Addr{5, 6, 7, 8}, proto: ProtoUDP, id: 42}

	complete, _ := r.Insert(key, 0, true, fragFrame(pool, []byte("AAAA")), pool)
	assert.False(t, complete)

	complete, payload := r.Insert(key, 8, false, fragFrame(pool, []byte("CCCC")), pool)
	assert.False(t, complete)
	assert.Nil(t, payload)

	complete, payload = r.Insert(key, 4, true, fragFrame(pool, []byte("BBBB")), pool)
	require.True(t, complete)
	require.NotNil(t, payload)
	assert.Equal(t, "AAAABBBBCCCC", string(payload.Bytes()))
}

func TestReassemblerOutOfOrderCompletion(t *testing.T) {
	pool := buffer.New(8)
	pool.Donate(8)
	r := NewReassembler()
	key := fragKey{src: Addr{1, 1, 1, 1}, dst: Addr{2, 2, 2, 2}, proto: ProtoUDP, id: 1}

	complete, _ := r.Insert(key, 4, false, fragFrame(pool, []byte("BBBB")), pool)
	assert.False(t, complete)

	complete, payload := r.Insert(key, 0, true, fragFrame(pool, []byte("AAAA")), pool)
	require.True(t, complete)
	assert.Equal(t, "AAAABBBB", string(payload.Bytes()))
}

func TestReassemblerOverlapAbortsEntry(t *testing.T) {
	pool := buffer.New(8)
	pool.Donate(8)
	r := NewReassembler()
	key := fragKey{src: Addr{1, 1, 1, 1}, dst: Addr{2, 2, 2, 2}, proto: ProtoUDP, id: 2}

	r.Insert(key, 0, true, fragFrame(pool, []byte("AAAA")), pool)
	complete, payload := r.Insert(key, 2, true, fragFrame(pool, []byte("BBBB")), pool)

	assert.False(t, complete)
	assert.Nil(t, payload)
	assert.False(t, r.Pending(key))
}

func TestReassemblerBoundedEntryCount(t *testing.T) {
	pool := buffer.New(256)
	pool.Donate(256)
	r := NewReassembler()

	for i := 0; i < 64; i++ {
		key := fragKey{src: Addr{1, 1, 1, 1}, dst: Addr{2, 2, 2, 2}, proto: ProtoUDP, id: uint16(i)}
		r.Insert(key, 4, false, fragFrame(pool, []byte("xxxx")), pool)
	}

	overflow := fragKey{src: Addr{1, 1, 1, 1}, dst: Addr{2, 2, 2, 2}, proto: ProtoUDP, id: 9999}
	complete, payload := r.Insert(overflow, 0, true, fragFrame(pool, []byte("y")), pool)
	assert.False(t, complete)
	assert.Nil(t, payload)
	assert.False(t, r.Pending(overflow))
}

func TestExpireDropsIncompleteEntry(t *testing.T) {
	pool := buffer.New(8)
	pool.Donate(8)
	r := NewReassembler()
	key := fragKey{src: Addr{1, 1, 1, 1}, dst: Addr{2, 2, 2, 2}, proto: ProtoUDP, id: 3}

	r.Insert(key, 0, true, fragFrame(pool, []byte("AAAA")), pool)
	require.True(t, r.Pending(key))

	assert.True(t, r.Expire(key))
	assert.False(t, r.Pending(key))
	assert.False(t, r.Expire(key))
}
