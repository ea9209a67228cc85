package tcp

import (
	"testing"

	"github.com/behrlich/unet/internal/buffer"
	"github.com/behrlich/unet/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParseSegmentRoundTrip(t *testing.T) {
	pool := buffer.New(1)
	pool.Donate(1)
	raw, ok := pool.Acquire()
	require.True(t, ok)
	f := frame.New(raw)
	f.SetPayload([]byte("hello"))

	opts := BuildSynOptions(1460, 5, true)
	require.True(t, BuildSegment(f, 1234, 80, Seq(100), Seq(0), FlagSYN, 8192, opts))

	seg, ok := ParseSegment(f.Bytes())
	require.True(t, ok)
	assert.Equal(t, uint16(1234), seg.SrcPort)
	assert.Equal(t, uint16(80), seg.DstPort)
	assert.Equal(t, Seq(100), seg.Seq)
	assert.Equal(t, FlagSYN, seg.Flags)
	assert.Equal(t, uint16(8192), seg.Window)
	assert.True(t, seg.Options.HasMSS)
	assert.Equal(t, uint16(1460), seg.Options.MSS)
	assert.Equal(t, "hello", string(seg.Payload))
}

func TestParseSegmentRejectsShortHeader(t *testing.T) {
	_, ok := ParseSegment(make([]byte, 10))
	assert.False(t, ok)
}

func TestSegmentLenCountsSynAndFin(t *testing.T) {
	s := Segment{Flags: FlagSYN, Payload: []byte("ab")}
	assert.Equal(t, 3, s.Len())
	s2 := Segment{Flags: FlagFIN}
	assert.Equal(t, 1, s2.Len())
}

func TestChecksumDetectsCorruption(t *testing.T) {
	src := [4]byte{10, 0, 0, 1}
	dst := [4]byte{10, 0, 0, 2}
	seg := make([]byte, MinHeaderLen)
	sum := Checksum(src, dst, seg)
	seg[16], seg[17] = byte(sum>>8), byte(sum)

	assert.Equal(t, uint16(0), Checksum(src, dst, seg))

	seg[0] ^= 0xFF
	assert.NotEqual(t, uint16(0), Checksum(src, dst, seg))
}
