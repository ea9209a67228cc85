package tcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParseSynOptionsRoundTrip(t *testing.T) {
	raw := BuildSynOptions(1460, 5, true)
	o := ParseOptions(raw)

	require.True(t, o.HasMSS)
	assert.Equal(t, uint16(1460), o.MSS)
	require.True(t, o.HasWS)
	assert.Equal(t, uint8(5), o.WndScale)
	assert.True(t, o.SACKOK)
}

func TestBuildSynOptionsWithoutSACK(t *testing.T) {
	raw := BuildSynOptions(1460, 5, false)
	o := ParseOptions(raw)
	assert.False(t, o.SACKOK)
}

func TestParseOptionsStopsAtEnd(t *testing.T) {
	raw := []byte{optMSS, 4, 0x05, 0xb4, optEnd, 0xFF, 0xFF}
	o := ParseOptions(raw)
	assert.True(t, o.HasMSS)
	assert.Equal(t, uint16(1460), o.MSS)
}

func TestBuildAndParseSACKOptions(t *testing.T) {
	blocks := []SACKBlock{{Start: 1000, End: 2000}, {Start: 3000, End: 3500}}
	raw := BuildAckOptions(blocks)
	o := ParseOptions(raw)

	require.Len(t, o.SACK, 2)
	assert.Equal(t, Seq(1000), o.SACK[0].Start)
	assert.Equal(t, Seq(2000), o.SACK[0].End)
	assert.Equal(t, Seq(3000), o.SACK[1].Start)
	assert.Equal(t, Seq(3500), o.SACK[1].End)
}

func TestBuildAckOptionsEmptyReturnsNil(t *testing.T) {
	assert.Nil(t, BuildAckOptions(nil))
}

func TestOptionsAlwaysPaddedToFourBytes(t *testing.T) {
	raw := BuildSynOptions(1460, 5, true)
	assert.Equal(t, 0, len(raw)%4)
	raw2 := BuildAckOptions([]SACKBlock{{Start: 1, End: 2}})
	assert.Equal(t, 0, len(raw2)%4)
}
