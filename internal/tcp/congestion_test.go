package tcp

import (
	"testing"

	"github.com/behrlich/unet/internal/interfaces"
	"github.com/behrlich/unet/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCongestionControllerStartsInSlowStart(t *testing.T) {
	cc := newCongestionController(1460)
	assert.Equal(t, uint32(2920), cc.window())
	assert.False(t, cc.inFastRecovery)
}

func TestOnNewAckGrowsExponentiallyBelowSsthresh(t *testing.T) {
	cc := newCongestionController(1000)
	cc.ssthresh = 100000
	before := cc.window()
	cc.onNewAck(Seq(1000), 1000)
	assert.Equal(t, before+1000, cc.window())
}

func TestOnNewAckGrowsLinearlyAtOrAboveSsthresh(t *testing.T) {
	cc := newCongestionController(1000)
	cc.cwnd = 5000
	cc.ssthresh = 5000
	before := cc.window()
	cc.onNewAck(Seq(1000), 1000)
	assert.Less(t, cc.window()-before, uint32(1000))
	assert.Greater(t, cc.window(), before)
}

func TestEnterFastRecoveryHalvesWindowAndMarksRecoveryPoint(t *testing.T) {
	cc := newCongestionController(1000)
	cc.cwnd = 10000
	cc.enterFastRecovery(Seq(5000))
	assert.Equal(t, uint32(5000), cc.ssthresh)
	assert.Equal(t, cc.ssthresh+dupAckThreshold*cc.mss, cc.window())
	assert.True(t, cc.inFastRecovery)
	assert.Equal(t, Seq(5000), cc.recoveryHighSeq)
}

func TestEnterFastRecoveryFloorsSsthreshAtTwoSegments(t *testing.T) {
	cc := newCongestionController(1000)
	cc.cwnd = 1000
	cc.enterFastRecovery(Seq(1))
	assert.Equal(t, uint32(2000), cc.ssthresh)
}

func TestInflateGrowsWindowByOneSegmentPerCall(t *testing.T) {
	cc := newCongestionController(1000)
	before := cc.window()
	cc.inflate()
	assert.Equal(t, before+1000, cc.window())
}

func TestOnNewAckReachingRecoveryPointDeflatesAndExitsRecovery(t *testing.T) {
	cc := newCongestionController(1000)
	cc.cwnd = 10000
	cc.enterFastRecovery(Seq(5000))
	cc.onNewAck(Seq(5000), 200)
	assert.False(t, cc.inFastRecovery)
	assert.Equal(t, cc.ssthresh, cc.window())
}

func TestOnNewAckPartialDuringRecoveryDeflatesButStaysInRecovery(t *testing.T) {
	cc := newCongestionController(1000)
	cc.cwnd = 10000
	cc.enterFastRecovery(Seq(5000))
	windowAfterEntry := cc.window()
	cc.onNewAck(Seq(4000), 500)
	assert.True(t, cc.inFastRecovery)
	assert.Equal(t, windowAfterEntry-500+cc.mss, cc.window())
}

func TestOnTimeoutCollapsesWindowAndEndsRecovery(t *testing.T) {
	cc := newCongestionController(1000)
	cc.cwnd = 20000
	cc.inFastRecovery = true
	cc.onTimeout()
	assert.Equal(t, cc.mss, cc.window())
	assert.False(t, cc.inFastRecovery)
	assert.Equal(t, uint32(10000), cc.ssthresh)
}

func TestThreeDupAcksEnterFastRecoveryWithAdjustedWindow(t *testing.T) {
	sender := &fakeSender{}
	tm := timer.NewManual()
	c := newConnection(testFlow(), Established, Seq(1000), DefaultConfig(), sender, tm, interfaces.NoOpObserver{}, noopLog{}, Handlers{})
	c.sndWND = 8192
	c.peerMSS = 1000
	c.cc.mss = 1000
	c.cc.cwnd = 1000 * 10
	c.rcvNXT = Seq(1)

	require.NoError(t, c.Write([]byte("hello"), nil))
	require.NoError(t, c.Write([]byte("world"), nil))

	for i := 0; i < 3; i++ {
		c.Receive(Segment{Flags: FlagACK, Seq: Seq(1), Ack: Seq(1000), Window: 8192})
	}

	assert.True(t, c.cc.inFastRecovery)
	assert.Equal(t, c.cc.ssthresh+dupAckThreshold*c.cc.mss, c.cc.window())
}
