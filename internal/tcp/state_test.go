package tcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloseTargetMatchesLifecycleTable(t *testing.T) {
	cases := []struct {
		from State
		want State
	}{
		{Listen, Closed},
		{SynSent, Closed},
		{SynRcvd, FinWait1},
		{Established, FinWait1},
		{CloseWait, LastAck},
	}
	for _, c := range cases {
		got, ok := c.from.CloseTarget()
		assert.True(t, ok, c.from.String())
		assert.Equal(t, c.want, got, c.from.String())
	}
}

func TestCloseInvalidInTerminalStates(t *testing.T) {
	for _, s := range []State{FinWait1, FinWait2, Closing, LastAck, TimeWait, Closed} {
		assert.False(t, s.CanClose(), s.String())
	}
}

func TestCanReceiveDataStates(t *testing.T) {
	assert.True(t, Established.CanReceiveData())
	assert.True(t, SynRcvd.CanReceiveData())
	assert.False(t, Listen.CanReceiveData())
	assert.False(t, CloseWait.CanReceiveData())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ESTABLISHED", Established.String())
	assert.Equal(t, "TIME_WAIT", TimeWait.String())
}
