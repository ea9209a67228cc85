package tcp

import (
	"testing"

	"github.com/behrlich/unet/internal/interfaces"
	"github.com/behrlich/unet/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerAcceptsAndEstablishesConnection(t *testing.T) {
	sender := &fakeSender{}
	tm := timer.NewManual()
	seq := Seq(1000)
	var established *Connection

	ln := NewListener(80, 4, DefaultConfig(), sender, tm, interfaces.NoOpObserver{}, noopLog{},
		func() Seq { s := seq; seq = seq.Add(1000); return s },
		func(c *Connection) Handlers { return Handlers{} },
		func(c *Connection) { established = c })

	flow := testFlow()
	ln.HandleSegment(flow, Segment{Flags: FlagSYN, Seq: Seq(500), Window: 8192})
	require.Len(t, ln.pending, 1)

	pc := ln.pending[flow]
	ack := Segment{Flags: FlagACK, Seq: Seq(501), Ack: pc.sndNXT, Window: 8192}
	ln.HandleSegment(flow, ack)

	require.NotNil(t, established)
	assert.Equal(t, Established, established.State())
	assert.Empty(t, ln.pending)
}

func TestListenerDropsSynsBeyondBacklog(t *testing.T) {
	sender := &fakeSender{}
	tm := timer.NewManual()
	ln := NewListener(80, 1, DefaultConfig(), sender, tm, interfaces.NoOpObserver{}, noopLog{},
		func() Seq { return Seq(1) },
		func(c *Connection) Handlers { return Handlers{} },
		func(c *Connection) {})

	ln.HandleSegment(Flow{LocalPort: 80, RemotePort: 1}, Segment{Flags: FlagSYN, Seq: Seq(1)})
	ln.HandleSegment(Flow{LocalPort: 80, RemotePort: 2}, Segment{Flags: FlagSYN, Seq: Seq(2)})

	assert.Len(t, ln.pending, 1)
}

func TestListenerCloseAbortsPendingConnections(t *testing.T) {
	sender := &fakeSender{}
	tm := timer.NewManual()
	ln := NewListener(80, 4, DefaultConfig(), sender, tm, interfaces.NoOpObserver{}, noopLog{},
		func() Seq { return Seq(1) },
		func(c *Connection) Handlers { return Handlers{} },
		func(c *Connection) {})

	ln.HandleSegment(Flow{LocalPort: 80, RemotePort: 1}, Segment{Flags: FlagSYN, Seq: Seq(1)})
	require.Len(t, ln.pending, 1)

	ln.Close()
	assert.Empty(t, ln.pending)
}
