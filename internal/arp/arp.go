// Package arp implements IPv4 address resolution: a TTL-evicted cache, a
// pending-resolution queue that chains multiple writers onto one
// in-flight request, and a resolver that retries at a fixed interval
// before giving up. The learn-on-every-packet and
// drain-pending-before-dispatch ordering here mirrors the reference
// implementation's Arp::receive exactly.
package arp

import (
	"encoding/binary"
	"time"

	"github.com/behrlich/unet/internal/buffer"
	"github.com/behrlich/unet/internal/constants"
	"github.com/behrlich/unet/internal/frame"
	"github.com/behrlich/unet/internal/interfaces"
	"github.com/behrlich/unet/internal/link"
)

const (
	headerLen = 28

	hwTypeEthernet = 1
	protoTypeIPv4  = 0x0800

	opRequest = 1
	opReply   = 2
)

// IPv4 is a 4-byte IPv4 address, kept as a fixed-size array so it can be
// used directly as a map key.
type IPv4 [4]byte

func (a IPv4) IsBroadcast() bool { return a == Broadcast }

// Broadcast is the IPv4 limited broadcast address, 255.255.255.255.
var Broadcast = IPv4{255, 255, 255, 255}

type cacheEntry struct {
	mac       link.Addr
	updatedAt time.Time
}

func (e cacheEntry) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.updatedAt) > ttl
}

type pendingEntry struct {
	chain          *frame.Frame // FIFO chain of frames awaiting this target
	triesRemaining int
}

// LinkOut transmits one frame to dst over the underlying Ethernet
// interface with the given ethertype. Implemented by *link.Interface.
type LinkOut func(dst link.Addr, ethertype uint16, f *frame.Frame) error

// Table resolves IPv4 addresses to hardware addresses for one
// interface.
type Table struct {
	mac link.Addr
	ip  IPv4

	cache   map[IPv4]cacheEntry
	pending map[IPv4]*pendingEntry

	timer       interfaces.Timer
	sweepHandle interfaces.TimerHandle

	linkOut  LinkOut
	pool     *buffer.Pool
	observer interfaces.Observer
	log      interfaces.Logger

	// proxy, if set, is consulted for requests whose target IP is not
	// ours; returning true causes us to answer on the owner's behalf.
	proxy func(target IPv4) bool
}

// New creates an ARP table for the interface with hardware address mac
// and protocol address ip.
func New(mac link.Addr, ip IPv4, timer interfaces.Timer, linkOut LinkOut, pool *buffer.Pool, observer interfaces.Observer, log interfaces.Logger) *Table {
	return &Table{
		mac:      mac,
		ip:       ip,
		cache:    make(map[IPv4]cacheEntry),
		pending:  make(map[IPv4]*pendingEntry),
		timer:    timer,
		linkOut:  linkOut,
		pool:     pool,
		observer: observer,
		log:      log,
	}
}

// SetProxy installs a proxy-ARP callback consulted for requests
// targeting an address other than our own.
func (t *Table) SetProxy(fn func(target IPv4) bool) {
	t.proxy = fn
}

// RegisterWith wires this table as the ARP handler for iface, and starts
// the pending-resolution retry timer's first sweep lazily (only once
// something is actually pending).
func (t *Table) RegisterWith(iface *link.Interface) {
	iface.RegisterHandler(link.EthertypeARP, t.Receive)
}

// Receive handles one incoming ARP packet. body's Ethernet header has
// already been stripped by the link layer.
func (t *Table) Receive(src link.Addr, body *frame.Frame) {
	raw, ok := body.Advance(headerLen)
	if !ok {
		t.observer.ObserveFrameDropped("short-arp")
		return
	}

	opcode := binary.BigEndian.Uint16(raw[6:8])
	var sha link.Addr
	copy(sha[:], raw[8:14])
	var spa IPv4
	copy(spa[:], raw[14:18])
	var tpa IPv4
	copy(tpa[:], raw[24:28])

	// Learn the sender's mapping unconditionally, before dispatching on
	// opcode — this lets a gratuitous ARP or an ARP reply we weren't
	// expecting still update the cache.
	t.learn(spa, sha)
	t.drainPending(spa, sha)

	switch opcode {
	case opRequest:
		t.observer.ObserveARPRequest(false)
		if tpa == t.ip {
			t.respond(sha, spa, t.ip)
		} else if t.proxy != nil && t.proxy(tpa) {
			t.respond(sha, spa, tpa)
		}
	case opReply:
		t.observer.ObserveARPReply(false)
	}
}

func (t *Table) learn(ip IPv4, mac link.Addr) {
	now := t.timer.Now()
	existing, ok := t.cache[ip]
	if ok && existing.mac == mac {
		existing.updatedAt = now
		t.cache[ip] = existing
		return
	}
	firstEntry := len(t.cache) == 0
	t.cache[ip] = cacheEntry{mac: mac, updatedAt: now}
	if firstEntry && t.sweepHandle == nil {
		t.armSweep()
	}
}

func (t *Table) armSweep() {
	t.sweepHandle = t.timer.After(constants.ARPCacheTTL, t.flushExpired)
}

func (t *Table) flushExpired() {
	now := t.timer.Now()
	for ip, e := range t.cache {
		if e.expired(now, constants.ARPCacheTTL) {
			delete(t.cache, ip)
		}
	}
	t.sweepHandle = nil
	if len(t.cache) > 0 {
		t.armSweep()
	}
}

// drainPending flushes any frames queued for spa now that it has
// resolved, sending them in FIFO order.
func (t *Table) drainPending(ip IPv4, mac link.Addr) {
	p, ok := t.pending[ip]
	if !ok {
		return
	}
	delete(t.pending, ip)

	chain := p.chain
	for chain != nil {
		head, rest := chain.PopChain()
		if err := t.linkOut(mac, link.EthertypeIPv4, head); err != nil {
			t.log.Debugf("arp: drain transmit failed: %v", err)
		}
		chain = rest
	}
}

func (t *Table) respond(dstMAC link.Addr, dstIP IPv4, onBehalfOf IPv4) {
	t.observer.ObserveARPReply(true)
	raw, ok := t.pool.Acquire()
	if !ok {
		t.observer.ObserveFrameDropped("no-buffer")
		return
	}
	f := frame.New(raw)
	t.build(f, opReply, onBehalfOf, dstMAC, dstIP)
	if err := t.linkOut(dstMAC, link.EthertypeARP, f); err != nil {
		t.log.Debugf("arp: reply transmit failed: %v", err)
	}
}

func (t *Table) build(f *frame.Frame, opcode uint16, spa IPv4, tha link.Addr, tpa IPv4) {
	f.SetPayload(make([]byte, headerLen))
	b := f.Bytes()
	binary.BigEndian.PutUint16(b[0:2], hwTypeEthernet)
	binary.BigEndian.PutUint16(b[2:4], protoTypeIPv4)
	b[4] = 6
	b[5] = 4
	binary.BigEndian.PutUint16(b[6:8], opcode)
	copy(b[8:14], t.mac[:])
	copy(b[14:18], spa[:])
	copy(b[18:24], tha[:])
	copy(b[24:28], tpa[:])
}

// Resolve delivers f to target, either immediately (cache hit or
// broadcast target) or after queuing it behind an ARP request. Ownership
// of f transfers to Resolve.
func (t *Table) Resolve(target IPv4, f *frame.Frame) {
	if target.IsBroadcast() {
		if err := t.linkOut(link.Broadcast, link.EthertypeIPv4, f); err != nil {
			t.log.Debugf("arp: broadcast transmit failed: %v", err)
		}
		return
	}
	if e, ok := t.cache[target]; ok {
		if err := t.linkOut(e.mac, link.EthertypeIPv4, f); err != nil {
			t.log.Debugf("arp: transmit failed: %v", err)
		}
		return
	}
	t.awaitResolution(target, f)
}

func (t *Table) awaitResolution(target IPv4, f *frame.Frame) {
	if p, ok := t.pending[target]; ok {
		p.chain.Chain(f)
		return
	}
	p := &pendingEntry{chain: f, triesRemaining: constants.ARPMaxRetries}
	t.pending[target] = p
	t.request(target)
	t.timer.After(constants.ARPResolveRetryInterval, func() { t.resolveTick(target) })
}

func (t *Table) resolveTick(target IPv4) {
	p, ok := t.pending[target]
	if !ok {
		return // resolved (and drained) since the timer was armed
	}
	p.triesRemaining--
	if p.triesRemaining <= 0 {
		t.dropPending(target, p)
		return
	}
	t.request(target)
	t.timer.After(constants.ARPResolveRetryInterval, func() { t.resolveTick(target) })
}

func (t *Table) dropPending(target IPv4, p *pendingEntry) {
	delete(t.pending, target)
	chain := p.chain
	n := 0
	for chain != nil {
		raw := chain.Raw()
		_, rest := chain.PopChain()
		t.pool.Release(raw)
		chain = rest
		n++
	}
	t.observer.ObserveFrameDropped("arp-unresolved")
	t.log.Debugf("arp: giving up on %v after exhausting retries, dropped %d frame(s)", target, n)
}

func (t *Table) request(target IPv4) {
	t.observer.ObserveARPRequest(true)
	raw, ok := t.pool.Acquire()
	if !ok {
		return
	}
	f := frame.New(raw)
	t.build(f, opRequest, t.ip, link.Addr{}, target)
	if err := t.linkOut(link.Broadcast, link.EthertypeARP, f); err != nil {
		t.log.Debugf("arp: request transmit failed: %v", err)
	}
}
