// Package virtio implements a virtio-net 1.x driver frontend on top of
// internal/virtqueue's split rings: RX, TX and control queues, legacy
// feature negotiation, and the virtio-net header every frame carries on
// the wire. Device implements interfaces.NIC so it plugs directly into
// the Ethernet layer.
//
// There is no real hypervisor on the other end of these rings in a
// pure-Go build, so Device plays both driver and device role itself,
// synchronously, matching the single-threaded run-to-completion model
// the rest of the stack uses: Transmit walks its own TX avail entry
// immediately instead of waiting for an interrupt, and DeliverFrame
// (the hardware-receive path) walks its own RX avail entry the same
// way. A real deployment would replace the synchronous device-side walk
// with a vhost-net fd or a VM monitor's virtio-net backend; the ring
// machinery and header format stay identical either way.
package virtio

import (
	"fmt"

	"github.com/behrlich/unet/internal/interfaces"
	"github.com/behrlich/unet/internal/virtqueue"
)

const (
	// Feature bits this driver negotiates (virtio-net + base virtio 1.x).
	FeatureMAC      uint64 = 1 << 5  // VIRTIO_NET_F_MAC
	FeatureStatus   uint64 = 1 << 16 // VIRTIO_NET_F_STATUS
	FeatureVersion1 uint64 = 1 << 32 // VIRTIO_F_VERSION_1

	supportedFeatures = FeatureMAC | FeatureStatus | FeatureVersion1

	netHeaderLen = 10 // legacy virtio_net_hdr: no mergeable-buffers/GSO

	defaultQueueSize = 256
	defaultMTU       = 1500
)

// NotifyMode selects how completions are signalled: MSI-X gives RX, TX
// and the control queue independent vectors; legacy IRQ multiplexes all
// three behind one shared line, so a consumer must check every queue on
// each notification.
type NotifyMode int

const (
	NotifyModeMSIX NotifyMode = iota
	NotifyModeLegacyIRQ
)

// Status holds the negotiated configuration space fields a real
// virtio-net device would expose as PCI config registers.
type Status struct {
	Negotiated uint64
	Linkup     bool
	DriverOK   bool
}

// Device is a virtio-net frontend driver.
type Device struct {
	mac [6]byte
	mtu int

	rx, tx, ctrl *virtqueue.Queue
	notifyMode   NotifyMode
	status       Status

	receiveFn  func([]byte)
	transmitFn func([]byte) error // downstream sink; nil until wired by a backend
}

// New creates a virtio-net device bound to mac, with the three queues
// sized queueSize (must be a power of two).
func New(mac [6]byte, queueSize uint16, notifyMode NotifyMode) *Device {
	if queueSize == 0 {
		queueSize = defaultQueueSize
	}
	return &Device{
		mac:        mac,
		mtu:        defaultMTU,
		rx:         virtqueue.New(queueSize),
		tx:         virtqueue.New(queueSize),
		ctrl:       virtqueue.New(queueSize),
		notifyMode: notifyMode,
	}
}

// SetTransmitSink wires the function Device hands completed TX frames
// to — a TAP file descriptor write, a loopback peer's DeliverFrame, or
// (in tests) a recording stub.
func (d *Device) SetTransmitSink(fn func([]byte) error) { d.transmitFn = fn }

// Status returns the device's negotiated feature/link state.
func (d *Device) Status() Status { return d.status }

// NotifyMode returns which completion-signalling mode this device was
// configured with.
func (d *Device) NotifyMode() NotifyMode { return d.notifyMode }

// Start negotiates features and brings the link up: it populates the RX
// queue with empty device-writable buffers and announces DRIVER_OK, the
// point at which the device is allowed to start using the queues.
func (d *Device) Start() error {
	d.status.Negotiated = supportedFeatures
	for i := 0; i < int(d.rx.Size())/2; i++ {
		if err := d.postRxBuffer(); err != nil {
			return fmt.Errorf("virtio: populating rx queue: %w", err)
		}
	}
	d.status.Linkup = true
	d.status.DriverOK = true
	return nil
}

func (d *Device) postRxBuffer() error {
	buf := make([]byte, netHeaderLen+14+d.mtu)
	_, err := d.rx.Enqueue([]virtqueue.Chunk{{Data: buf, DeviceWritable: true}})
	if err != nil {
		return err
	}
	d.rx.Kick()
	return nil
}

// MTU returns the Ethernet payload MTU (not counting the Ethernet
// header or the virtio-net header).
func (d *Device) MTU() int { return d.mtu }

// MAC returns the device's negotiated hardware address.
func (d *Device) MAC() [6]byte { return d.mac }

// SetReceiver registers the callback invoked for every frame delivered
// via DeliverFrame.
func (d *Device) SetReceiver(fn func([]byte)) { d.receiveFn = fn }

// Close tears down the device. Idempotent.
func (d *Device) Close() error {
	d.status.DriverOK = false
	d.status.Linkup = false
	return nil
}

// Transmit sends one Ethernet frame: it prepends a zeroed virtio-net
// header, walks its own TX avail entry as the device side would
// (collectTxDescriptorChain), hands the payload to the transmit sink,
// and reclaims the descriptor chain.
func (d *Device) Transmit(buf []byte) error {
	if !d.status.DriverOK {
		return fmt.Errorf("virtio: device not started")
	}
	framed := make([]byte, netHeaderLen+len(buf))
	copy(framed[netHeaderLen:], buf)

	tok, err := d.tx.Enqueue([]virtqueue.Chunk{{Data: framed}})
	if err != nil {
		return fmt.Errorf("virtio: tx ring full: %w", err)
	}
	d.tx.Kick()

	devTok, chunks, ok := d.tx.PopAvail()
	if !ok || devTok != tok {
		return fmt.Errorf("virtio: tx descriptor chain mismatch")
	}
	payload := collectTxDescriptorChain(chunks)
	d.tx.PushUsed(devTok, uint32(len(payload)))
	if _, ok := d.tx.Dequeue(); !ok {
		return fmt.Errorf("virtio: tx completion lost")
	}

	if d.transmitFn == nil {
		return nil
	}
	return d.transmitFn(payload[netHeaderLen:])
}

// collectTxDescriptorChain concatenates a descriptor chain's buffers
// into one contiguous payload, the same walk a real virtio-net device
// performs to linearize a scatter-gather TX chain before sending it to
// the wire.
func collectTxDescriptorChain(chunks []virtqueue.Chunk) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c.Data)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	return out
}

// DeliverFrame is the hardware-receive path: it pops the next RX
// descriptor the driver posted (a buffer placed by postRxBuffer),
// writes the virtio-net header and frame bytes into it, completes it on
// the used ring, dequeues it on the driver side, and invokes the
// registered receiver with the Ethernet frame — then posts a fresh
// empty buffer to replace the one just consumed.
func (d *Device) DeliverFrame(buf []byte) error {
	if !d.status.DriverOK {
		return fmt.Errorf("virtio: device not started")
	}
	tok, chunks, ok := d.rx.PopAvail()
	if !ok || len(chunks) == 0 {
		return fmt.Errorf("virtio: rx ring exhausted")
	}
	dst := chunks[0].Data
	need := netHeaderLen + len(buf)
	if need > len(dst) {
		return fmt.Errorf("virtio: rx buffer too small for frame (%d > %d)", need, len(dst))
	}
	for i := range dst[:netHeaderLen] {
		dst[i] = 0
	}
	copy(dst[netHeaderLen:need], buf)

	d.rx.PushUsed(tok, uint32(need))
	c, ok := d.rx.Dequeue()
	if !ok {
		return fmt.Errorf("virtio: rx completion lost")
	}

	if d.receiveFn != nil {
		d.receiveFn(append([]byte(nil), dst[netHeaderLen:c.Len]...))
	}
	return d.postRxBuffer()
}

var _ interfaces.NIC = (*Device)(nil)
