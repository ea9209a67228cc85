package tcp

import (
	"encoding/binary"

	"github.com/behrlich/unet/internal/frame"
)

// Flag bits in the TCP header's 6-bit flags field (RFC 793 §3.1).
const (
	FlagFIN uint8 = 1 << 0
	FlagSYN uint8 = 1 << 1
	FlagRST uint8 = 1 << 2
	FlagPSH uint8 = 1 << 3
	FlagACK uint8 = 1 << 4
	FlagURG uint8 = 1 << 5
)

// MinHeaderLen is the fixed TCP header size before options.
const MinHeaderLen = 20

// Segment is one parsed incoming TCP segment.
type Segment struct {
	SrcPort, DstPort uint16
	Seq              Seq
	Ack              Seq
	DataOffset       int
	Flags            uint8
	Window           uint16
	Checksum         uint16
	Options          Options
	Payload          []byte
}

func (s Segment) Len() int {
	l := len(s.Payload)
	if s.Flags&FlagSYN != 0 {
		l++
	}
	if s.Flags&FlagFIN != 0 {
		l++
	}
	return l
}

// ParseSegment parses a TCP segment from b (the IPv4 payload, header
// through data).
func ParseSegment(b []byte) (Segment, bool) {
	if len(b) < MinHeaderLen {
		return Segment{}, false
	}
	var s Segment
	s.SrcPort = binary.BigEndian.Uint16(b[0:2])
	s.DstPort = binary.BigEndian.Uint16(b[2:4])
	s.Seq = Seq(binary.BigEndian.Uint32(b[4:8]))
	s.Ack = Seq(binary.BigEndian.Uint32(b[8:12]))
	s.DataOffset = int(b[12]>>4) * 4
	s.Flags = b[13]
	s.Window = binary.BigEndian.Uint16(b[14:16])
	s.Checksum = binary.BigEndian.Uint16(b[16:18])
	if s.DataOffset < MinHeaderLen || s.DataOffset > len(b) {
		return Segment{}, false
	}
	if s.DataOffset > MinHeaderLen {
		s.Options = ParseOptions(b[MinHeaderLen:s.DataOffset])
	}
	s.Payload = b[s.DataOffset:]
	return s, true
}

// BuildSegment writes a TCP header plus options into f ahead of any
// payload already set as f's window, per the Prepend-header pattern
// every layer in this stack uses.
func BuildSegment(f *frame.Frame, srcPort, dstPort uint16, seq, ack Seq, flags uint8, window uint16, options []byte) bool {
	hdrLen := MinHeaderLen + len(options)
	hdr, ok := f.Prepend(hdrLen)
	if !ok {
		return false
	}
	binary.BigEndian.PutUint16(hdr[0:2], srcPort)
	binary.BigEndian.PutUint16(hdr[2:4], dstPort)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(seq))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(ack))
	hdr[12] = byte(hdrLen/4) << 4
	hdr[13] = flags
	binary.BigEndian.PutUint16(hdr[14:16], window)
	hdr[16], hdr[17] = 0, 0 // checksum filled in by caller once pseudo-header is known
	hdr[18], hdr[19] = 0, 0
	copy(hdr[20:], options)
	return true
}

// Checksum computes the TCP checksum over a pseudo-header (src, dst, TCP
// protocol number, length) followed by the full TCP segment (header,
// options, and payload), per RFC 793 §3.1.
func Checksum(src, dst [4]byte, segment []byte) uint16 {
	var sum uint32
	sum += uint32(binary.BigEndian.Uint16(src[0:2]))
	sum += uint32(binary.BigEndian.Uint16(src[2:4]))
	sum += uint32(binary.BigEndian.Uint16(dst[0:2]))
	sum += uint32(binary.BigEndian.Uint16(dst[2:4]))
	sum += uint32(6) // protocol TCP
	sum += uint32(len(segment))

	for i := 0; i+1 < len(segment); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(segment[i : i+2]))
	}
	if len(segment)%2 == 1 {
		sum += uint32(segment[len(segment)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}
