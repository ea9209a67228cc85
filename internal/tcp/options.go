package tcp

import "encoding/binary"

// TCP option kinds (RFC 793, RFC 1323, RFC 2018).
const (
	optEnd       = 0
	optNOP       = 1
	optMSS       = 2
	optWndScale  = 3
	optSACKOK    = 4
	optSACK      = 5
	optTimestamp = 8
)

// Options holds the subset of TCP options this engine negotiates.
type Options struct {
	MSS      uint16
	HasMSS   bool
	WndScale uint8
	HasWS    bool
	SACKOK   bool
	TSVal    uint32
	TSEcr    uint32
	HasTS    bool
	SACK     []SACKBlock
}

// SACKBlock is one reported left/right edge pair from a received SACK
// option (RFC 2018).
type SACKBlock struct {
	Start, End Seq
}

// ParseOptions parses the TCP options region following the fixed
// 20-byte header.
func ParseOptions(b []byte) Options {
	var o Options
	i := 0
	for i < len(b) {
		kind := b[i]
		switch kind {
		case optEnd:
			return o
		case optNOP:
			i++
			continue
		case optMSS:
			if i+4 <= len(b) && b[i+1] == 4 {
				o.MSS = binary.BigEndian.Uint16(b[i+2 : i+4])
				o.HasMSS = true
			}
			i += advance(b, i)
		case optWndScale:
			if i+3 <= len(b) && b[i+1] == 3 {
				o.WndScale = b[i+2]
				o.HasWS = true
			}
			i += advance(b, i)
		case optSACKOK:
			o.SACKOK = true
			i += advance(b, i)
		case optTimestamp:
			if i+10 <= len(b) && b[i+1] == 10 {
				o.TSVal = binary.BigEndian.Uint32(b[i+2 : i+6])
				o.TSEcr = binary.BigEndian.Uint32(b[i+6 : i+10])
				o.HasTS = true
			}
			i += advance(b, i)
		case optSACK:
			if i+1 < len(b) {
				length := int(b[i+1])
				n := (length - 2) / 8
				for k := 0; k < n && i+2+k*8+8 <= len(b); k++ {
					start := binary.BigEndian.Uint32(b[i+2+k*8 : i+6+k*8])
					end := binary.BigEndian.Uint32(b[i+6+k*8 : i+10+k*8])
					o.SACK = append(o.SACK, SACKBlock{Start: Seq(start), End: Seq(end)})
				}
			}
			i += advance(b, i)
		default:
			i += advance(b, i)
		}
	}
	return o
}

func advance(b []byte, i int) int {
	if i+1 >= len(b) {
		return len(b)
	}
	length := int(b[i+1])
	if length < 2 {
		return len(b)
	}
	return length
}

// BuildSynOptions builds the options region for an outgoing SYN: MSS,
// window scale, SACK-permitted, padded to a 4-byte boundary with NOPs.
func BuildSynOptions(mss uint16, wndScale uint8, sackEnabled bool) []byte {
	buf := make([]byte, 0, 16)
	buf = append(buf, optMSS, 4)
	buf = binary.BigEndian.AppendUint16(buf, mss)
	buf = append(buf, optNOP, optWndScale, 3, wndScale)
	if sackEnabled {
		buf = append(buf, optNOP, optNOP, optSACKOK, 2)
	}
	return padOptions(buf)
}

// BuildAckOptions builds the options region for an ordinary data/ACK
// segment: SACK blocks only, when there is out-of-order data to report.
func BuildAckOptions(blocks []SACKBlock) []byte {
	if len(blocks) == 0 {
		return nil
	}
	if len(blocks) > 4 {
		blocks = blocks[:4]
	}
	buf := []byte{optNOP, optNOP, optSACK, byte(2 + 8*len(blocks))}
	for _, blk := range blocks {
		buf = binary.BigEndian.AppendUint32(buf, uint32(blk.Start))
		buf = binary.BigEndian.AppendUint32(buf, uint32(blk.End))
	}
	return padOptions(buf)
}

func padOptions(buf []byte) []byte {
	for len(buf)%4 != 0 {
		buf = append(buf, optNOP)
	}
	return buf
}
