package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var (
	ErrTruncatedTag = errors.New("Status datagram is malformed, a tag length overruns the buffer")
	ErrTagSize      = errors.New("Tag payload does not match its fixed size")
)

// statusHeaderLen is the fixed part of a status datagram, before any tags.
const statusHeaderLen = 8

// StatusPacket is one parsed status datagram from the robot.
type StatusPacket struct {
	Seq         uint16
	CommVersion byte
	Status      StatusFlags
	Trace       TraceFlags
	Battery     float32
	NeedDate    bool
	Tags        []StatusTag
}

// StatusTag is one recognised telemetry tag block of a status datagram.
// Consumers dispatch on the concrete type.
type StatusTag interface {
	statusTag()
}

// JoystickOutput echoes output/rumble state back for one joystick. The
// outputs field is the one little-endian value in the protocol.
type JoystickOutput struct {
	Outputs     uint32
	LeftRumble  uint16
	RightRumble uint16
}

// DiskSpace reports free disk space on the robot controller.
type DiskSpace struct {
	FreeBytes uint32
}

// CPUInfo reports per-priority CPU usage on the robot controller.
type CPUInfo struct {
	NumCPUs      float32
	TimeCritical float32
	AboveNormal  float32
	Normal       float32
	Low          float32
}

// RAMInfo reports memory usage on the robot controller.
type RAMInfo struct {
	Block     uint32
	FreeSpace uint32
}

// PDPLog carries the power distribution panel's raw log block. It is kept
// opaque here; nothing in the station consumes the individual channels.
type PDPLog struct {
	Raw [25]byte
}

// CANMetrics reports CAN bus health.
type CANMetrics struct {
	Utilization float32
	BusOff      uint32
	TXFull      uint32
	RXErrors    uint8
	TXErrors    uint8
}

func (JoystickOutput) statusTag() {}
func (DiskSpace) statusTag()      {}
func (CPUInfo) statusTag()        {}
func (RAMInfo) statusTag()        {}
func (PDPLog) statusTag()         {}
func (CANMetrics) statusTag()     {}

// StatusReader parses status datagrams out of a single receive buffer. It is
// a one-pass cursor: construct it around one buffer, call Next until io.EOF,
// then throw it away.
type StatusReader struct {
	buf []byte
	pos int
}

func NewStatusReader(buf []byte) *StatusReader {
	return &StatusReader{buf: buf}
}

// Next parses the next status datagram from the buffer.
//
// It returns io.EOF once fewer bytes remain than the smallest possible
// datagram. A tag block whose declared length overruns the buffer poisons
// everything after it: Next reports ErrTruncatedTag and the reader is done.
// Fixed-size tags with the wrong declared length report ErrTagSize.
func (r *StatusReader) Next() (*StatusPacket, error) {
	if len(r.buf)-r.pos <= statusHeaderLen {
		return nil, io.EOF
	}

	buf := r.buf[r.pos:]
	pkt := &StatusPacket{
		Seq:         binary.BigEndian.Uint16(buf[0:2]),
		CommVersion: buf[2],
		Status:      StatusFlags(buf[3]),
		Trace:       TraceFlags(buf[4]),
		Battery:     (float32(buf[5]) + float32(buf[6])) / 256.0,
		NeedDate:    buf[7] == 1,
	}
	r.pos += statusHeaderLen

	// Tag blocks run to the end of the datagram.
	for len(r.buf)-r.pos >= 2 {
		size := int(r.buf[r.pos])
		id := r.buf[r.pos+1]

		if size == 0 || r.pos+1+size > len(r.buf) {
			r.pos = len(r.buf)
			return nil, ErrTruncatedTag
		}

		payload := r.buf[r.pos+2 : r.pos+1+size]
		r.pos += 1 + size

		tag, err := parseStatusTag(id, payload)
		if err != nil {
			r.pos = len(r.buf)
			return nil, err
		}
		if tag != nil {
			pkt.Tags = append(pkt.Tags, tag)
		}
	}

	// A single dangling byte cannot frame a tag.
	r.pos = len(r.buf)

	return pkt, nil
}

func parseStatusTag(id byte, payload []byte) (StatusTag, error) {
	switch id {
	case 0x01: // joystick output echo
		if len(payload) == 0 {
			// The robot sends an empty echo when no joysticks are plugged in.
			return nil, nil
		}
		if len(payload) != 8 {
			return nil, ErrTagSize
		}
		return JoystickOutput{
			Outputs:     binary.LittleEndian.Uint32(payload[0:4]),
			LeftRumble:  binary.BigEndian.Uint16(payload[4:6]),
			RightRumble: binary.BigEndian.Uint16(payload[6:8]),
		}, nil

	case 0x04: // disk space
		if len(payload) != 4 {
			return nil, ErrTagSize
		}
		return DiskSpace{FreeBytes: binary.BigEndian.Uint32(payload)}, nil

	case 0x05: // cpu stats
		if len(payload) != 20 {
			return nil, ErrTagSize
		}
		return CPUInfo{
			NumCPUs:      beFloat32(payload[0:4]),
			TimeCritical: beFloat32(payload[4:8]),
			AboveNormal:  beFloat32(payload[8:12]),
			Normal:       beFloat32(payload[12:16]),
			Low:          beFloat32(payload[16:20]),
		}, nil

	case 0x06: // ram stats
		if len(payload) != 8 {
			return nil, ErrTagSize
		}
		return RAMInfo{
			Block:     binary.BigEndian.Uint32(payload[0:4]),
			FreeSpace: binary.BigEndian.Uint32(payload[4:8]),
		}, nil

	case 0x08: // pdp log
		if len(payload) != 25 {
			return nil, ErrTagSize
		}
		var tag PDPLog
		copy(tag.Raw[:], payload)
		return tag, nil

	case 0x09: // unclassified, fixed size, contents unknown
		if len(payload) != 9 {
			return nil, ErrTagSize
		}
		return nil, nil

	case 0x0E: // can metrics
		if len(payload) != 14 {
			return nil, ErrTagSize
		}
		return CANMetrics{
			Utilization: beFloat32(payload[0:4]),
			BusOff:      binary.BigEndian.Uint32(payload[4:8]),
			TXFull:      binary.BigEndian.Uint32(payload[8:12]),
			RXErrors:    payload[12],
			TXErrors:    payload[13],
		}, nil

	default:
		// Unknown tags are skipped by length, not treated as errors.
		return nil, nil
	}
}

func beFloat32(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}
