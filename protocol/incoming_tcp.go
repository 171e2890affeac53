package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"unicode/utf8"
)

var ErrBadSentinel = errors.New("Diagnostic tag payload does not match the expected sentinel")

// sentinelPayload is the only payload the diagnostic tag 0x0D is ever
// observed to carry. Anything else means the stream is corrupt.
var sentinelPayload = []byte{0x00, 0x00, 0x04, 0x04, 0x04, 0x04}

// EventTag is one parsed frame of the robot's TCP event stream. Consumers
// dispatch on the concrete type.
type EventTag interface {
	eventTag()
}

// RadioEvent is a free-form message from the robot radio.
type RadioEvent struct {
	Message string
}

// UsageReport acknowledges a usage-reporting frame. Its payload is not
// consumed by the station.
type UsageReport struct{}

// DisableFaults counts the robot-side faults that forced a disable.
type DisableFaults struct {
	Comms    uint16
	Power12V uint16
}

// RailFaults counts brownout events per power rail.
type RailFaults struct {
	Power6V  uint16
	Power5V  uint16
	Power3V3 uint16
}

// VersionInfo is one entry of the robot's version handshake.
type VersionInfo struct {
	Type     byte
	DeviceID byte
	Name     string
	Version  string
}

// ErrorFlags qualifies an ErrorMessage.
type ErrorFlags byte

const (
	ErrorFlagError  ErrorFlags = 0b0000_0001
	ErrorFlagLVCode ErrorFlags = 0b0000_0010
)

// ErrorMessage is a structured error or warning raised by robot code.
type ErrorMessage struct {
	Timestamp float32
	Seq       uint16
	Code      int32
	Flags     ErrorFlags
	Details   string
	Location  string
	CallStack string
}

// Stdout is one line of robot-code console output.
type Stdout struct {
	Timestamp float32
	Seq       uint16
	Message   string
}

// Sentinel is the fixed diagnostic frame the robot emits periodically.
type Sentinel struct{}

func (RadioEvent) eventTag()    {}
func (UsageReport) eventTag()   {}
func (DisableFaults) eventTag() {}
func (RailFaults) eventTag()    {}
func (VersionInfo) eventTag()   {}
func (ErrorMessage) eventTag()  {}
func (Stdout) eventTag()        {}
func (Sentinel) eventTag()      {}

// TagReader parses event tags out of an accumulated TCP read buffer.
//
// TCP carries no message boundaries, so the buffer handed in here may end in
// the middle of a frame. The reader stops in front of any incomplete frame
// and leaves it unconsumed; Pos reports how many bytes were fully consumed
// so the caller can carry the tail over into its next read.
type TagReader struct {
	buf []byte
	pos int
}

func NewTagReader(buf []byte) *TagReader {
	return &TagReader{buf: buf}
}

// Pos returns the offset of the first byte not consumed by Next.
func (r *TagReader) Pos() int {
	return r.pos
}

// Next parses the next event tag.
//
// It returns io.EOF at a clean end of the buffer: too few bytes left for a
// frame header, a zero-length frame (the stream terminator), or a frame that
// extends past the buffer. Violated fixed-size preconditions report
// ErrTagSize, and a corrupt diagnostic frame reports ErrBadSentinel; both
// mean the stream can no longer be trusted.
func (r *TagReader) Next() (EventTag, error) {
	for {
		if len(r.buf)-r.pos < 2 {
			return nil, io.EOF
		}

		size := int(binary.BigEndian.Uint16(r.buf[r.pos:]))
		if size == 0 {
			r.pos += 2
			return nil, io.EOF
		}

		if r.pos+2+size > len(r.buf) {
			// Incomplete frame, leave it for the next pass.
			return nil, io.EOF
		}

		id := r.buf[r.pos+2]
		payload := r.buf[r.pos+3 : r.pos+2+size]
		r.pos += 2 + size

		tag, err := parseEventTag(id, payload)
		if err != nil {
			return nil, err
		}
		if tag == nil {
			// Unrecognised tag id, skip the frame.
			continue
		}
		return tag, nil
	}
}

func parseEventTag(id byte, payload []byte) (EventTag, error) {
	switch id {
	case 0x00: // radio event
		return RadioEvent{Message: decodeString(payload)}, nil

	case 0x01: // usage report
		return UsageReport{}, nil

	case 0x04: // disable faults
		if len(payload) != 4 {
			return nil, ErrTagSize
		}
		return DisableFaults{
			Comms:    binary.BigEndian.Uint16(payload[0:2]),
			Power12V: binary.BigEndian.Uint16(payload[2:4]),
		}, nil

	case 0x05: // rail faults
		if len(payload) != 6 {
			return nil, ErrTagSize
		}
		return RailFaults{
			Power6V:  binary.BigEndian.Uint16(payload[0:2]),
			Power5V:  binary.BigEndian.Uint16(payload[2:4]),
			Power3V3: binary.BigEndian.Uint16(payload[4:6]),
		}, nil

	case 0x0A:
		return parseVersionInfo(payload)

	case 0x0B:
		return parseErrorMessage(payload)

	case 0x0C: // stdout
		if len(payload) < 6 {
			return nil, ErrTagSize
		}
		return Stdout{
			Timestamp: beFloat32(payload[0:4]),
			Seq:       binary.BigEndian.Uint16(payload[4:6]),
			Message:   decodeString(payload[6:]),
		}, nil

	case 0x0D: // diagnostic sentinel
		if !bytes.Equal(payload, sentinelPayload) {
			return nil, ErrBadSentinel
		}
		return Sentinel{}, nil

	default:
		return nil, nil
	}
}

// parseVersionInfo decodes a version handshake entry: a type byte, two
// reserved bytes, a device id, then a length-prefixed name and a
// length-prefixed version string.
func parseVersionInfo(payload []byte) (EventTag, error) {
	if len(payload) < 5 {
		return nil, ErrTagSize
	}

	nameLen := int(payload[4])
	if 5+nameLen+1 > len(payload) {
		return nil, ErrTagSize
	}

	versionLen := int(payload[5+nameLen])
	if 6+nameLen+versionLen > len(payload) {
		return nil, ErrTagSize
	}

	return VersionInfo{
		Type:     payload[0],
		DeviceID: payload[3],
		Name:     decodeString(payload[5 : 5+nameLen]),
		Version:  decodeString(payload[6+nameLen : 6+nameLen+versionLen]),
	}, nil
}

// parseErrorMessage decodes a structured error report: timestamp, sequence
// number, two reserved bytes, error code, a flag byte, then three
// consecutive u16-length-prefixed strings.
func parseErrorMessage(payload []byte) (EventTag, error) {
	if len(payload) < 19 {
		return nil, ErrTagSize
	}

	msg := ErrorMessage{
		Timestamp: beFloat32(payload[0:4]),
		Seq:       binary.BigEndian.Uint16(payload[4:6]),
		Code:      int32(binary.BigEndian.Uint32(payload[8:12])),
		Flags:     ErrorFlags(payload[12]),
	}

	pos := 13
	for _, field := range []*string{&msg.Details, &msg.Location, &msg.CallStack} {
		if pos+2 > len(payload) {
			return nil, ErrTagSize
		}
		strLen := int(binary.BigEndian.Uint16(payload[pos : pos+2]))
		pos += 2
		if pos+strLen > len(payload) {
			return nil, ErrTagSize
		}
		*field = decodeString(payload[pos : pos+strLen])
		pos += strLen
	}

	return msg, nil
}

// decodeString degrades to an empty string on invalid UTF-8 rather than
// failing the whole record.
func decodeString(b []byte) string {
	if !utf8.Valid(b) {
		return ""
	}
	return string(b)
}
