package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ControlFlags is the control byte of an outgoing control packet.
type ControlFlags byte

const (
	ControlEStop        ControlFlags = 0b1000_0000
	ControlFMSConnected ControlFlags = 0b0000_1000
	ControlEnabled      ControlFlags = 0b0000_0100

	controlModeMask   ControlFlags = 0b0000_0011
	controlModeTeleop ControlFlags = 0b00
	controlModeTest   ControlFlags = 0b01
	controlModeAuto   ControlFlags = 0b10
)

func (f ControlFlags) EStopped() bool { return f&ControlEStop != 0 }
func (f ControlFlags) Enabled() bool  { return f&ControlEnabled != 0 }

// Mode decodes the two-bit mode field of the control byte.
func (f ControlFlags) Mode() (RobotMode, error) {
	switch f & controlModeMask {
	case controlModeTeleop:
		return ModeTeleop, nil
	case controlModeAuto:
		return ModeAutonomous, nil
	case controlModeTest:
		return ModeTest, nil
	default:
		return ModeTeleop, ErrModeConflict
	}
}

// RequestFlags is the administrative request byte of an outgoing control
// packet. A packet carries at most one request.
type RequestFlags byte

const (
	RequestRebootRIO   RequestFlags = 0b0000_1000
	RequestRestartCode RequestFlags = 0b0000_0100
)

// AllianceColor is the competition alliance a station belongs to.
type AllianceColor byte

const (
	AllianceRed AllianceColor = iota
	AllianceBlue
)

func (c AllianceColor) String() string {
	if c == AllianceBlue {
		return "blue"
	}
	return "red"
}

// AlliancePos is a station assignment: alliance colour plus station number
// 1 through 3.
type AlliancePos struct {
	Color   AllianceColor
	Station uint8
}

// Byte encodes the assignment as a single wire byte: red stations are 0-2,
// blue stations 3-5. A station number outside 1..3 is a programming error,
// never something the peer sent us, so it panics rather than going out on
// the wire wrapped.
func (a AlliancePos) Byte() byte {
	if a.Station < 1 || a.Station > 3 {
		panic(fmt.Sprintf("alliance station must be 1..3, got %d", a.Station))
	}

	offset := byte(0)
	if a.Color == AllianceBlue {
		offset = 3
	}
	return offset + a.Station - 1
}

func (a AlliancePos) String() string {
	return fmt.Sprintf("%s %d", a.Color, a.Station)
}

// ControlPacket is one outgoing UDP control packet.
type ControlPacket struct {
	Seq         uint16
	CommVersion byte
	Control     ControlFlags
	Request     RequestFlags
	Alliance    AlliancePos
	Tags        []ControlTag
}

// BuildControlPacket derives a control packet from the station's current
// view of the robot. EStopped sets the ESTOP bit, Enabled sets the ENABLED
// bit, and every other lifecycle state sets neither; the mode bits always
// reflect the current mode. Note that a disabled robot and one we have no
// communication with produce the same control byte.
func BuildControlPacket(status RobotStatus, mode RobotMode, alliance AlliancePos) *ControlPacket {
	var control ControlFlags

	switch status {
	case RobotEStopped:
		control |= ControlEStop
	case RobotEnabled:
		control |= ControlEnabled
	}

	switch mode {
	case ModeTeleop:
		control |= controlModeTeleop
	case ModeAutonomous:
		control |= controlModeAuto
	case ModeTest:
		control |= controlModeTest
	}

	return &ControlPacket{
		CommVersion: 0x01,
		Control:     control,
		Alliance:    alliance,
	}
}

// Encode serialises the packet, header first, then each tag framed as
// [length][tag id][payload] where the length byte counts the id.
func (p *ControlPacket) Encode() []byte {
	buf := make([]byte, 0, 6)
	buf = binary.BigEndian.AppendUint16(buf, p.Seq)
	buf = append(buf, p.CommVersion, byte(p.Control), byte(p.Request), p.Alliance.Byte())

	for _, tag := range p.Tags {
		payload := tag.encode()
		buf = append(buf, byte(1+len(payload)), tag.id())
		buf = append(buf, payload...)
	}

	return buf
}

// ControlTag is an optional tag block of an outgoing control packet.
type ControlTag interface {
	id() byte
	encode() []byte
}

// Countdown tells the robot how much match time remains.
type Countdown struct {
	Seconds float32
}

func (Countdown) id() byte { return 0x07 }

func (t Countdown) encode() []byte {
	return binary.BigEndian.AppendUint32(nil, math.Float32bits(t.Seconds))
}

// JoystickData carries the state of one joystick: axis values, button
// states, and POV hat angles.
type JoystickData struct {
	Axes    []int8
	Buttons []bool
	POVs    []int16
}

func (JoystickData) id() byte { return 0x0C }

// encode packs the button states eight per byte, most significant bit
// first. Buttons are transmitted in whole groups of eight only; a trailing
// group of fewer than eight is not sent.
func (t JoystickData) encode() []byte {
	buf := make([]byte, 0, 3+len(t.Axes)+len(t.Buttons)/8+2*len(t.POVs))

	buf = append(buf, byte(len(t.Axes)))
	for _, axis := range t.Axes {
		buf = append(buf, byte(axis))
	}

	buf = append(buf, byte(len(t.Buttons)/8))
	for i := 0; i+8 <= len(t.Buttons); i += 8 {
		var b byte
		for j := 0; j < 8; j++ {
			if t.Buttons[i+j] {
				b |= 1 << (7 - j)
			}
		}
		buf = append(buf, b)
	}

	buf = append(buf, byte(len(t.POVs)))
	for _, pov := range t.POVs {
		buf = binary.BigEndian.AppendUint16(buf, uint16(pov))
	}

	return buf
}

// DateTime hands the robot a wall-clock timestamp, usually in answer to the
// date request flag of a status datagram.
type DateTime struct {
	Microseconds uint32
	Second       uint8
	Minute       uint8
	Hour         uint8
	Day          uint8
	Month        uint8
	Year         uint8
}

func (DateTime) id() byte { return 0x0F }

func (t DateTime) encode() []byte {
	buf := binary.BigEndian.AppendUint32(nil, t.Microseconds)
	return append(buf, t.Second, t.Minute, t.Hour, t.Day, t.Month, t.Year)
}

// Timezone names the station's timezone, sent alongside DateTime.
type Timezone struct {
	Name string
}

func (Timezone) id() byte { return 0x10 }

func (t Timezone) encode() []byte {
	return []byte(t.Name)
}
