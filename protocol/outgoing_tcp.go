package protocol

import "errors"

var (
	ErrUnsupportedTag = errors.New("Outgoing tag is not supported yet")
	ErrDescriptorSize = errors.New("Joystick descriptor does not fit a single frame")
)

// JoystickKind mirrors the controller-kind enumeration the robot expects in
// a joystick descriptor.
type JoystickKind int8

const (
	JoystickUnknown           JoystickKind = -1
	JoystickXInputUnknown     JoystickKind = 0
	JoystickXInputGamepad     JoystickKind = 1
	JoystickXInputWheel       JoystickKind = 2
	JoystickXInputArcade      JoystickKind = 3
	JoystickXInputFlightStick JoystickKind = 4
	JoystickXInputDancePad    JoystickKind = 5
	JoystickXInputGuitar      JoystickKind = 6
	JoystickXInputGuitar2     JoystickKind = 7
	JoystickXInputDrumKit     JoystickKind = 8
	JoystickXInputGuitar3     JoystickKind = 11
	JoystickXInputArcadePad   JoystickKind = 19
	JoystickHIDJoystick       JoystickKind = 20
	JoystickHIDGamepad        JoystickKind = 21
	JoystickHIDDriving        JoystickKind = 22
	JoystickHIDFlight         JoystickKind = 23
	JoystickHIDFirstPerson    JoystickKind = 24
)

// AxisKind mirrors the axis enumeration of a joystick descriptor.
type AxisKind uint8

const (
	AxisX AxisKind = iota
	AxisY
	AxisZ
	AxisTwist
	AxisThrottle
)

// DescriptorTag is an administrative tag the station sends to the robot
// over TCP, framed as [length][tag id][payload].
type DescriptorTag interface {
	Encode() ([]byte, error)
}

// JoystickDescriptor announces a joystick's shape to the robot.
type JoystickDescriptor struct {
	Index       uint8        `yaml:"index"`
	IsXbox      bool         `yaml:"xbox"`
	Kind        JoystickKind `yaml:"kind"`
	Name        string       `yaml:"name"`
	Axes        []AxisKind   `yaml:"axes"`
	ButtonCount uint8        `yaml:"buttons"`
	POVCount    uint8        `yaml:"povs"`
}

// Encode frames the descriptor. The length byte counts the tag id, four
// fixed bytes, the name, the axis-count byte, the axis list, and the
// button/POV count bytes.
func (d JoystickDescriptor) Encode() ([]byte, error) {
	size := 8 + len(d.Name) + len(d.Axes)
	if size > 0xFF {
		return nil, ErrDescriptorSize
	}

	buf := make([]byte, 0, 1+size)
	buf = append(buf, byte(size), 0x02)

	isXbox := byte(0)
	if d.IsXbox {
		isXbox = 1
	}
	buf = append(buf, d.Index, isXbox, byte(d.Kind), byte(len(d.Name)))
	buf = append(buf, d.Name...)

	buf = append(buf, byte(len(d.Axes)))
	for _, axis := range d.Axes {
		buf = append(buf, byte(axis))
	}

	buf = append(buf, d.ButtonCount, d.POVCount)

	return buf, nil
}

// MatchInfo names the competition and match kind. The payload layout is not
// pinned down yet, so encoding reports ErrUnsupportedTag instead of
// emitting an empty frame the robot would have to guess about.
type MatchInfo struct {
	Competition string
	MatchKind   uint8
}

func (MatchInfo) Encode() ([]byte, error) {
	return nil, ErrUnsupportedTag
}

// GameData carries game-specific data assigned by the field. Same story as
// MatchInfo: not implemented yet.
type GameData struct {
	Data string
}

func (GameData) Encode() ([]byte, error) {
	return nil, ErrUnsupportedTag
}
