package protocol

import "errors"

// ErrModeConflict is reported when a status byte claims the robot is in more
// than one operating mode at once. The mode field is two bits with three
// legal values, so seeing the fourth means the peer is speaking a different
// dialect and nothing else in the stream can be trusted.
var ErrModeConflict = errors.New("Status flags claim more than one operating mode")

// StatusFlags is the raw status byte of an incoming status datagram.
type StatusFlags byte

const (
	StatusEStop     StatusFlags = 0b1000_0000
	StatusBrownout  StatusFlags = 0b0001_0000
	StatusCodeStart StatusFlags = 0b0000_1000
	StatusEnabled   StatusFlags = 0b0000_0100

	// The low two bits are the operating mode field.
	statusModeMask   StatusFlags = 0b0000_0011
	statusModeTeleop StatusFlags = 0b00
	statusModeTest   StatusFlags = 0b01
	statusModeAuto   StatusFlags = 0b10
)

func (s StatusFlags) EStopped() bool   { return s&StatusEStop != 0 }
func (s StatusFlags) BrownedOut() bool { return s&StatusBrownout != 0 }
func (s StatusFlags) Enabled() bool    { return s&StatusEnabled != 0 }

// TraceFlags is the raw trace byte of an incoming status datagram.
type TraceFlags byte

const (
	TraceRobotCode  TraceFlags = 0b0010_0000
	TraceIsRoboRIO  TraceFlags = 0b0001_0000
	TraceTestMode   TraceFlags = 0b0000_1000
	TraceAutonomous TraceFlags = 0b0000_0100
	TraceTeleop     TraceFlags = 0b0000_0010
	TraceDisabled   TraceFlags = 0b0000_0001
)

func (t TraceFlags) HasRobotCode() bool { return t&TraceRobotCode != 0 }

// RobotStatus is the station's current belief about the robot, derived from
// the most recent status datagram. Before the first datagram arrives it is
// RobotNoComms.
type RobotStatus uint32

const (
	RobotNoComms RobotStatus = iota
	RobotNoCode
	RobotEStopped
	RobotBrownedOut
	RobotDisabled
	RobotEnabled
)

func (s RobotStatus) String() string {
	switch s {
	case RobotNoComms:
		return "no-communication"
	case RobotNoCode:
		return "no-robot-code"
	case RobotEStopped:
		return "estopped"
	case RobotBrownedOut:
		return "browned-out"
	case RobotDisabled:
		return "disabled"
	case RobotEnabled:
		return "enabled"
	default:
		return "invalid"
	}
}

// RobotMode is the robot's operating mode.
type RobotMode uint32

const (
	ModeTeleop RobotMode = iota
	ModeAutonomous
	ModeTest
)

func (m RobotMode) String() string {
	switch m {
	case ModeTeleop:
		return "teleop"
	case ModeAutonomous:
		return "autonomous"
	case ModeTest:
		return "test"
	default:
		return "invalid"
	}
}

// DeriveStatus reduces the raw flag bytes of one status datagram to a single
// (RobotStatus, RobotMode) pair.
//
// The mode is read first and independently of everything else. The lifecycle
// state is then decided in precedence order: absent robot code overrides all
// other bits, then emergency stop, then brownout, and finally the
// enabled/disabled distinction.
func DeriveStatus(status StatusFlags, trace TraceFlags) (RobotStatus, RobotMode, error) {
	var mode RobotMode

	switch status & statusModeMask {
	case statusModeTeleop:
		mode = ModeTeleop
	case statusModeAuto:
		mode = ModeAutonomous
	case statusModeTest:
		mode = ModeTest
	default:
		return RobotNoComms, ModeTeleop, ErrModeConflict
	}

	switch {
	case !trace.HasRobotCode():
		return RobotNoCode, mode, nil
	case status.EStopped():
		return RobotEStopped, mode, nil
	case status.BrownedOut():
		return RobotBrownedOut, mode, nil
	case status.Enabled():
		return RobotEnabled, mode, nil
	default:
		return RobotDisabled, mode, nil
	}
}
