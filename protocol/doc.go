package protocol

// This package implements parsing and serialising of the wire formats that a
// driver station uses to talk to a roboRIO. The protocol runs over two
// channels at once:
//
// - UDP: the station streams a compact control packet to the robot at a
//   fixed rate, and the robot streams a status/telemetry packet back.
// - TCP: the robot pushes an asynchronous, variable-length, tag-framed
//   event stream (stdout, error messages, faults, version handshakes), and
//   the station sends descriptor/administrative tags the other way.
//
// All multi-byte fields are big-endian unless noted otherwise. The two
// exceptions are the joystick-output echo tag, whose 32-bit output field is
// little-endian, and the packed-button block of the outgoing joystick tag,
// which packs eight button states per byte, most significant bit first.
//
// === Incoming UDP status datagram (robot -> station)
//
//   ```
//   [0:2]  sequence number (u16)
//   [2]    comm version
//   [3]    status flags        (see StatusFlags)
//   [4]    trace flags         (see TraceFlags)
//   [5:7]  battery voltage     ((b5 + b6) / 256)
//   [7]    date request flag
//   [8:]   tag blocks: [length][tag id][length-1 bytes of payload]
//   ```
//
// Tag blocks run to the end of the datagram. A tag length that overruns the
// buffer poisons the rest of the datagram; unknown tag ids are skipped by
// their declared length.
//
// === Incoming TCP event stream (robot -> station)
//
//   ```
//   [0:2]  frame length (u16), zero terminates the buffer
//   [2]    tag id
//   [3:]   length-1 bytes of payload
//   ```
//
// TCP has no message boundaries, so a frame may be split across reads. The
// reader stops in front of an incomplete frame and reports how far it got,
// letting the caller carry the tail over into the next pass.
//
// === Outgoing UDP control packet (station -> robot)
//
//   ```
//   [0:2]  sequence number (u16)
//   [2]    comm version (0x01)
//   [3]    control flags       (see ControlFlags)
//   [4]    request flags       (see RequestFlags)
//   [5]    alliance station    (see AlliancePos)
//   [6:]   tag blocks, framed like the incoming TCP stream but with a
//          single length byte
//   ```
//
// === Outgoing TCP tags (station -> robot)
//
// Joystick descriptors, match info, and game data, framed as
// [length][tag id][payload]. Only the joystick descriptor carries a payload
// today; the other two report ErrUnsupportedTag rather than emitting an
// empty frame the robot would have to guess about.
//
// === Status derivation
//
// Each incoming status datagram is reduced to exactly one (RobotStatus,
// RobotMode) pair by DeriveStatus. Precedence is significant: missing robot
// code beats everything, then emergency stop, then brownout, and only then
// the enabled/disabled distinction. A robot that is merely disabled is
// indistinguishable on the wire from one we have never heard from; the
// NoCommunication state exists only on the station side.
