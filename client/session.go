package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/frc4533-lincoln/robudst/protocol"
	"github.com/frc4533-lincoln/robudst/storage"
	"github.com/frc4533-lincoln/robudst/transport"
)

// ErrChannelLost marks a transport failure on one of the session's
// channels. It is deliberately distinct from the protocol package's parse
// errors so an operator can tell "robot unreachable" from "robot sent
// garbage": losing a channel ends the session, garbage only costs a buffer.
var ErrChannelLost = errors.New("Lost a transport channel to the robot")

const (
	// controlInterval is the rate the robot expects control packets at; it
	// disables itself if they stop arriving.
	controlInterval = 20 * time.Millisecond

	readBufferSize = 4096

	radioEventBufferSize = 64
)

// Session is a live driver-station session with one robot.
//
// The robot-state fields are independent atomic cells, each with a single
// producer (the status loop, the CAN-metrics tag, or a user command), so
// any number of callers can poll them without ever blocking the receive
// loops or each other. There is no cross-field snapshot: a battery reading
// may be one datagram newer than the lifecycle state read next to it.
type Session struct {
	status   atomic.Uint32 // protocol.RobotStatus
	mode     atomic.Uint32 // protocol.RobotMode
	battery  atomic.Uint32 // float32 bits
	canUtil  atomic.Uint32 // float32 bits
	alliance atomic.Uint32 // color<<8 | station
	needDate atomic.Bool
	seq      atomic.Uint32

	// One lock per socket half. The receive loops hold their lock for their
	// whole lifetime (one logical reader per channel); the send-side locks
	// are taken per call.
	tcpRxMu sync.Mutex
	tcpTxMu sync.Mutex
	udpRxMu sync.Mutex
	udpTxMu sync.Mutex

	endpoints *transport.Endpoints

	radioEvents chan string

	store storage.Store
	log   *zap.Logger
}

// New wraps an already-connected set of endpoints in a session. Before the
// first status datagram arrives the robot is assumed unreachable: status
// no-communication, mode teleop, alliance red 1.
func New(endpoints *transport.Endpoints, log *zap.Logger) *Session {
	s := &Session{
		endpoints:   endpoints,
		radioEvents: make(chan string, radioEventBufferSize),
		store:       storage.NewStateStore(),
		log:         log,
	}

	s.status.Store(uint32(protocol.RobotNoComms))
	s.mode.Store(uint32(protocol.ModeTeleop))
	s.alliance.Store(packAlliance(protocol.AlliancePos{Color: protocol.AllianceRed, Station: 1}))

	return s
}

// Dial connects to the robot and wraps the result in a session.
func Dial(ctx context.Context, options transport.Options, log *zap.Logger) (*Session, error) {
	endpoints, err := transport.Dial(ctx, options)
	if err != nil {
		return nil, err
	}

	return New(endpoints, log), nil
}

func (s *Session) Status() protocol.RobotStatus {
	return protocol.RobotStatus(s.status.Load())
}

func (s *Session) Mode() protocol.RobotMode {
	return protocol.RobotMode(s.mode.Load())
}

func (s *Session) BatteryVoltage() float32 {
	return math.Float32frombits(s.battery.Load())
}

func (s *Session) CANBusUtilization() float32 {
	return math.Float32frombits(s.canUtil.Load())
}

func (s *Session) AlliancePos() protocol.AlliancePos {
	return unpackAlliance(s.alliance.Load())
}

// RadioEvents exposes radio messages to the embedding application. Events
// are dropped if the channel is not being drained.
func (s *Session) RadioEvents() <-chan string {
	return s.radioEvents
}

// Store exposes the session's telemetry document.
func (s *Session) Store() storage.Store {
	return s.store
}

// SetMode selects the operating mode carried by subsequent control packets.
func (s *Session) SetMode(mode protocol.RobotMode) {
	s.mode.Store(uint32(mode))
}

// SetAlliancePos selects the alliance station carried by subsequent control
// packets.
func (s *Session) SetAlliancePos(pos protocol.AlliancePos) {
	s.alliance.Store(packAlliance(pos))
}

// Enable commands the robot into its enabled state.
func (s *Session) Enable() error {
	s.status.Store(uint32(protocol.RobotEnabled))
	return s.sendControl(0, nil)
}

// Disable commands the robot into its disabled state.
func (s *Session) Disable() error {
	s.status.Store(uint32(protocol.RobotDisabled))
	return s.sendControl(0, nil)
}

// EStop triggers an emergency stop. The robot stays stopped until it is
// physically rebooted; this is not an un-commandable disable.
func (s *Session) EStop() error {
	s.status.Store(uint32(protocol.RobotEStopped))
	return s.sendControl(0, nil)
}

// RebootRIO asks the robot controller to reboot.
func (s *Session) RebootRIO() error {
	return s.sendControl(protocol.RequestRebootRIO, nil)
}

// RestartCode asks the robot controller to restart the robot code.
func (s *Session) RestartCode() error {
	return s.sendControl(protocol.RequestRestartCode, nil)
}

// SendJoystickDescriptor announces a joystick's shape over the TCP channel.
func (s *Session) SendJoystickDescriptor(desc protocol.JoystickDescriptor) error {
	buf, err := desc.Encode()
	if err != nil {
		return err
	}

	s.tcpTxMu.Lock()
	_, err = s.endpoints.TCP.Write(buf)
	s.tcpTxMu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: event channel: %v", ErrChannelLost, err)
	}
	return nil
}

// Close releases the session's sockets and telemetry store.
func (s *Session) Close() error {
	return multierr.Combine(
		s.store.Close(),
		s.endpoints.Close(),
	)
}

// Run drives the session until the context is cancelled or a channel is
// lost: one goroutine per receive channel (there is no ordering between
// them; each updates disjoint state), plus the control-packet ticker. The
// first failure tears everything down and is returned.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 3)
	var loopWaiter sync.WaitGroup

	loopWaiter.Add(3)
	go func() {
		defer loopWaiter.Done()
		errChan <- s.statusLoop(ctx)
	}()
	go func() {
		defer loopWaiter.Done()
		errChan <- s.eventLoop(ctx)
	}()
	go func() {
		defer loopWaiter.Done()
		errChan <- s.controlLoop(ctx)
	}()

	// The receive loops block in socket reads with nothing else to select
	// on, so cancellation has to reach them through the sockets themselves.
	go func() {
		<-ctx.Done()
		if err := s.endpoints.AbortReads(); err != nil {
			s.log.Warn("Failed to abort channel reads", zap.Error(err))
		}
	}()

	err := <-errChan
	cancel()
	loopWaiter.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// statusLoop ingests status datagrams from the UDP receive socket.
func (s *Session) statusLoop(ctx context.Context) error {
	s.udpRxMu.Lock()
	defer s.udpRxMu.Unlock()

	buf := make([]byte, readBufferSize)

	for {
		n, _, err := s.endpoints.UDPRecv.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: status channel: %v", ErrChannelLost, err)
		}

		s.ingestStatus(buf[:n])
	}
}

func (s *Session) ingestStatus(buf []byte) {
	r := protocol.NewStatusReader(buf)

	for {
		pkt, err := r.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			s.log.Warn("Dropping malformed status datagram", zap.Error(err))
			return
		}

		s.applyStatus(pkt)
	}
}

func (s *Session) applyStatus(pkt *protocol.StatusPacket) {
	status, mode, err := protocol.DeriveStatus(pkt.Status, pkt.Trace)
	if err != nil {
		s.log.Error("Robot status flags violate the protocol",
			zap.Error(err),
			zap.Uint8("status", uint8(pkt.Status)),
			zap.Uint8("trace", uint8(pkt.Trace)))
		return
	}

	s.status.Store(uint32(status))
	s.mode.Store(uint32(mode))
	s.battery.Store(math.Float32bits(pkt.Battery))
	s.needDate.Store(pkt.NeedDate)

	for _, tag := range pkt.Tags {
		switch tag := tag.(type) {
		case protocol.CANMetrics:
			s.canUtil.Store(math.Float32bits(tag.Utilization))
		}
	}

	s.publishTelemetry()
}

func (s *Session) publishTelemetry() {
	s.storeSet("robot.status", s.Status().String())
	s.storeSet("robot.mode", s.Mode().String())
	s.storeSet("robot.battery", s.BatteryVoltage())
	s.storeSet("robot.canUtilization", s.CANBusUtilization())
}

func (s *Session) storeSet(key string, value interface{}) {
	if err := s.store.Set(key, value); err != nil {
		s.log.Warn("Failed to publish telemetry", zap.String("key", key), zap.Error(err))
	}
}

// eventLoop ingests the tag-framed event stream from the TCP connection.
// TCP has no message boundaries, so bytes left over from a frame split
// across reads are carried into the next pass.
func (s *Session) eventLoop(ctx context.Context) error {
	s.tcpRxMu.Lock()
	defer s.tcpRxMu.Unlock()

	var pending []byte
	buf := make([]byte, readBufferSize)

	for {
		n, err := s.endpoints.TCP.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: event channel: %v", ErrChannelLost, err)
		}

		pending = append(pending, buf[:n]...)
		consumed := s.ingestEvents(pending)
		pending = pending[:copy(pending, pending[consumed:])]
	}
}

// ingestEvents parses every complete tag out of buf and returns how many
// bytes it consumed.
func (s *Session) ingestEvents(buf []byte) int {
	r := protocol.NewTagReader(buf)

	for {
		tag, err := r.Next()
		if errors.Is(err, io.EOF) {
			return r.Pos()
		}
		if err != nil {
			// The framing can no longer be trusted; drop the buffer and
			// resync on the next read.
			s.log.Error("Robot event stream is corrupt", zap.Error(err))
			return len(buf)
		}

		s.handleEvent(tag)
	}
}

func (s *Session) handleEvent(tag protocol.EventTag) {
	switch tag := tag.(type) {
	case protocol.DisableFaults:
		s.log.Error("A disable fault occurred",
			zap.Uint16("comms", tag.Comms),
			zap.Uint16("power12v", tag.Power12V))

	case protocol.RailFaults:
		s.log.Error("A rail fault occurred",
			zap.Uint16("power6v", tag.Power6V),
			zap.Uint16("power5v", tag.Power5V),
			zap.Uint16("power3v3", tag.Power3V3))

	case protocol.VersionInfo:
		s.log.Info("Robot version info",
			zap.Uint8("type", tag.Type),
			zap.Uint8("deviceID", tag.DeviceID),
			zap.String("name", tag.Name),
			zap.String("version", tag.Version))
		if tag.Name != "" {
			s.storeSet("robot.versions."+tag.Name, tag.Version)
		}

	case protocol.ErrorMessage:
		fields := []zap.Field{
			zap.Float32("timestamp", tag.Timestamp),
			zap.Uint16("seq", tag.Seq),
			zap.Int32("errorCode", tag.Code),
			zap.String("details", tag.Details),
			zap.String("location", tag.Location),
			zap.String("callStack", tag.CallStack),
		}
		if tag.Flags&protocol.ErrorFlagError != 0 {
			s.log.Error("Robot code reported an error", fields...)
		} else {
			s.log.Warn("Robot code reported a warning", fields...)
		}

	case protocol.Stdout:
		s.log.Info("Robot stdout",
			zap.Float32("timestamp", tag.Timestamp),
			zap.Uint16("seq", tag.Seq),
			zap.String("message", tag.Message))

	case protocol.RadioEvent:
		select {
		case s.radioEvents <- tag.Message:
		default:
		}

	case protocol.UsageReport, protocol.Sentinel:
		// Nothing for the station to do with these.
	}
}

// controlLoop streams control packets to the robot at the fixed rate. When
// the last status datagram asked for the date, the next packet carries it.
func (s *Session) controlLoop(ctx context.Context) error {
	ticker := time.NewTicker(controlInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			var tags []protocol.ControlTag
			if s.needDate.Swap(false) {
				tags = dateTags(time.Now())
			}

			if err := s.sendControl(0, tags); err != nil {
				return err
			}
		}
	}
}

// sendControl builds one control packet from the session's current state
// and transmits it.
func (s *Session) sendControl(req protocol.RequestFlags, tags []protocol.ControlTag) error {
	pkt := protocol.BuildControlPacket(s.Status(), s.Mode(), s.AlliancePos())
	pkt.Seq = uint16(s.seq.Add(1))
	pkt.Request = req
	pkt.Tags = tags

	buf := pkt.Encode()

	s.udpTxMu.Lock()
	_, err := s.endpoints.UDPSend.Write(buf)
	s.udpTxMu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: control channel: %v", ErrChannelLost, err)
	}
	return nil
}

// dateTags answers a status datagram's date request. Month is zero-based
// and the year is an offset from 1900, following the robot's convention.
func dateTags(now time.Time) []protocol.ControlTag {
	return []protocol.ControlTag{
		protocol.DateTime{
			Microseconds: uint32(now.Nanosecond() / 1000),
			Second:       uint8(now.Second()),
			Minute:       uint8(now.Minute()),
			Hour:         uint8(now.Hour()),
			Day:          uint8(now.Day()),
			Month:        uint8(now.Month() - 1),
			Year:         uint8(now.Year() - 1900),
		},
		protocol.Timezone{Name: now.Location().String()},
	}
}

func packAlliance(pos protocol.AlliancePos) uint32 {
	return uint32(pos.Color)<<8 | uint32(pos.Station)
}

func unpackAlliance(packed uint32) protocol.AlliancePos {
	return protocol.AlliancePos{
		Color:   protocol.AllianceColor(packed >> 8),
		Station: uint8(packed),
	}
}
