package client_test

import (
	"context"
	"encoding/binary"
	"net"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/frc4533-lincoln/robudst/client"
	"github.com/frc4533-lincoln/robudst/protocol"
	"github.com/frc4533-lincoln/robudst/transport"
)

// fakeRobot plays the robot's side of both channels over loopback: it
// accepts the event connection, receives control packets, and injects
// status datagrams and event frames.
type fakeRobot struct {
	listener   net.Listener
	control    *net.UDPConn
	events     net.Conn
	statusAddr string
}

func startFakeRobot() (*fakeRobot, transport.Options) {
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	control, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	Expect(err).NotTo(HaveOccurred())

	// Reserve a free port for the station's status socket so the fake
	// knows where to aim its datagrams.
	probe, err := net.ListenPacket("udp4", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	recvPort := probe.LocalAddr().(*net.UDPAddr).Port
	Expect(probe.Close()).To(Succeed())

	robot := &fakeRobot{
		listener:   listener,
		control:    control,
		statusAddr: net.JoinHostPort("127.0.0.1", strconv.Itoa(recvPort)),
	}

	options := transport.Options{
		RobotAddr:   "127.0.0.1",
		TCPPort:     listener.Addr().(*net.TCPAddr).Port,
		UDPSendPort: control.LocalAddr().(*net.UDPAddr).Port,
		UDPRecvPort: recvPort,
		Log:         zap.NewNop(),
	}

	return robot, options
}

func (f *fakeRobot) accept() {
	Expect(f.listener.(*net.TCPListener).SetDeadline(time.Now().Add(time.Second))).To(Succeed())

	conn, err := f.listener.Accept()
	Expect(err).NotTo(HaveOccurred())
	f.events = conn
}

func (f *fakeRobot) sendStatus(status protocol.StatusFlags, trace protocol.TraceFlags, batteryHi, batteryLo byte) {
	conn, err := net.Dial("udp4", f.statusAddr)
	Expect(err).NotTo(HaveOccurred())
	defer conn.Close()

	buf := []byte{0x00, 0x01, 0x01, byte(status), byte(trace), batteryHi, batteryLo, 0x00}
	_, err = conn.Write(buf)
	Expect(err).NotTo(HaveOccurred())
}

func (f *fakeRobot) sendEvent(id byte, payload []byte) {
	buf := binary.BigEndian.AppendUint16(nil, uint16(1+len(payload)))
	buf = append(buf, id)
	buf = append(buf, payload...)

	_, err := f.events.Write(buf)
	Expect(err).NotTo(HaveOccurred())
}

func (f *fakeRobot) readControl() []byte {
	Expect(f.control.SetReadDeadline(time.Now().Add(time.Second))).To(Succeed())

	buf := make([]byte, 1024)
	n, _, err := f.control.ReadFrom(buf)
	Expect(err).NotTo(HaveOccurred())
	return buf[:n]
}

func (f *fakeRobot) close() {
	if f.events != nil {
		f.events.Close()
	}
	f.listener.Close()
	f.control.Close()
}

var _ = Describe("client / Session", func() {
	var (
		robot   *fakeRobot
		session *client.Session
		cancel  context.CancelFunc
		runErr  chan error
	)

	BeforeEach(func() {
		var options transport.Options
		robot, options = startFakeRobot()

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())

		var err error
		session, err = client.Dial(ctx, options, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		robot.accept()

		runErr = make(chan error, 1)
		go func() {
			runErr <- session.Run(ctx)
		}()
	})

	AfterEach(func() {
		cancel()
		session.Close()
		robot.close()
	})

	It("starts out assuming the robot is unreachable", func() {
		Expect(session.Status()).To(Equal(protocol.RobotNoComms))
		Expect(session.Mode()).To(Equal(protocol.ModeTeleop))
		Expect(session.AlliancePos()).To(Equal(protocol.AlliancePos{Color: protocol.AllianceRed, Station: 1}))
	})

	It("derives robot state from status datagrams", func() {
		robot.sendStatus(
			protocol.StatusEnabled|protocol.StatusCodeStart,
			protocol.TraceRobotCode|protocol.TraceIsRoboRIO|protocol.TraceTeleop,
			12, 128)

		Eventually(session.Status).Should(Equal(protocol.RobotEnabled))
		Expect(session.Mode()).To(Equal(protocol.ModeTeleop))
		Expect(session.BatteryVoltage()).To(BeNumerically("~", 12.5, 0.001))
	})

	It("publishes telemetry to the store", func() {
		robot.sendStatus(0, protocol.TraceIsRoboRIO, 11, 0)

		Eventually(func() string {
			return string(session.Store().Get("robot.status"))
		}).Should(Equal(`"no-robot-code"`))
		Expect(string(session.Store().Get("robot.battery"))).To(Equal(`11`))
	})

	It("streams control packets at a steady rate", func() {
		pkt := robot.readControl()

		Expect(len(pkt)).To(BeNumerically(">=", 6))
		Expect(pkt[2]).To(Equal(byte(0x01)))
		Expect(protocol.ControlFlags(pkt[3]).Enabled()).To(BeFalse())
		Expect(pkt[5]).To(Equal(byte(0))) // red 1

		next := robot.readControl()
		Expect(binary.BigEndian.Uint16(next[0:2])).To(
			BeNumerically(">", binary.BigEndian.Uint16(pkt[0:2])))
	})

	It("carries an emergency stop in the control byte", func() {
		Expect(session.EStop()).To(Succeed())

		Eventually(func() bool {
			return protocol.ControlFlags(robot.readControl()[3]).EStopped()
		}).Should(BeTrue())
		Expect(session.Status()).To(Equal(protocol.RobotEStopped))
	})

	It("carries mode and alliance changes in the control packet", func() {
		session.SetMode(protocol.ModeAutonomous)
		session.SetAlliancePos(protocol.AlliancePos{Color: protocol.AllianceBlue, Station: 2})

		Eventually(func() byte {
			return robot.readControl()[5]
		}).Should(Equal(byte(4))) // blue 2

		pkt := robot.readControl()
		mode, err := protocol.ControlFlags(pkt[3]).Mode()
		Expect(err).NotTo(HaveOccurred())
		Expect(mode).To(Equal(protocol.ModeAutonomous))
	})

	It("forwards radio events to the application", func() {
		robot.sendEvent(0x00, []byte("radio restarted"))

		Eventually(session.RadioEvents()).Should(Receive(Equal("radio restarted")))
	})

	It("reassembles event frames split across reads", func() {
		frame := binary.BigEndian.AppendUint16(nil, uint16(1+len("half")))
		frame = append(frame, 0x00)
		frame = append(frame, []byte("half")...)

		_, err := robot.events.Write(frame[:3])
		Expect(err).NotTo(HaveOccurred())
		time.Sleep(50 * time.Millisecond)
		_, err = robot.events.Write(frame[3:])
		Expect(err).NotTo(HaveOccurred())

		Eventually(session.RadioEvents()).Should(Receive(Equal("half")))
	})

	It("reports a lost event channel", func() {
		Expect(robot.events.Close()).To(Succeed())

		var err error
		Eventually(runErr).Should(Receive(&err))
		Expect(err).To(MatchError(client.ErrChannelLost))
	})

	It("stops cleanly when the context is cancelled", func() {
		cancel()

		Eventually(runErr).Should(Receive(BeNil()))
	})
})
