package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Endpoints owns the sockets of one station session: the TCP connection
// carrying the event stream, the UDP socket status datagrams arrive on, and
// the connected UDP socket control packets leave through.
//
// All three are opened together by Dial and live for the whole session.
// There is no reconnect path: if any of them fails, the session is over and
// the robot's own watchdog takes care of the rest.
type Endpoints struct {
	TCP     *net.TCPConn
	UDPRecv net.PacketConn
	UDPSend *net.UDPConn
}

// Dial performs the session's connecting phase. Any failure is fatal; there
// is no partially-connected mode, so whatever was already open is torn down
// before the error is returned.
func Dial(ctx context.Context, options Options) (*Endpoints, error) {
	o := options.withDefaults()

	var d net.Dialer

	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(o.RobotAddr, strconv.Itoa(o.TCPPort)))
	if err != nil {
		return nil, fmt.Errorf("connecting event channel: %w", err)
	}
	tcp := conn.(*net.TCPConn)

	// SO_REUSEPORT on the fixed receive port lets an observer tool (packet
	// logger, dashboard) bind alongside a running station.
	recv, err := reuseport.ListenPacket("udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(o.UDPRecvPort)))
	if err != nil {
		tcp.Close()
		return nil, fmt.Errorf("binding status channel: %w", err)
	}

	send, err := d.DialContext(ctx, "udp", net.JoinHostPort(o.RobotAddr, strconv.Itoa(o.UDPSendPort)))
	if err != nil {
		tcp.Close()
		recv.Close()
		return nil, fmt.Errorf("connecting control channel: %w", err)
	}

	o.Log.Info("Connected to robot",
		zap.String("robotAddr", o.RobotAddr),
		zap.Int("tcpPort", o.TCPPort),
		zap.Int("udpSendPort", o.UDPSendPort),
		zap.Int("udpRecvPort", o.UDPRecvPort))

	return &Endpoints{
		TCP:     tcp,
		UDPRecv: recv,
		UDPSend: send.(*net.UDPConn),
	}, nil
}

// AbortReads wakes up any goroutine blocked reading either receive channel.
// Used on shutdown, where the read loops otherwise have nothing to wait on
// but the peer.
func (e *Endpoints) AbortReads() error {
	return multierr.Combine(
		e.TCP.SetReadDeadline(time.Now()),
		e.UDPRecv.SetReadDeadline(time.Now()),
	)
}

func (e *Endpoints) Close() error {
	return multierr.Combine(
		e.TCP.Close(),
		e.UDPRecv.Close(),
		e.UDPSend.Close(),
	)
}
