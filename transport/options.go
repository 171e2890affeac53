package transport

import "go.uber.org/zap"

const (
	// DefaultTCPPort is the robot-side TCP port carrying the event stream
	// and outgoing descriptor tags.
	DefaultTCPPort = 1740

	// DefaultUDPSendPort is the robot-side UDP port control packets are
	// sent to.
	DefaultUDPSendPort = 1110

	// DefaultUDPRecvPort is the station-side UDP port status datagrams
	// arrive on.
	DefaultUDPRecvPort = 1150
)

type Options struct {
	// RobotAddr is the robot controller's IP address, already resolved by
	// the caller.
	RobotAddr string

	// TCPPort, UDPSendPort and UDPRecvPort override the protocol's fixed
	// ports. Zero means the default; only tests should need these.
	TCPPort     int
	UDPSendPort int
	UDPRecvPort int

	Log *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.TCPPort == 0 {
		o.TCPPort = DefaultTCPPort
	}
	if o.UDPSendPort == 0 {
		o.UDPSendPort = DefaultUDPSendPort
	}
	if o.UDPRecvPort == 0 {
		o.UDPRecvPort = DefaultUDPRecvPort
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}
