package teamip

import (
	"fmt"
	"net/netip"
)

// maxTeam is the largest team number whose digits still fit the TE.AM
// address scheme (two octets of at most 255 and 99).
const maxTeam = 25599

// RobotAddr derives the robot controller's address from a team number using
// TE.AM notation: team 12345 lives at 10.123.45.2.
//
// Reference:
// <https://docs.wpilib.org/en/stable/docs/networking/networking-introduction/ip-configurations.html#te-am-ip-notation>
func RobotAddr(team uint16) (netip.Addr, error) {
	if team > maxTeam {
		return netip.Addr{}, fmt.Errorf("team number %d does not fit a TE.AM address", team)
	}

	return netip.AddrFrom4([4]byte{10, byte(team / 100), byte(team % 100), 2}), nil
}
