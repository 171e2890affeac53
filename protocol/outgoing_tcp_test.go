package protocol_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/frc4533-lincoln/robudst/protocol"
)

var _ = Describe("JoystickDescriptor", func() {
	It("encodes a full descriptor", func() {
		buf, err := protocol.JoystickDescriptor{
			Index:  0,
			IsXbox: true,
			Kind:   protocol.JoystickXInputGamepad,
			Name:   "Gamepad",
			Axes: []protocol.AxisKind{
				protocol.AxisX, protocol.AxisY, protocol.AxisZ, protocol.AxisTwist,
			},
			ButtonCount: 10,
			POVCount:    1,
		}.Encode()

		Expect(err).To(Succeed())
		Expect(buf).To(Equal(append(append([]byte{
			19, 0x02, // length, tag id
			0, 1, 1, 7, // index, xbox, kind, name length
		}, []byte("Gamepad")...), []byte{
			4, 0, 1, 2, 3, // axes
			10, 1, // buttons, POVs
		}...)))
	})

	It("encodes the HID joystick kind as its wire value", func() {
		buf, err := protocol.JoystickDescriptor{
			Kind: protocol.JoystickHIDJoystick,
			Name: "stick",
		}.Encode()

		Expect(err).To(Succeed())
		Expect(buf[4]).To(Equal(byte(20)))
	})

	It("refuses a descriptor that cannot fit a single frame", func() {
		_, err := protocol.JoystickDescriptor{
			Name: strings.Repeat("x", 250),
		}.Encode()
		Expect(err).To(MatchError(protocol.ErrDescriptorSize))
	})
})

var _ = Describe("Unimplemented descriptor tags", func() {
	It("reports match info as unsupported rather than emitting an empty frame", func() {
		_, err := protocol.MatchInfo{Competition: "lincoln", MatchKind: 1}.Encode()
		Expect(err).To(MatchError(protocol.ErrUnsupportedTag))
	})

	It("reports game data as unsupported rather than emitting an empty frame", func() {
		_, err := protocol.GameData{Data: "LLL"}.Encode()
		Expect(err).To(MatchError(protocol.ErrUnsupportedTag))
	})
})
