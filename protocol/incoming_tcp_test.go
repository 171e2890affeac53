package protocol_test

import (
	"io"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/frc4533-lincoln/robudst/protocol"
)

// frame builds one event frame: a big-endian length counting the id byte
// and payload, then the id, then the payload.
func frame(id byte, payload ...byte) []byte {
	size := 1 + len(payload)
	buf := []byte{byte(size >> 8), byte(size), id}
	return append(buf, payload...)
}

var _ = Describe("TagReader", func() {
	It("yields nothing for a buffer starting with a zero length", func() {
		r := protocol.NewTagReader([]byte{0x00, 0x00, 0xFF, 0xFF})
		_, err := r.Next()
		Expect(err).To(MatchError(io.EOF))
	})

	It("yields nothing when fewer than two bytes remain", func() {
		r := protocol.NewTagReader([]byte{0x01})
		_, err := r.Next()
		Expect(err).To(MatchError(io.EOF))
		Expect(r.Pos()).To(Equal(0))
	})

	It("parses a radio event", func() {
		tag, err := protocol.NewTagReader(frame(0x00, []byte("radio rebooted")...)).Next()
		Expect(err).To(Succeed())
		Expect(tag).To(Equal(protocol.RadioEvent{Message: "radio rebooted"}))
	})

	It("parses a disable faults tag", func() {
		tag, err := protocol.NewTagReader(frame(0x04, 0x00, 0x01, 0x00, 0x02)).Next()
		Expect(err).To(Succeed())
		Expect(tag).To(Equal(protocol.DisableFaults{Comms: 1, Power12V: 2}))
	})

	It("parses a rail faults tag", func() {
		tag, err := protocol.NewTagReader(frame(0x05, 0x00, 0x0A, 0x00, 0x14, 0x00, 0x1E)).Next()
		Expect(err).To(Succeed())
		Expect(tag).To(Equal(protocol.RailFaults{Power6V: 10, Power5V: 20, Power3V3: 30}))
	})

	It("fails fast on a rail faults tag of the wrong size", func() {
		_, err := protocol.NewTagReader(frame(0x05, 0x00, 0x0A)).Next()
		Expect(err).To(MatchError(protocol.ErrTagSize))
	})

	It("parses a version info tag", func() {
		payload := []byte{0x02, 0x00, 0x00, 0x09}
		payload = append(payload, 0x07)
		payload = append(payload, []byte("roboRIO")...)
		payload = append(payload, 0x05)
		payload = append(payload, []byte("2024a")...)

		tag, err := protocol.NewTagReader(frame(0x0A, payload...)).Next()
		Expect(err).To(Succeed())
		Expect(tag).To(Equal(protocol.VersionInfo{
			Type:     0x02,
			DeviceID: 0x09,
			Name:     "roboRIO",
			Version:  "2024a",
		}))
	})

	It("fails fast when a version string runs past its tag", func() {
		payload := []byte{0x02, 0x00, 0x00, 0x09, 0x20} // name length 32, nothing behind it
		_, err := protocol.NewTagReader(frame(0x0A, payload...)).Next()
		Expect(err).To(MatchError(protocol.ErrTagSize))
	})

	It("parses an error message", func() {
		payload := []byte{
			0x41, 0x20, 0x00, 0x00, // timestamp 10.0
			0x00, 0x05, // seqnum
			0x00, 0x00, // reserved
			0xFF, 0xFF, 0xFF, 0xF9, // error code -7
			0x01, // flags: ERROR
		}
		payload = append(payload, 0x00, 0x03)
		payload = append(payload, []byte("bad")...)
		payload = append(payload, 0x00, 0x06)
		payload = append(payload, []byte("Drive?")...)
		payload = append(payload, 0x00, 0x00)

		tag, err := protocol.NewTagReader(frame(0x0B, payload...)).Next()
		Expect(err).To(Succeed())
		Expect(tag).To(Equal(protocol.ErrorMessage{
			Timestamp: 10.0,
			Seq:       5,
			Code:      -7,
			Flags:     protocol.ErrorFlagError,
			Details:   "bad",
			Location:  "Drive?",
			CallStack: "",
		}))
	})

	It("parses a stdout message", func() {
		payload := []byte{0x41, 0x20, 0x00, 0x00, 0x00, 0x05}
		payload = append(payload, []byte("hello")...)

		tag, err := protocol.NewTagReader(frame(0x0C, payload...)).Next()
		Expect(err).To(Succeed())
		Expect(tag).To(Equal(protocol.Stdout{Timestamp: 10.0, Seq: 5, Message: "hello"}))
	})

	It("degrades an invalid UTF-8 message to an empty string", func() {
		payload := []byte{0x41, 0x20, 0x00, 0x00, 0x00, 0x05, 0xFF, 0xFE}

		tag, err := protocol.NewTagReader(frame(0x0C, payload...)).Next()
		Expect(err).To(Succeed())
		Expect(tag).To(Equal(protocol.Stdout{Timestamp: 10.0, Seq: 5, Message: ""}))
	})

	It("accepts the diagnostic sentinel", func() {
		tag, err := protocol.NewTagReader(frame(0x0D, 0x00, 0x00, 0x04, 0x04, 0x04, 0x04)).Next()
		Expect(err).To(Succeed())
		Expect(tag).To(Equal(protocol.Sentinel{}))
	})

	It("fails fast on a corrupt diagnostic sentinel", func() {
		_, err := protocol.NewTagReader(frame(0x0D, 0x00, 0x00, 0x04, 0x04, 0x04, 0x05)).Next()
		Expect(err).To(MatchError(protocol.ErrBadSentinel))
	})

	It("skips unrecognised tag ids and keeps going", func() {
		buf := frame(0x55, 0xDE, 0xAD)
		buf = append(buf, frame(0x05, 0x00, 0x0A, 0x00, 0x14, 0x00, 0x1E)...)

		r := protocol.NewTagReader(buf)
		tag, err := r.Next()
		Expect(err).To(Succeed())
		Expect(tag).To(Equal(protocol.RailFaults{Power6V: 10, Power5V: 20, Power3V3: 30}))
	})

	It("parses consecutive tags and reports its position", func() {
		buf := frame(0x01)
		buf = append(buf, frame(0x04, 0x00, 0x01, 0x00, 0x02)...)

		r := protocol.NewTagReader(buf)

		tag, err := r.Next()
		Expect(err).To(Succeed())
		Expect(tag).To(Equal(protocol.UsageReport{}))

		tag, err = r.Next()
		Expect(err).To(Succeed())
		Expect(tag).To(Equal(protocol.DisableFaults{Comms: 1, Power12V: 2}))

		_, err = r.Next()
		Expect(err).To(MatchError(io.EOF))
		Expect(r.Pos()).To(Equal(len(buf)))
	})

	It("leaves an incomplete frame unconsumed for the next pass", func() {
		complete := frame(0x04, 0x00, 0x01, 0x00, 0x02)
		buf := append(append([]byte{}, complete...), 0x00, 0x0A, 0x0C) // claims 10 bytes, has one

		r := protocol.NewTagReader(buf)

		_, err := r.Next()
		Expect(err).To(Succeed())

		_, err = r.Next()
		Expect(err).To(MatchError(io.EOF))
		Expect(r.Pos()).To(Equal(len(complete)))
	})
})
