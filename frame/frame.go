// Package frame defines the raw Ethernet frame layout used by the
// lockstep link benchmark.
//
// Every probe frame is a maximum-size Ethernet frame: a 14 byte header
// followed by a 1500 byte payload. The first eight payload bytes carry a
// marker and a sequence number, both encoded in host byte order: probe
// frames never cross a router and are only exchanged between hosts of
// identical endianness, so no network order conversion is performed.
// The remaining payload bytes are unconstrained filler.
package frame

import (
	"encoding/binary"
	"fmt"
	"net"
	"slices"
)

// Ethernet frame geometry, see linux/if_ether.h.
// https://elixir.bootlin.com/linux/v5.15.77/source/include/uapi/linux/if_ether.h
const (
	AddrLen    = 6    // ETH_ALEN
	HeaderLen  = 14   // ETH_HLEN
	PayloadLen = 1500 // ETH_DATA_LEN

	// MaxLen is the size of every probe frame on the wire: ETH_FRAME_LEN,
	// a full Ethernet frame without the trailing checksum.
	MaxLen = HeaderLen + PayloadLen

	// EtherTypeIPv4 is stamped on every probe frame so that
	// protocol-field filters along the path treat it as plain IPv4.
	EtherTypeIPv4 = 0x0800

	// Marker tags the first four payload bytes of every probe frame.
	Marker = 0x32100123

	// ProbeLen is the number of payload bytes carrying probe data.
	ProbeLen = 8

	markerOffset = 0
	seqOffset    = 4
)

// Header describes the Ethernet header of a probe frame.
type Header struct {
	Dst  net.HardwareAddr
	Src  net.HardwareAddr
	Type uint16
}

// Put writes the header into the first HeaderLen bytes of buf.
// Dst and Src must be AddrLen bytes and buf at least HeaderLen bytes.
func (h Header) Put(buf []byte) {
	copy(buf[0:6], h.Dst)
	copy(buf[6:12], h.Src)
	binary.BigEndian.PutUint16(buf[12:14], h.Type)
}

// ParseHeader reads the Ethernet header from the first HeaderLen bytes
// of buf. The returned addresses do not alias buf.
func ParseHeader(buf []byte) Header {
	return Header{
		Dst:  net.HardwareAddr(slices.Clone(buf[0:6])),
		Src:  net.HardwareAddr(slices.Clone(buf[6:12])),
		Type: binary.BigEndian.Uint16(buf[12:14]),
	}
}

// PutProbe stamps payload with the marker and the sequence number seq.
// payload must be at least ProbeLen bytes.
func PutProbe(payload []byte, seq uint32) {
	binary.NativeEndian.PutUint32(payload[markerOffset:], Marker)
	binary.NativeEndian.PutUint32(payload[seqOffset:], seq)
}

// Probe reads the marker and sequence number back from payload.
func Probe(payload []byte) (marker, seq uint32) {
	return binary.NativeEndian.Uint32(payload[markerOffset:]),
		binary.NativeEndian.Uint32(payload[seqOffset:])
}

// Field identifies which probe field failed validation.
type Field int

const (
	FieldMarker Field = iota
	FieldSeq
)

func (f Field) String() string {
	switch f {
	case FieldMarker:
		return "marker"
	case FieldSeq:
		return "sequence"
	}
	return ""
}

// ViolationError reports a frame whose payload did not carry the
// expected probe data.
type ViolationError struct {
	Index uint32 // position of the frame within the run
	Field Field
	Got   uint32
	Want  uint32
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("frame %d: %s mismatch: got %#x want %#x",
		e.Index, e.Field, e.Got, e.Want)
}

// Check validates the probe data of the frame at position index within a
// run: the marker must match and the sequence number must equal index.
// The first mismatch is returned as a *ViolationError.
func Check(payload []byte, index uint32) error {
	if m := binary.NativeEndian.Uint32(payload[markerOffset:]); m != Marker {
		return &ViolationError{Index: index, Field: FieldMarker, Got: m, Want: Marker}
	}
	if s := binary.NativeEndian.Uint32(payload[seqOffset:]); s != index {
		return &ViolationError{Index: index, Field: FieldSeq, Got: s, Want: index}
	}
	return nil
}
