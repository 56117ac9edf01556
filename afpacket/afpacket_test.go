//go:build linux

package afpacket

import (
	"errors"
	"net"
	"testing"

	"golang.org/x/net/bpf"

	"github.com/romshark/afpacket-bench-go/frame"
)

func TestSourceFilter(t *testing.T) {
	peer := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0x00, 0x11, 0x22}
	local := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	other := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0x00, 0x11, 0x23}

	vm, err := bpf.NewVM(sourceFilter(peer))
	if err != nil {
		t.Fatalf("building VM: %v", err)
	}

	mkFrame := func(src net.HardwareAddr, etherType uint16) []byte {
		buf := make([]byte, frame.MaxLen)
		frame.Header{Dst: local, Src: src, Type: etherType}.Put(buf)
		frame.PutProbe(buf[frame.HeaderLen:], 0)
		return buf
	}

	for _, tt := range []struct {
		name string
		in   []byte
		want int
	}{
		{"peer ipv4", mkFrame(peer, frame.EtherTypeIPv4), frame.MaxLen},
		{"wrong source", mkFrame(other, frame.EtherTypeIPv4), 0},
		{"wrong ethertype", mkFrame(peer, 0x0806), 0},
		{"wrong source and ethertype", mkFrame(other, 0x86dd), 0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vm.Run(tt.in)
			if err != nil {
				t.Fatalf("running VM: %v", err)
			}
			if got != tt.want {
				t.Errorf("verdict: got %d want %d", got, tt.want)
			}
		})
	}
}

func TestSourceFilterLastOctet(t *testing.T) {
	// The low 2 bytes of the source address must be part of the match,
	// not only the first 4.
	peer := net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	twin := net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0x00, 0x02}

	vm, err := bpf.NewVM(sourceFilter(peer))
	if err != nil {
		t.Fatalf("building VM: %v", err)
	}

	buf := make([]byte, frame.MaxLen)
	frame.Header{Dst: peer, Src: twin, Type: frame.EtherTypeIPv4}.Put(buf)

	got, err := vm.Run(buf)
	if err != nil {
		t.Fatalf("running VM: %v", err)
	}
	if got != 0 {
		t.Errorf("verdict: got %d want 0", got)
	}
}

func TestOpenRejectsBadPeer(t *testing.T) {
	_, err := Open("eth0", net.HardwareAddr{0xaa, 0xbb}, Config{})
	if !errors.Is(err, ErrBadPeerAddr) {
		t.Fatalf("want ErrBadPeerAddr, got %v", err)
	}
}

func TestHtons(t *testing.T) {
	if got := htons(0x0800); got != 0x0008 {
		t.Errorf("htons(0x0800): got %#x want 0x8", got)
	}
	if got := htons(0x0003); got != 0x0300 {
		t.Errorf("htons(0x0003): got %#x want 0x300", got)
	}
}
