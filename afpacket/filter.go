//go:build linux

package afpacket

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/romshark/afpacket-bench-go/frame"
)

// sourceFilter builds a classic BPF program accepting only frames that
// carry the IPv4 EtherType and originate from peer. Everything else is
// dropped in the kernel before it reaches the socket buffer.
func sourceFilter(peer net.HardwareAddr) []bpf.Instruction {
	srcHi := binary.BigEndian.Uint32(peer[0:4])
	srcLo := uint32(binary.BigEndian.Uint16(peer[4:6]))

	return []bpf.Instruction{
		// EtherType at offset 12.
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: frame.EtherTypeIPv4, SkipTrue: 5},
		// Source MAC at offsets 6..11, compared as one 4 byte and one
		// 2 byte load.
		bpf.LoadAbsolute{Off: 6, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: srcHi, SkipTrue: 3},
		bpf.LoadAbsolute{Off: 10, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: srcLo, SkipTrue: 1},
		bpf.RetConstant{Val: frame.MaxLen},
		bpf.RetConstant{Val: 0},
	}
}

// attachSourceFilter assembles the source filter for peer and attaches
// it to the socket.
func attachSourceFilter(fd int, peer net.HardwareAddr) error {
	prog, err := bpf.Assemble(sourceFilter(peer))
	if err != nil {
		return fmt.Errorf("assembling filter: %w", err)
	}

	filter := make([]unix.SockFilter, len(prog))
	for i, ins := range prog {
		filter[i] = unix.SockFilter{
			Code: ins.Op,
			Jt:   ins.Jt,
			Jf:   ins.Jf,
			K:    ins.K,
		}
	}
	fprog := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}
	return unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &fprog)
}
