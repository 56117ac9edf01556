//go:build linux

// Package afpacket implements raw AF_PACKET sockets for whole-frame
// Ethernet I/O against a single fixed peer.
//
// Socket lifecycle (kernel ↔ userspace):
//
//   - socket(AF_PACKET, SOCK_RAW, ETH_P_ALL): taps raw frames.
//   - bind(sockaddr_ll{ETH_P_IP, ifindex}): narrows delivery to one
//     interface and to the IPv4 EtherType.
//   - SO_ATTACH_FILTER: narrows delivery further to frames sourced by
//     the peer.
//   - sendmsg/recvfrom: move one full Ethernet frame per call.
package afpacket

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/romshark/afpacket-bench-go/frame"
)

var (
	ErrBadPeerAddr    = errors.New("peer must be a 6-octet MAC address")
	ErrNoHardwareAddr = errors.New("interface has no Ethernet hardware address")
)

// Config controls how a Socket is opened and bound.
type Config struct {
	// RecvTimeout arms SO_RCVTIMEO on the socket.
	// Zero keeps receives blocking indefinitely.
	RecvTimeout time.Duration

	// DisableFilter skips the kernel source filter, delivering every
	// ETH_P_IP frame seen on the interface.
	DisableFilter bool
}

// Socket is a raw AF_PACKET socket bound to one interface and addressed
// to one peer.
//
// WARNING: Socket is not safe for concurrent use.
type Socket struct {
	fd          int
	peer        *unix.SockaddrLinklayer
	hwAddr      net.HardwareAddr
	recvTimeout time.Duration
}

// Open creates a raw packet socket on the named interface, addressed to
// peer. Requires CAP_NET_RAW.
func Open(ifaceName string, peer net.HardwareAddr, conf Config) (*Socket, error) {
	if len(peer) != frame.AddrLen {
		return nil, ErrBadPeerAddr
	}

	netIf, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("getting interface: %w", err)
	}
	if len(netIf.HardwareAddr) != frame.AddrLen {
		return nil, ErrNoHardwareAddr
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("opening AF_PACKET socket: %w", err)
	}

	// One sockaddr_ll serves both bind and sendmsg: bind consumes only
	// protocol and ifindex, sendmsg the addressing fields.
	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_IP),
		Ifindex:  netIf.Index,
		Hatype:   unix.ARPHRD_ETHER,
		Pkttype:  unix.PACKET_OTHERHOST,
		Halen:    frame.AddrLen,
	}
	copy(sa.Addr[:], peer)

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("binding socket: %w", err)
	}

	if !conf.DisableFilter {
		if err := attachSourceFilter(fd, peer); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("attaching source filter: %w", err)
		}
	}

	if conf.RecvTimeout > 0 {
		tv := unix.NsecToTimeval(conf.RecvTimeout.Nanoseconds())
		if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("setsockopt SO_RCVTIMEO: %w", err)
		}
	}

	return &Socket{
		fd:          fd,
		peer:        sa,
		hwAddr:      netIf.HardwareAddr,
		recvTimeout: conf.RecvTimeout,
	}, nil
}

// HardwareAddr returns the link-layer address of the bound interface.
func (s *Socket) HardwareAddr() net.HardwareAddr { return s.hwAddr }

// Send transmits buf as a single frame to the peer and returns the
// number of bytes the kernel accepted.
func (s *Socket) Send(buf []byte) (int, error) {
	for {
		n, err := unix.SendmsgN(s.fd, buf, nil, s.peer, 0)
		if err == unix.EINTR {
			continue // Retry on signal interruption.
		}
		if err != nil {
			return 0, fmt.Errorf("sendmsg: %w", err)
		}
		return n, nil
	}
}

// Recv blocks until one frame arrives and copies it into buf. The
// returned length is the length of the frame on the wire, which may
// exceed len(buf) for oversized frames (MSG_TRUNC).
func (s *Socket) Recv(buf []byte) (int, error) {
	for {
		n, _, err := unix.Recvfrom(s.fd, buf, unix.MSG_TRUNC)
		if err == unix.EINTR {
			continue // Retry on signal interruption.
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, fmt.Errorf("receive timed out after %s: %w", s.recvTimeout, err)
		}
		if err != nil {
			return 0, fmt.Errorf("recvfrom: %w", err)
		}
		return n, nil
	}
}

// Stats reads the kernel packet statistics of the socket: frames
// delivered to it and frames dropped for lack of buffer space.
// The counters reset on every read.
func (s *Socket) Stats() (received, dropped uint32, err error) {
	st, err := unix.GetsockoptTpacketStats(s.fd, unix.SOL_PACKET, unix.PACKET_STATISTICS)
	if err != nil {
		return 0, 0, fmt.Errorf("getsockopt PACKET_STATISTICS: %w", err)
	}
	return st.Packets, st.Drops, nil
}

// Close releases the socket. It is safe to call more than once.
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	if err != nil {
		return fmt.Errorf("closing fd: %w", err)
	}
	return nil
}

// htons converts x to network byte order as sockaddr_ll.sll_protocol and
// the AF_PACKET socket protocol argument require.
func htons(x uint16) uint16 {
	return x<<8 | x>>8
}
