//go:build linux

package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/romshark/afpacket-bench-go/afpacket"
	"github.com/romshark/afpacket-bench-go/frame"
	"github.com/romshark/afpacket-bench-go/ratelimit"
)

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	fIface := flag.String("i", "", "Interface")
	fDestMACStr := flag.String("d", "", "Destination MAC")
	fCount := flag.Uint64("n", 0, "Frames to send")
	fRate := flag.Uint64("r", 0, "Rate limit in frames/s (0 = unlimited)")
	flag.Parse()

	dstMAC, err := net.ParseMAC(*fDestMACStr)
	must(err)

	sock, err := afpacket.Open(*fIface, dstMAC, afpacket.Config{
		// One-way flood, nothing is ever received.
		DisableFilter: true,
	})
	must(err)
	defer sock.Close()

	fmt.Fprintf(os.Stderr,
		"AF_PACKET TX:\niface=%s dst_mac=%s count=%d rate=%d\n",
		*fIface, dstMAC, *fCount, *fRate,
	)

	limiter := ratelimit.New(*fRate)

	var out [frame.MaxLen]byte
	frame.Header{
		Dst:  dstMAC,
		Src:  sock.HardwareAddr(),
		Type: frame.EtherTypeIPv4,
	}.Put(out[:])
	payload := out[frame.HeaderLen:]

	var (
		seq   uint32
		sent  uint64
		bytes uint64
	)

	start := time.Now()

	for sent < *fCount {
		frame.PutProbe(payload, seq)

		n, err := sock.Send(out[:])
		must(err)
		if n != frame.MaxLen {
			panic(fmt.Sprintf("short send: %d of %d bytes", n, frame.MaxLen))
		}

		seq++
		sent++
		bytes += uint64(n)

		limiter.Throttle()
	}

	elapsed := time.Since(start)
	pps := float64(sent) / elapsed.Seconds()

	fmt.Fprintf(os.Stderr,
		"finished: sent=%s bytes=%s | duration=%s | rate=%s pps\n",
		humanize.Comma(int64(sent)),
		humanize.Bytes(bytes),
		elapsed,
		humanize.Comma(int64(pps)),
	)
}
