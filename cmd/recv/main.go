//go:build linux

package main

import (
	"bytes"
	"flag"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/romshark/afpacket-bench-go/afpacket"
	"github.com/romshark/afpacket-bench-go/frame"
)

func main() {
	fIface := flag.String("i", "", "Interface")
	fSrcMACStr := flag.String("s", "", "Source MAC to listen for")
	flag.Parse()

	if *fIface == "" {
		fmt.Fprint(os.Stderr, "missing -i interface\n")
		os.Exit(1)
	}

	srcMAC, err := net.ParseMAC(*fSrcMACStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing source MAC: %v\n", err)
		os.Exit(1)
	}

	sock, err := afpacket.Open(*fIface, srcMAC, afpacket.Config{
		// No kernel filter: foreign traffic must stay visible so a
		// noisy segment can be diagnosed.
		DisableFilter: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening endpoint: %v\n", err)
		os.Exit(1)
	}
	defer sock.Close()

	fmt.Fprintf(os.Stderr,
		"AF_PACKET RX: iface=%s src_mac=%s\n",
		*fIface, srcMAC,
	)

	var totalFrames atomic.Uint64
	var totalBytes atomic.Uint64
	var probeFrames atomic.Uint64
	var foreignFrames atomic.Uint64

	go func() {
		var buf [frame.MaxLen]byte
		for {
			n, err := sock.Recv(buf[:])
			if err != nil {
				panic(err)
			}
			totalFrames.Add(1)
			totalBytes.Add(uint64(n))

			if n == frame.MaxLen && bytes.Equal(buf[6:12], srcMAC) {
				if marker, _ := frame.Probe(buf[frame.HeaderLen:]); marker == frame.Marker {
					probeFrames.Add(1)
					continue
				}
			}
			if foreignFrames.Add(1) == 1 && n >= frame.HeaderLen {
				hdr := frame.ParseHeader(buf[:])
				fmt.Fprintf(os.Stderr,
					"first foreign frame: src=%s type=%#04x len=%d\n",
					hdr.Src, hdr.Type, n)
			}
		}
	}()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var (
		lastFrames uint64
		lastBytes  uint64
		maxPPS     float64
		maxMbps    float64
	)

	lastTime := time.Now()

	for range ticker.C {
		now := time.Now()
		elapsed := now.Sub(lastTime).Seconds()

		frames := totalFrames.Load()
		bytes := totalBytes.Load()

		curFrames := frames - lastFrames
		curBytes := bytes - lastBytes

		pps := float64(curFrames) / elapsed
		mbps := float64(curBytes*8) / elapsed / 1e6

		if pps > maxPPS {
			maxPPS = pps
		}
		if mbps > maxMbps {
			maxMbps = mbps
		}

		fmt.Printf(
			"total=%d probes=%d foreign=%d | cur=%.0f pps %.2f Mbit/s | max=%.0f pps %.2f Mbit/s\n",
			frames,
			probeFrames.Load(),
			foreignFrames.Load(),
			pps,
			mbps,
			maxPPS,
			maxMbps,
		)

		lastFrames = frames
		lastBytes = bytes
		lastTime = now
	}
}
