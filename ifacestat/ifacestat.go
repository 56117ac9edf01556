// Package ifacestat snapshots per-interface packet and byte counters so
// a benchmark can report what the kernel moved on the wire around a run.
package ifacestat

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const netdevPath = "/proc/net/dev"

type Counter int

const (
	RxBytes Counter = iota
	RxPackets
	TxBytes
	TxPackets
)

func (c Counter) String() string {
	switch c {
	case RxBytes:
		return "rx_bytes"
	case RxPackets:
		return "rx_packets"
	case TxBytes:
		return "tx_bytes"
	case TxPackets:
		return "tx_packets"
	}
	return ""
}

// Per-interface values.
type IfaceStats map[Counter]uint64

// Multi-interface stats.
type Stats map[string]IfaceStats

// Snapshot reads /proc/net/dev and returns the counters of the given
// interfaces. An interface absent from the kernel table is an error.
func Snapshot(ifaces []string) (Stats, error) {
	f, err := os.Open(netdevPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", netdevPath, err)
	}
	defer f.Close()
	return parseNetDev(f, ifaces)
}

// parseNetDev scans the two header lines and then one line per device:
//
//	iface: rx_bytes rx_packets errs drop fifo frame compressed multicast tx_bytes tx_packets ...
//
// The device name may be glued to its first counter, so the line is cut
// at the colon rather than split on whitespace alone.
func parseNetDev(r io.Reader, ifaces []string) (Stats, error) {
	want := make(map[string]bool, len(ifaces))
	for _, ifc := range ifaces {
		want[ifc] = true
	}

	s := make(Stats, len(ifaces))

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		name, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue // header lines
		}
		name = strings.TrimSpace(name)
		if !want[name] {
			continue
		}

		fields := strings.Fields(rest)
		if len(fields) < 10 {
			return nil, fmt.Errorf("unexpected %s line for %s: %q",
				netdevPath, name, sc.Text())
		}

		vals := make(IfaceStats, 4)
		for _, col := range []struct {
			ctr Counter
			idx int
		}{
			{RxBytes, 0}, {RxPackets, 1}, {TxBytes, 8}, {TxPackets, 9},
		} {
			v, err := strconv.ParseUint(fields[col.idx], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing %s of %s: %w", col.ctr, name, err)
			}
			vals[col.ctr] = v
		}
		s[name] = vals
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", netdevPath, err)
	}

	for _, ifc := range ifaces {
		if _, ok := s[ifc]; !ok {
			return nil, fmt.Errorf("interface %s not listed in %s", ifc, netdevPath)
		}
	}
	return s, nil
}

// Since computes s(now) - old.
func (s Stats) Since(old Stats) Stats {
	out := make(Stats)
	for ifc, now := range s {
		prev := old[ifc]
		diff := make(IfaceStats, len(now))
		for ctr, v := range now {
			diff[ctr] = v - prev[ctr]
		}
		out[ifc] = diff
	}
	return out
}

// Print writes one block per interface with humanized byte counts.
func Print(w io.Writer, s Stats, aliases map[string]string) {
	ifaces := make([]string, 0, len(s))
	for iface := range s {
		ifaces = append(ifaces, iface)
	}
	slices.Sort(ifaces)

	for _, iface := range ifaces {
		stats := s[iface]

		if alias, ok := aliases[iface]; ok {
			fmt.Fprintf(w, "%s (%s):\n", iface, alias)
		} else {
			fmt.Fprintf(w, "%s:\n", iface)
		}

		fmt.Fprintf(w, "  TX   %-12d  ≈ %-8s (%s)\n",
			stats[TxPackets],
			humanize.Bytes(stats[TxBytes]),
			humanize.Comma(int64(stats[TxBytes])),
		)
		fmt.Fprintf(w, "  RX   %-12d  ≈ %-8s (%s)\n",
			stats[RxPackets],
			humanize.Bytes(stats[RxBytes]),
			humanize.Comma(int64(stats[RxBytes])),
		)
	}
}
