//go:build linux

package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"

	"github.com/romshark/afpacket-bench-go/afpacket"
	"github.com/romshark/afpacket-bench-go/exchange"
	"github.com/romshark/afpacket-bench-go/frame"
	"github.com/romshark/afpacket-bench-go/ifacestat"
	"github.com/romshark/afpacket-bench-go/ratelimit"
)

type Config struct {
	Interface   string `yaml:"interface"`
	TargetMAC   string `yaml:"target-mac"`
	Count       uint32 `yaml:"count"`
	Transmitter bool   `yaml:"transmitter"`  // false = responder
	RatePPS     uint64 `yaml:"rate-pps"`     // 0 = unlimited, max speed.
	RecvTimeout string `yaml:"recv-timeout"` // e.g. "5s"; empty = block forever.
	NoFilter    bool   `yaml:"no-filter"`
	NoStats     bool   `yaml:"no-stats"`

	target      net.HardwareAddr
	recvTimeout time.Duration
}

func loadConfig() (*Config, error) {
	fConfig := flag.String("config", "bench.yaml", "path to config YAML file")
	fIface := flag.String("i", "", "network interface")
	fTarget := flag.String("t", "", "target MAC")
	fCount := flag.Uint("n", 0, "frame count")
	fTransmit := flag.Bool("transmitter", false,
		"run as transmitter (responder when absent)")
	fRate := flag.Int64("r", -1, "transmit rate in frames/s (<0 falls back to config)")
	fTimeout := flag.String("w", "", "receive timeout, e.g. 5s (empty falls back to config)")
	fNoFilter := flag.Bool("F", false, "do not attach the kernel source filter")
	fNoStats := flag.Bool("S", false, "skip interface counter snapshots")

	flag.Parse()

	var conf Config
	b, err := os.ReadFile(*fConfig)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// A missing config file is fine when flags provide everything.
	} else if err := yaml.Unmarshal(b, &conf); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	// Apply CLI overrides if necessary.
	if *fIface != "" {
		conf.Interface = *fIface
	}
	if *fTarget != "" {
		conf.TargetMAC = *fTarget
	}
	if *fCount != 0 {
		conf.Count = uint32(*fCount)
	}
	if *fTransmit {
		conf.Transmitter = true
	}
	if *fRate >= 0 {
		conf.RatePPS = uint64(*fRate)
	}
	if *fTimeout != "" {
		conf.RecvTimeout = *fTimeout
	}
	if *fNoFilter {
		conf.NoFilter = true
	}
	if *fNoStats {
		conf.NoStats = true
	}

	// Validate

	if conf.Interface == "" {
		return nil, errors.New("interface must be set (or use -i)")
	}
	if len(conf.Interface) >= unix.IFNAMSIZ {
		return nil, fmt.Errorf("interface name %q is too long", conf.Interface)
	}
	if conf.TargetMAC == "" {
		return nil, errors.New("target-mac must be set (or use -t)")
	}
	mac, err := net.ParseMAC(conf.TargetMAC)
	if err != nil {
		return nil, fmt.Errorf("invalid target-mac %q: %w", conf.TargetMAC, err)
	}
	if len(mac) != frame.AddrLen {
		return nil, fmt.Errorf("target-mac %q is not a 6-octet Ethernet address",
			conf.TargetMAC)
	}
	conf.target = mac
	if conf.Count == 0 {
		return nil, errors.New("count must be > 0")
	}
	if conf.RecvTimeout != "" {
		d, err := time.ParseDuration(conf.RecvTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid recv-timeout %q: %w", conf.RecvTimeout, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("recv-timeout %q must not be negative", conf.RecvTimeout)
		}
		conf.recvTimeout = d
	}

	return &conf, nil
}

func fatalIf(err error, msgf string, a ...any) {
	if err != nil {
		fmt.Fprintf(os.Stderr, msgf+": %v\n", append(a, err)...)
		os.Exit(1)
	}
}

func run(conf *Config) error {
	var before ifacestat.Stats
	if !conf.NoStats {
		s, err := ifacestat.Snapshot([]string{conf.Interface})
		if err != nil {
			return fmt.Errorf("taking interface stats (before): %w", err)
		}
		before = s
	}

	sock, err := afpacket.Open(conf.Interface, conf.target, afpacket.Config{
		RecvTimeout:   conf.recvTimeout,
		DisableFilter: conf.NoFilter,
	})
	if err != nil {
		return fmt.Errorf("opening endpoint: %w", err)
	}
	defer sock.Close()

	hdr := frame.Header{
		Dst:  conf.target,
		Src:  sock.HardwareAddr(),
		Type: frame.EtherTypeIPv4,
	}

	if conf.Transmitter {
		fmt.Fprintf(os.Stderr, "transmitter on %s -> %s: %d frames\n",
			conf.Interface, conf.target, conf.Count)

		res, err := exchange.Transmitter(sock, hdr, conf.Count, ratelimit.New(conf.RatePPS))
		if err != nil {
			return fmt.Errorf("exchange: %w", err)
		}
		res.Print(os.Stdout)
	} else {
		fmt.Fprintf(os.Stderr, "responder on %s <- %s: %d frames\n",
			conf.Interface, conf.target, conf.Count)

		if err := exchange.Responder(sock, hdr, conf.Count); err != nil {
			return fmt.Errorf("exchange: %w", err)
		}
		fmt.Fprintf(os.Stderr, "echoed %d frames\n", conf.Count)
	}

	if received, dropped, err := sock.Stats(); err == nil {
		fmt.Fprintf(os.Stderr, "socket: %d frames seen, %d dropped by kernel\n",
			received, dropped)
	}

	if !conf.NoStats {
		after, err := ifacestat.Snapshot([]string{conf.Interface})
		if err != nil {
			return fmt.Errorf("taking interface stats (after): %w", err)
		}
		delta := after.Since(before)

		role := "responder"
		if conf.Transmitter {
			role = "transmitter"
		}
		fmt.Fprintf(os.Stderr, "\nINTERFACE COUNTERS:\n")
		ifacestat.Print(os.Stderr, delta, map[string]string{conf.Interface: role})
		warnForeignTraffic(delta[conf.Interface], conf.Count)
	}
	return nil
}

// warnForeignTraffic flags runs where the interface moved more frames
// than the exchange itself accounts for: the segment was not quiet and
// the figures are suspect.
func warnForeignTraffic(d ifacestat.IfaceStats, count uint32) {
	if d == nil {
		return
	}
	expected := uint64(count)
	tx, rx := d[ifacestat.TxPackets], d[ifacestat.RxPackets]
	if tx > expected || rx > expected {
		fmt.Fprintf(os.Stderr,
			"warning: interface moved %d tx / %d rx frames during a %d frame "+
				"exchange; foreign traffic may have skewed the result\n",
			tx, rx, expected)
	}
}

func main() {
	conf, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading config: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "FINAL CONFIG:\n")
	b, err := yaml.Marshal(conf)
	fatalIf(err, "encoding final YAML config")
	_, _ = os.Stderr.Write(b)
	fmt.Fprintln(os.Stderr)

	fatalIf(run(conf), "benchmark")
}
