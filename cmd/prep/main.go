//go:build linux

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/romshark/afpacket-bench-go/netprep"
)

func fatalIf(err error, msgf string, a ...any) {
	if err != nil {
		fmt.Fprintf(os.Stderr, msgf+": %v\n", append(a, err)...)
		os.Exit(1)
	}
}

func main() {
	fIface := flag.String("i", "", "Interface")
	fWait := flag.Duration("w", 10*time.Second, "How long to wait for the link to come up")
	flag.Parse()

	if *fIface == "" {
		fmt.Fprint(os.Stderr, "missing -i interface\n")
		os.Exit(1)
	}

	fatalIf(netprep.Prepare(*fIface), "preparing %s", *fIface)
	fatalIf(netprep.WaitOperUp(*fIface, *fWait), "waiting for %s", *fIface)

	fmt.Fprintf(os.Stderr, "%s is up with IPv6 autoconfiguration disabled\n", *fIface)
}
