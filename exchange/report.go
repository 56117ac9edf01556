package exchange

import (
	"errors"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/romshark/afpacket-bench-go/frame"
)

// ErrZeroElapsed flags a run that finished below the clock granularity,
// leaving no meaningful rate to report.
var ErrZeroElapsed = errors.New("elapsed time is zero")

// Result summarizes a completed transmitter run.
type Result struct {
	Frames  uint32 // frames sent, as many echoes received
	Bytes   uint64 // payload bytes moved in both directions
	Elapsed time.Duration
}

// BuildResult derives the run totals for count round-tripped frames.
func BuildResult(count uint32, elapsed time.Duration) (Result, error) {
	if elapsed <= 0 {
		return Result{}, ErrZeroElapsed
	}
	return Result{
		Frames:  count,
		Bytes:   2 * uint64(count) * frame.PayloadLen,
		Elapsed: elapsed,
	}, nil
}

// BytesPerSecond returns the measured link throughput.
func (r Result) BytesPerSecond() float64 {
	return float64(r.Bytes) / r.Elapsed.Seconds()
}

// Print writes the final human-readable report to w.
func (r Result) Print(w io.Writer) {
	rate := r.BytesPerSecond()

	p := message.NewPrinter(language.English)
	p.Fprintf(w, "\nFINAL REPORT\n")
	p.Fprintf(w, " Elapsed:       %.6f s\n", r.Elapsed.Seconds())
	p.Fprintf(w, " Frames:        %d each way\n", r.Frames)
	p.Fprintf(w, " Transceived:   %s (%d bytes)\n", humanize.Bytes(r.Bytes), r.Bytes)
	p.Fprintf(w, " Bandwidth:     %s/s (%.1f Mbps)\n",
		humanize.Bytes(uint64(rate)), rate*8/1e6)
}
