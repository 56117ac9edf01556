package exchange

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/romshark/afpacket-bench-go/frame"
)

func TestBuildResultTotals(t *testing.T) {
	res, err := BuildResult(1000, 2*time.Second)
	if err != nil {
		t.Fatalf("building result: %v", err)
	}
	if want := uint64(2 * 1000 * frame.PayloadLen); res.Bytes != want {
		t.Errorf("bytes: got %d want %d", res.Bytes, want)
	}
	if want := 1_500_000.0; res.BytesPerSecond() != want {
		t.Errorf("rate: got %f want %f", res.BytesPerSecond(), want)
	}
}

func TestBuildResultZeroElapsed(t *testing.T) {
	_, err := BuildResult(10, 0)
	if !errors.Is(err, ErrZeroElapsed) {
		t.Fatalf("want ErrZeroElapsed, got %v", err)
	}
}

func TestResultPrint(t *testing.T) {
	res, err := BuildResult(1000, 2*time.Second)
	if err != nil {
		t.Fatalf("building result: %v", err)
	}

	var buf bytes.Buffer
	res.Print(&buf)

	out := buf.String()
	for _, want := range []string{
		"FINAL REPORT",
		"1,000 each way",
		"3,000,000 bytes",
		"12.0 Mbps",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
