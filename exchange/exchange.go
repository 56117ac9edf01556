// Package exchange implements the lockstep frame exchange both benchmark
// roles run: the transmitter sends a numbered burst of probe frames and
// then collects their echoes, the responder collects first and echoes
// second. Each side performs exactly count sends and count receives, so
// a lost or foreign frame aborts or stalls the run instead of silently
// skewing the measurement.
package exchange

import (
	"fmt"
	"time"

	"github.com/romshark/afpacket-bench-go/frame"
	"github.com/romshark/afpacket-bench-go/ratelimit"
)

// Conn moves whole Ethernet frames. Both methods report the number of
// bytes actually moved; anything other than a full frame is fatal to the
// exchange.
type Conn interface {
	Send(p []byte) (int, error)
	Recv(p []byte) (int, error)
}

// TransportError reports a send or receive that moved an unexpected
// number of bytes.
type TransportError struct {
	Op    string // "send" or "recv"
	Index uint32 // position of the frame within the run
	Got   int
	Want  int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s frame %d: moved %d bytes, want %d",
		e.Op, e.Index, e.Got, e.Want)
}

// Transmitter drives a run of count frames over conn: it sends frames
// 0..count-1, then receives and validates as many echoes. The returned
// Result covers the time from the first send to the last validated echo.
//
// limiter may be nil for unpaced transmission. Pacing applies to the
// send phase only and turns the reported figure into offered load rather
// than link capacity.
func Transmitter(
	conn Conn, hdr frame.Header, count uint32, limiter *ratelimit.Limiter,
) (Result, error) {
	var out, in [frame.MaxLen]byte
	hdr.Put(out[:])
	payload := out[frame.HeaderLen:]

	start := time.Now()

	for i := uint32(0); i < count; i++ {
		frame.PutProbe(payload, i)
		if err := sendFrame(conn, out[:], i); err != nil {
			return Result{}, err
		}
		limiter.Throttle()
	}

	for i := uint32(0); i < count; i++ {
		if err := recvFrame(conn, in[:], i); err != nil {
			return Result{}, err
		}
		if err := frame.Check(in[frame.HeaderLen:], i); err != nil {
			return Result{}, fmt.Errorf("bad echo: %w", err)
		}
	}

	return BuildResult(count, time.Since(start))
}

// Responder runs the opposite side: it receives and validates count
// frames from conn, then echoes the same count back. Echo frames are
// rebuilt locally with hdr rather than reflected, so the responder's own
// addressing appears on the wire.
func Responder(conn Conn, hdr frame.Header, count uint32) error {
	var out, in [frame.MaxLen]byte
	hdr.Put(out[:])
	payload := out[frame.HeaderLen:]

	for i := uint32(0); i < count; i++ {
		if err := recvFrame(conn, in[:], i); err != nil {
			return err
		}
		if err := frame.Check(in[frame.HeaderLen:], i); err != nil {
			return fmt.Errorf("bad request: %w", err)
		}
	}

	for i := uint32(0); i < count; i++ {
		frame.PutProbe(payload, i)
		if err := sendFrame(conn, out[:], i); err != nil {
			return err
		}
	}

	return nil
}

func sendFrame(conn Conn, buf []byte, index uint32) error {
	n, err := conn.Send(buf)
	if err != nil {
		return fmt.Errorf("sending frame %d: %w", index, err)
	}
	if n != frame.MaxLen {
		return &TransportError{Op: "send", Index: index, Got: n, Want: frame.MaxLen}
	}
	return nil
}

func recvFrame(conn Conn, buf []byte, index uint32) error {
	n, err := conn.Recv(buf)
	if err != nil {
		return fmt.Errorf("receiving frame %d: %w", index, err)
	}
	if n != frame.MaxLen {
		return &TransportError{Op: "recv", Index: index, Got: n, Want: frame.MaxLen}
	}
	return nil
}
