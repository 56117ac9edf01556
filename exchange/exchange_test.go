package exchange

import (
	"errors"
	"net"
	"testing"

	"github.com/romshark/afpacket-bench-go/frame"
)

var (
	macA = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x0a}
	macB = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x0b}
)

// pipeConn is an in-memory frame transport. Send delivers a copy into
// the peer's queue, Recv takes one frame from the own queue.
type pipeConn struct {
	in  chan []byte
	out chan []byte
}

func newPipe() (a, b *pipeConn) {
	x := make(chan []byte, 1024)
	y := make(chan []byte, 1024)
	return &pipeConn{in: x, out: y}, &pipeConn{in: y, out: x}
}

func (c *pipeConn) Send(p []byte) (int, error) {
	c.out <- append([]byte(nil), p...)
	return len(p), nil
}

func (c *pipeConn) Recv(p []byte) (int, error) {
	buf := <-c.in
	copy(p, buf)
	return len(buf), nil
}

// funcConn scripts both directions of a transport.
type funcConn struct {
	send func(p []byte) (int, error)
	recv func(p []byte) (int, error)
}

func (c funcConn) Send(p []byte) (int, error) { return c.send(p) }
func (c funcConn) Recv(p []byte) (int, error) { return c.recv(p) }

func okSend(p []byte) (int, error) { return len(p), nil }

func TestRoundTrip(t *testing.T) {
	a, b := newPipe()
	hdrT := frame.Header{Dst: macB, Src: macA, Type: frame.EtherTypeIPv4}
	hdrR := frame.Header{Dst: macA, Src: macB, Type: frame.EtherTypeIPv4}

	const count = 4

	errc := make(chan error, 1)
	go func() { errc <- Responder(b, hdrR, count) }()

	res, err := Transmitter(a, hdrT, count, nil)
	if err != nil {
		t.Fatalf("transmitter: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("responder: %v", err)
	}

	if res.Frames != count {
		t.Errorf("frames: got %d want %d", res.Frames, count)
	}
	if want := uint64(2 * count * frame.PayloadLen); res.Bytes != want {
		t.Errorf("bytes: got %d want %d", res.Bytes, want)
	}
	if res.Elapsed <= 0 {
		t.Errorf("elapsed: got %s", res.Elapsed)
	}
	if res.BytesPerSecond() <= 0 {
		t.Errorf("rate: got %f", res.BytesPerSecond())
	}
}

func TestRoundTripSingleFrame(t *testing.T) {
	a, b := newPipe()
	hdrT := frame.Header{Dst: macB, Src: macA, Type: frame.EtherTypeIPv4}
	hdrR := frame.Header{Dst: macA, Src: macB, Type: frame.EtherTypeIPv4}

	errc := make(chan error, 1)
	go func() { errc <- Responder(b, hdrR, 1) }()

	res, err := Transmitter(a, hdrT, 1, nil)
	if err != nil {
		t.Fatalf("transmitter: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("responder: %v", err)
	}
	if want := uint64(2 * frame.PayloadLen); res.Bytes != want {
		t.Errorf("bytes: got %d want %d", res.Bytes, want)
	}
}

func TestTransmitterShortSend(t *testing.T) {
	conn := funcConn{
		send: func(p []byte) (int, error) { return frame.MaxLen - 1, nil },
	}
	hdr := frame.Header{Dst: macB, Src: macA, Type: frame.EtherTypeIPv4}

	_, err := Transmitter(conn, hdr, 3, nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("want *TransportError, got %v", err)
	}
	if te.Op != "send" || te.Index != 0 || te.Got != frame.MaxLen-1 {
		t.Errorf("unexpected error: %+v", te)
	}
}

func TestTransmitterShortEcho(t *testing.T) {
	conn := funcConn{
		send: okSend,
		recv: func(p []byte) (int, error) { return 60, nil },
	}
	hdr := frame.Header{Dst: macB, Src: macA, Type: frame.EtherTypeIPv4}

	_, err := Transmitter(conn, hdr, 3, nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("want *TransportError, got %v", err)
	}
	if te.Op != "recv" || te.Got != 60 || te.Want != frame.MaxLen {
		t.Errorf("unexpected error: %+v", te)
	}
}

func TestTransmitterForeignEcho(t *testing.T) {
	// A full-size frame without the probe marker must abort the run at
	// its index even though the length is fine.
	hdr := frame.Header{Dst: macB, Src: macA, Type: frame.EtherTypeIPv4}
	conn := funcConn{
		send: okSend,
		recv: func(p []byte) (int, error) {
			hdr.Put(p)
			frame.PutProbe(p[frame.HeaderLen:], 0)
			p[frame.HeaderLen] ^= 0xff // corrupt the marker
			return frame.MaxLen, nil
		},
	}

	_, err := Transmitter(conn, hdr, 2, nil)
	var ve *frame.ViolationError
	if !errors.As(err, &ve) {
		t.Fatalf("want *frame.ViolationError, got %v", err)
	}
	if ve.Field != frame.FieldMarker || ve.Index != 0 {
		t.Errorf("unexpected error: %+v", ve)
	}
}

func TestTransmitterOutOfOrderEcho(t *testing.T) {
	hdr := frame.Header{Dst: macB, Src: macA, Type: frame.EtherTypeIPv4}
	conn := funcConn{
		send: okSend,
		recv: func(p []byte) (int, error) {
			hdr.Put(p)
			frame.PutProbe(p[frame.HeaderLen:], 1) // echo 1 where 0 is due
			return frame.MaxLen, nil
		},
	}

	_, err := Transmitter(conn, hdr, 2, nil)
	var ve *frame.ViolationError
	if !errors.As(err, &ve) {
		t.Fatalf("want *frame.ViolationError, got %v", err)
	}
	if ve.Field != frame.FieldSeq || ve.Got != 1 || ve.Want != 0 {
		t.Errorf("unexpected error: %+v", ve)
	}
}

func TestResponderBadRequestSendsNothing(t *testing.T) {
	hdr := frame.Header{Dst: macA, Src: macB, Type: frame.EtherTypeIPv4}
	var sends int
	conn := funcConn{
		send: func(p []byte) (int, error) {
			sends++
			return len(p), nil
		},
		recv: func(p []byte) (int, error) {
			hdr.Put(p)
			frame.PutProbe(p[frame.HeaderLen:], 5) // 0 is due
			return frame.MaxLen, nil
		},
	}

	err := Responder(conn, hdr, 3)
	var ve *frame.ViolationError
	if !errors.As(err, &ve) {
		t.Fatalf("want *frame.ViolationError, got %v", err)
	}
	if sends != 0 {
		t.Errorf("echoed %d frames after a bad request", sends)
	}
}

func TestResponderEchoesInOrder(t *testing.T) {
	hdr := frame.Header{Dst: macA, Src: macB, Type: frame.EtherTypeIPv4}
	var reqSeq, echoSeq uint32
	conn := funcConn{
		send: func(p []byte) (int, error) {
			if len(p) != frame.MaxLen {
				t.Fatalf("echo length: got %d want %d", len(p), frame.MaxLen)
			}
			marker, seq := frame.Probe(p[frame.HeaderLen:])
			if marker != frame.Marker {
				t.Fatalf("echo marker: got %#x want %#x", marker, uint32(frame.Marker))
			}
			if seq != echoSeq {
				t.Fatalf("echo seq: got %d want %d", seq, echoSeq)
			}
			echoSeq++
			return len(p), nil
		},
		recv: func(p []byte) (int, error) {
			hdr.Put(p)
			frame.PutProbe(p[frame.HeaderLen:], reqSeq)
			reqSeq++
			return frame.MaxLen, nil
		},
	}

	if err := Responder(conn, hdr, 4); err != nil {
		t.Fatalf("responder: %v", err)
	}
	if echoSeq != 4 {
		t.Errorf("echoes: got %d want 4", echoSeq)
	}
}
