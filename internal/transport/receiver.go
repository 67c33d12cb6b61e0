package transport

import (
	"errors"
	"io"
	"net"
)

// Message is one fully-decoded frame handed to a Receiver's callback.
type Message struct {
	Header  Header
	Payload []byte
}

// Receiver owns the read half of one connection and runs a reentrant
// decode loop: read the header, then the payload, tolerant to timeouts and
// interrupted reads (spec.md §4.9: "a reentrant decoder: reads header then
// payload incrementally, tolerant to WouldBlock and Interrupted").
type Receiver struct {
	conn      net.Conn
	onMessage func(Message)

	// partial decode state, preserved across read timeouts so a decode
	// never restarts from scratch mid-frame.
	headerBuf []byte
	header    Header
	haveHead  bool
	payload   []byte
	have      int
}

// NewReceiver constructs a Receiver delivering fully-decoded messages to fn.
func NewReceiver(conn net.Conn, fn func(Message)) *Receiver {
	return &Receiver{conn: conn, onMessage: fn, headerBuf: make([]byte, 0, HeaderSize)}
}

// Run decodes frames until the connection is closed or a non-recoverable
// I/O error occurs, which it returns (spec.md §4.9: "on I/O error, both
// halves shut down, the connection is marked disconnected").
func (r *Receiver) Run() error {
	for {
		if err := r.fillHeader(); err != nil {
			return err
		}
		if err := r.fillPayload(); err != nil {
			return err
		}
		r.onMessage(Message{Header: r.header, Payload: r.payload})
		r.reset()
	}
}

func (r *Receiver) reset() {
	r.headerBuf = r.headerBuf[:0]
	r.haveHead = false
	r.payload = nil
	r.have = 0
}

func (r *Receiver) fillHeader() error {
	for len(r.headerBuf) < HeaderSize {
		buf := make([]byte, HeaderSize-len(r.headerBuf))
		n, err := r.conn.Read(buf)
		if n > 0 {
			r.headerBuf = append(r.headerBuf, buf[:n]...)
		}
		if err != nil {
			if isRecoverable(err) {
				continue
			}
			return err
		}
	}
	h, err := DecodeHeader(r.headerBuf)
	if err != nil {
		return err
	}
	r.header = h
	r.payload = make([]byte, h.Length)
	return nil
}

func (r *Receiver) fillPayload() error {
	for r.have < len(r.payload) {
		n, err := r.conn.Read(r.payload[r.have:])
		if n > 0 {
			r.have += n
		}
		if err != nil {
			if isRecoverable(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// isRecoverable reports whether err represents a transient condition the
// decoder should simply retry on (a timed-out deadline, or
// io.ErrShortBuffer) rather than a broken connection.
func isRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, io.ErrShortBuffer)
}
