package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// SendMode selects how Sender schedules writes onto the connection
// (spec.md §4.9).
type SendMode int

const (
	// Blocking writes each frame directly on the caller's goroutine,
	// honoring an optional write deadline.
	Blocking SendMode = iota
	// NonBlockingOutbox queues frames onto a bounded channel drained by a
	// dedicated writer goroutine; Send returns ErrOutboxFull instead of
	// blocking when the queue is saturated.
	NonBlockingOutbox
	// SlabBuffered accumulates small frames into a fixed-size slab,
	// flushing when the slab fills or on an idle tick.
	SlabBuffered
)

// DefaultSlabSize matches spec.md §4.9's "slab size (default 65536 bytes)".
const DefaultSlabSize = 65536

// ErrOutboxFull is returned by Send in NonBlockingOutbox mode when the
// outbox queue has no room (spec.md §7's IO interrupted: "recoverable; the
// descheduler retries").
var ErrOutboxFull = errors.New("transport: outbox full")

type frame struct {
	header  Header
	payload []byte
}

// Sender owns the write half of one outbound connection. Exactly one
// goroutine ever touches conn for writes (spec.md §4.9: "a single sender
// thread owns the write half").
type Sender struct {
	conn         net.Conn
	mode         SendMode
	writeTimeout time.Duration

	outbox chan frame // NonBlockingOutbox
	done   chan struct{}
	closed chan struct{}
	once   sync.Once

	slabMu   sync.Mutex
	slabSize int
	slab     []byte
	slabIdle time.Duration
}

// SenderConfig configures a Sender (spec.md §6.3's connection parameters).
type SenderConfig struct {
	Mode         SendMode
	WriteTimeout time.Duration // Blocking mode only; 0 = none
	OutboxSize   int           // NonBlockingOutbox mode only
	SlabSize     int           // SlabBuffered mode only; 0 = DefaultSlabSize
	SlabIdle     time.Duration // SlabBuffered flush-on-idle interval
}

// NewSender constructs a Sender over conn per cfg. For NonBlockingOutbox
// and SlabBuffered modes, call Run in its own goroutine to drive the
// background writer.
func NewSender(conn net.Conn, cfg SenderConfig) *Sender {
	slabSize := cfg.SlabSize
	if slabSize <= 0 {
		slabSize = DefaultSlabSize
	}
	outboxSize := cfg.OutboxSize
	if outboxSize <= 0 {
		outboxSize = 256
	}
	return &Sender{
		conn:         conn,
		mode:         cfg.Mode,
		writeTimeout: cfg.WriteTimeout,
		outbox:       make(chan frame, outboxSize),
		done:         make(chan struct{}),
		closed:       make(chan struct{}),
		slabSize:     slabSize,
		slab:         make([]byte, 0, slabSize),
		slabIdle:     cfg.SlabIdle,
	}
}

// Send writes one frame. In Blocking mode it writes synchronously; in
// NonBlockingOutbox mode it enqueues without blocking (ErrOutboxFull if
// full); in SlabBuffered mode it appends to the slab, flushing if full.
func (s *Sender) Send(h Header, payload []byte) error {
	h.Length = uint32(len(payload))
	switch s.mode {
	case Blocking:
		return s.writeDirect(h, payload)
	case NonBlockingOutbox:
		select {
		case s.outbox <- frame{header: h, payload: payload}:
			return nil
		default:
			return ErrOutboxFull
		}
	case SlabBuffered:
		return s.appendSlab(h, payload)
	default:
		return s.writeDirect(h, payload)
	}
}

func (s *Sender) writeDirect(h Header, payload []byte) error {
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if _, err := s.conn.Write(h.Encode()); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := s.conn.Write(payload)
	return err
}

func (s *Sender) appendSlab(h Header, payload []byte) error {
	s.slabMu.Lock()
	defer s.slabMu.Unlock()
	framed := append(h.Encode(), payload...)
	if len(s.slab)+len(framed) > s.slabSize {
		if err := s.flushSlabLocked(); err != nil {
			return err
		}
	}
	if len(framed) >= s.slabSize {
		return s.writeDirect(h, payload)
	}
	s.slab = append(s.slab, framed...)
	return nil
}

func (s *Sender) flushSlabLocked() error {
	if len(s.slab) == 0 {
		return nil
	}
	_, err := s.conn.Write(s.slab)
	s.slab = s.slab[:0]
	return err
}

// Flush forces any slab-buffered bytes out now.
func (s *Sender) Flush() error {
	s.slabMu.Lock()
	defer s.slabMu.Unlock()
	return s.flushSlabLocked()
}

// Run drains the outbox (NonBlockingOutbox mode) and/or flushes the slab on
// idle ticks (SlabBuffered mode) until Close is called. Blocking-mode
// senders don't need Run.
func (s *Sender) Run() {
	var idleTick <-chan time.Time
	if s.mode == SlabBuffered && s.slabIdle > 0 {
		ticker := time.NewTicker(s.slabIdle)
		defer ticker.Stop()
		idleTick = ticker.C
	}
	for {
		select {
		case <-s.done:
			return
		case f := <-s.outbox:
			if err := s.writeDirect(f.header, f.payload); err != nil {
				return
			}
		case <-idleTick:
			_ = s.Flush()
		}
	}
}

// Close stops Run (if running), flushes any buffered bytes, and closes the
// underlying write half. Safe to call more than once.
func (s *Sender) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.Flush()
		if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
			err = cw.CloseWrite()
		} else {
			err = s.conn.Close()
		}
		close(s.closed)
	})
	return err
}

var _ io.Closer = (*Sender)(nil)
