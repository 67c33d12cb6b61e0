package transport

import (
	"net"
	"sync"

	uuid "github.com/satori/go.uuid"
)

// ConnState is a Connection's lifecycle state.
type ConnState int

const (
	ConnConnected ConnState = iota
	ConnDisconnected
)

// Connection pairs a Sender and Receiver over one net.Conn and tracks
// lifecycle (spec.md §4.9: "on I/O error, both halves shut down, the
// connection is marked disconnected; there is no reconnection — a fresh
// job requires a fresh connection").
type Connection struct {
	ID       string // correlation id, satori/go.uuid v4
	LocalID  uint32
	RemoteID uint32

	conn     net.Conn
	Sender   *Sender
	Receiver *Receiver

	mu    sync.Mutex
	state ConnState
	err   error

	onDisconnect func(*Connection, error)
}

// NewConnection wraps conn with a Sender/Receiver pair. onMessage handles
// decoded frames; onDisconnect (optional) fires once when either half
// observes a non-recoverable I/O error.
func NewConnection(localID, remoteID uint32, conn net.Conn, senderCfg SenderConfig, onMessage func(Message), onDisconnect func(*Connection, error)) *Connection {
	c := &Connection{
		ID:           uuid.NewV4().String(),
		LocalID:      localID,
		RemoteID:     remoteID,
		conn:         conn,
		state:        ConnConnected,
		onDisconnect: onDisconnect,
	}
	c.Sender = NewSender(conn, senderCfg)
	c.Receiver = NewReceiver(conn, onMessage)
	return c
}

// Run drives the Sender (if its mode needs a background goroutine) and the
// Receiver's decode loop, blocking until the connection fails or is
// explicitly closed. It is meant to be called in its own goroutine per
// connection.
func (c *Connection) Run() {
	if c.Sender.mode != Blocking {
		go c.Sender.Run()
	}
	err := c.Receiver.Run()
	c.fail(err)
}

func (c *Connection) fail(err error) {
	c.mu.Lock()
	if c.state == ConnDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = ConnDisconnected
	c.err = err
	c.mu.Unlock()

	_ = c.Sender.Close()
	if c.onDisconnect != nil {
		c.onDisconnect(c, err)
	}
}

// State reports the connection's current lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that caused disconnection, if any.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close tears the connection down deliberately (not due to an I/O error).
func (c *Connection) Close() error {
	c.fail(nil)
	return c.conn.Close()
}
