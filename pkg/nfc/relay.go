package nfc

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
)

// DefaultTimeout bounds one relay exchange when the config leaves it zero.
const DefaultTimeout = 5 * time.Second

// RelayConfig configures a Relay.
type RelayConfig struct {
	// Conn is the stream to the remote NFC front end. Required.
	Conn net.Conn

	// Timeout bounds each exchange, write and read together.
	Timeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Relay is an apdu.Exchanger that forwards commands over a stream
// connection to a remote NFC front end, or to an emulator served by
// Server.
type Relay struct {
	conn    net.Conn
	reader  *FrameReader
	writer  *FrameWriter
	timeout time.Duration
	log     logging.LeveledLogger

	mu     sync.Mutex
	closed bool
}

// NewRelay creates a relay over an established connection.
func NewRelay(config RelayConfig) (*Relay, error) {
	if config.Conn == nil {
		return nil, ErrNoConn
	}
	r := &Relay{
		conn:    config.Conn,
		reader:  NewFrameReader(config.Conn),
		writer:  NewFrameWriter(config.Conn),
		timeout: config.Timeout,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("nfc-relay")
	}
	return r, nil
}

// DialRelay connects to address over TCP and returns a relay on it.
func DialRelay(address string, config RelayConfig) (*Relay, error) {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, err
	}
	config.Conn = conn
	r, err := NewRelay(config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if r.log != nil {
		r.log.Infof("relay connected to %s", conn.RemoteAddr())
	}
	return r, nil
}

// Exchange implements apdu.Exchanger.
func (r *Relay) Exchange(cmd []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if err := r.conn.SetDeadline(time.Now().Add(r.timeout)); err != nil {
		return nil, err
	}
	if err := r.writer.Write(cmd); err != nil {
		return nil, fmt.Errorf("relay write: %w", err)
	}
	resp, err := r.reader.Read()
	if err != nil {
		return nil, fmt.Errorf("relay read: %w", err)
	}
	return resp, nil
}

// Close closes the underlying connection.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	r.closed = true
	return r.conn.Close()
}
