package nfc

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/backkem/homekey-reader/pkg/apdu"
	"github.com/pion/logging"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Listener is an optional pre-existing listener.
	// If nil, a new listener is created on ListenAddr.
	Listener net.Listener

	// ListenAddr is the TCP address to listen on (e.g., "127.0.0.1:7816").
	// Ignored if Listener is provided.
	ListenAddr string

	// Exchanger answers every received command. Required.
	Exchanger apdu.Exchanger

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Server answers relay frames from an Exchanger. Connections are served one
// command at a time; commands from different connections are serialised
// because a field holds a single endpoint.
type Server struct {
	listener  net.Listener
	exchanger apdu.Exchanger
	closeCh   chan struct{}
	wg        sync.WaitGroup
	log       logging.LeveledLogger

	exMu sync.Mutex

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewServer creates a relay server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Exchanger == nil {
		return nil, ErrNoExchanger
	}

	s := &Server{
		listener:  config.Listener,
		exchanger: config.Exchanger,
		closeCh:   make(chan struct{}),
		conns:     make(map[net.Conn]struct{}),
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("nfc-relay")
	}

	if s.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = "127.0.0.1:0"
		}
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		s.listener = listener
	}
	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	if s.log != nil {
		s.log.Infof("relay server listening on %s", s.listener.Addr())
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every open connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	close(s.closeCh)
	s.listener.Close()

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		s.connsMu.Lock()
		s.conns[conn] = struct{}{}
		s.connsMu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.connsMu.Lock()
				delete(s.conns, conn)
				s.connsMu.Unlock()
			}()
			if err := s.ServeConn(conn); err != nil && s.log != nil {
				s.log.Warnf("relay connection %s: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

// ServeConn answers frames on conn until the peer closes it. The connection
// is closed on return. An Exchanger error drops the connection, which the
// peer observes as a link failure.
func (s *Server) ServeConn(conn net.Conn) error {
	defer conn.Close()

	reader := NewFrameReader(conn)
	writer := NewFrameWriter(conn)
	for {
		cmd, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			select {
			case <-s.closeCh:
				return nil
			default:
			}
			return err
		}

		s.exMu.Lock()
		resp, err := s.exchanger.Exchange(cmd)
		s.exMu.Unlock()
		if err != nil {
			return err
		}
		if err := writer.Write(resp); err != nil {
			return err
		}
	}
}
