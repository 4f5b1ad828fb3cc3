package server

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ValentinKolb/mKV/lib/db"
	"github.com/ValentinKolb/mKV/resp"
	"github.com/ValentinKolb/mKV/resp/common"
)

var Logger = logger.GetLogger("server")

// Operational counters for the listener.
var (
	connectionsAcceptedTotal = metrics.NewCounter("mkv_connections_accepted_total")
	connectionsActive        = metrics.NewCounter("mkv_connections_active")
)

const (
	// initialAcceptBackoff is the first pause after a failed accept.
	initialAcceptBackoff = time.Second

	// maxAcceptBackoff caps the exponential accept backoff; once a
	// pause would exceed it, the listener gives up.
	maxAcceptBackoff = 64 * time.Second
)

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// Server accepts client connections and serves commands against a
// shared keyspace until a shutdown is requested.
type Server struct {
	cfg      common.ServerConfig
	holder   *db.Holder
	listener net.Listener

	// sem is the connection-cap semaphore: one slot per permitted
	// connection. A permit is acquired before accept and held for the
	// connection's lifetime.
	sem chan struct{}

	shutdown *Shutdown

	// conns tracks live connections by id for bookkeeping
	conns      *xsync.MapOf[uint64, net.Conn]
	nextConnID atomic.Uint64

	wg sync.WaitGroup
}

// New creates a server for the given configuration. The keyspace and
// its purge task are created here; nothing listens yet.
func New(cfg common.ServerConfig) *Server {
	maxConns := cfg.MaxConnections
	if maxConns < 1 {
		maxConns = common.DefaultMaxConnections
	}

	return &Server{
		cfg:      cfg,
		holder:   db.NewHolder(&db.Options{ChannelCapacity: cfg.ChannelCapacity}),
		sem:      make(chan struct{}, maxConns),
		shutdown: NewShutdown(),
		conns:    xsync.NewMapOf[uint64, net.Conn](),
	}
}

// DB returns a handle on the server's keyspace.
func (s *Server) DB() *db.DB {
	return s.holder.DB()
}

// Shutdown returns the server's shutdown notifier. Signaling it stops
// the accept loop and all connection tasks.
func (s *Server) Shutdown() *Shutdown {
	return s.shutdown
}

// Listen binds the configured TCP endpoint. A bind failure is fatal
// for the caller.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.Endpoint())
	if err != nil {
		return fmt.Errorf("failed to bind %s: %v", s.cfg.Endpoint(), err)
	}
	s.listener = listener
	Logger.Infof("listening on %s (max %d connections)", listener.Addr(), cap(s.sem))
	return nil
}

// Addr returns the bound listener address. Only valid after Listen.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept loop until shutdown is signaled or the accept
// backoff is exhausted. It returns nil on a clean shutdown.
func (s *Server) Serve() error {
	defer s.close()

	for {
		// Acquire a permit before accepting: while the connection cap
		// is reached, no accept is attempted at all.
		select {
		case s.sem <- struct{}{}:
		case <-s.shutdown.Done():
			return nil
		}

		conn, err := s.accept()
		if err != nil {
			<-s.sem
			if s.shutdown.IsSignaled() {
				return nil
			}
			return err
		}

		s.upgradeConn(conn)

		id := s.nextConnID.Add(1)
		s.conns.Store(id, conn)
		connectionsAcceptedTotal.Inc()
		connectionsActive.Inc()

		s.wg.Add(1)
		go func() {
			defer func() {
				conn.Close()
				s.conns.Delete(id)
				connectionsActive.Dec()
				<-s.sem // release the permit when the task ends
				s.wg.Done()
			}()

			h := &connHandler{
				db:       s.holder.DB(),
				conn:     resp.NewConnection(conn),
				shutdown: s.shutdown,
			}
			if err := h.run(); err != nil {
				Logger.Errorf("connection %d: %v", id, err)
			}
		}()
	}
}

// accept calls Accept with exponential backoff on transient errors.
// The backoff starts at one second and doubles up to 64 seconds; a
// failure beyond that is fatal. A successful accept resets it.
func (s *Server) accept() (net.Conn, error) {
	backoff := initialAcceptBackoff

	for {
		conn, err := s.listener.Accept()
		if err == nil {
			return conn, nil
		}
		if s.shutdown.IsSignaled() {
			return nil, err
		}
		if backoff > maxAcceptBackoff {
			return nil, fmt.Errorf("failed to accept: %v", err)
		}

		Logger.Warningf("accept error (retrying in %s): %v", backoff, err)

		select {
		case <-time.After(backoff):
		case <-s.shutdown.Done():
			return nil, err
		}
		backoff *= 2
	}
}

// upgradeConn applies the configured TCP socket options to an
// accepted connection.
func (s *Server) upgradeConn(conn net.Conn) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}

	if err := tcpConn.SetNoDelay(s.cfg.TCPNoDelay); err != nil {
		Logger.Warningf("failed to set TCP_NODELAY: %v", err)
	}

	if s.cfg.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			Logger.Warningf("failed to enable keep-alive: %v", err)
			return
		}
		period := time.Duration(s.cfg.TCPKeepAliveSec) * time.Second
		if err := tcpConn.SetKeepAlivePeriod(period); err != nil {
			Logger.Warningf("failed to set keep-alive period: %v", err)
		}
	}
}

// close tears the server down: stop accepting, wake every connection
// task, wait for them, then stop the keyspace's purge task.
func (s *Server) close() {
	s.shutdown.Signal()
	if s.listener != nil {
		s.listener.Close()
	}

	// Unblock reader goroutines stuck in a socket read.
	s.conns.Range(func(_ uint64, conn net.Conn) bool {
		conn.Close()
		return true
	})

	s.wg.Wait()
	s.holder.Close()
	Logger.Infof("server stopped")
}

// Stop requests a shutdown and wakes the accept loop. Serve returns
// once every connection task has finished.
func (s *Server) Stop() {
	s.shutdown.Signal()
	if s.listener != nil {
		s.listener.Close()
	}
}

// ActiveConnections returns the number of currently served
// connections.
func (s *Server) ActiveConnections() int {
	return s.conns.Size()
}

// Run binds the listener, installs the interrupt/terminate handler
// and serves until a signal or a fatal accept error. This is the
// entry point used by the CLI.
func (s *Server) Run() error {
	if err := s.Listen(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			Logger.Infof("received %s, shutting down", sig)
			s.Stop()
		case <-s.shutdown.Done():
		}
	}()

	return s.Serve()
}
