package rfsserver

import (
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/evan6998/remotefs/internal/config"
	"github.com/evan6998/remotefs/internal/wire"
)

// Server is one listening socket accepting many concurrent client
// connections. Each connection gets its own worker goroutine with
// strictly local state; one connection's failure never affects another.
type Server struct {
	log *logrus.Logger
}

// New builds a Server that logs through log.
func New(log *logrus.Logger) *Server {
	return &Server{log: log}
}

// Listen binds serverport15440 (or its default) and returns the raw
// listener, split out from Serve so callers (and tests) that need the
// bound address — e.g. when the configured port is 0 — can read it back
// before the accept loop starts.
func (s *Server) Listen() (net.Listener, error) {
	cfg := config.ServerFromEnv()
	addr := net.JoinHostPort("", strconv.Itoa(cfg.Port))
	return net.Listen("tcp", addr)
}

// ListenAndServe binds serverport15440 (or its default), then accepts
// connections until the listener is closed or an accept error occurs.
// Address reuse is enabled and the backlog is the Go runtime's default,
// which already exceeds the protocol's minimum of 5.
func (s *Server) ListenAndServe() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()
	s.log.WithField("addr", ln.Addr().String()).Info("listening")
	return s.Serve(ln)
}

// Serve runs the accept loop against an already-bound listener.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		connID := uuid.New().String()
		connLog := s.log.WithField("conn", connID)

		// A per-connection errgroup isolates this worker: its error (if
		// any), including a recovered panic, is captured and logged
		// without touching the accept loop or any sibling connection's
		// goroutine, the goroutine-based analogue of the reference's
		// fork-per-connection isolation.
		g := new(errgroup.Group)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("rfsserver: connection worker panicked: %v", r)
				}
			}()
			return handleConn(connLog, conn)
		})
		go func() {
			if err := g.Wait(); err != nil {
				connLog.WithError(err).Warn("connection worker exited")
			}
		}()
	}
}

// handleConn runs the dispatcher loop for one connection until the peer
// closes or a framing error occurs, then tears the connection down. It
// never panics out through a syscall failure — those are all reported
// as errno frames by dispatch; only transport-level problems end the
// loop.
func handleConn(log *logrus.Entry, conn net.Conn) error {
	defer conn.Close()
	log.Info("connection accepted")
	for {
		hdr, body, err := wire.ReadRequest(conn)
		if err != nil {
			if err == wire.ErrPeerClosed {
				log.Info("peer closed connection")
				return nil
			}
			return err
		}
		errno, respBody := dispatch(log, hdr.Opcode, body)
		if err := wire.WriteResponse(conn, errno, respBody); err != nil {
			return err
		}
	}
}
