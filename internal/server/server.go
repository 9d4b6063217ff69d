// Package server implements the TCP front end described in spec.md
// §4.10: accept connections, read one wire.Command per request, dispatch
// it against an engine.Engine, and write back the wire.Response.
//
// Grounded on nyasuto-moz/internal/api/server.go's Server type (a struct
// holding the store, listen address, and Start method). AtlasKV replaces
// gin's HTTP router and auth middleware — there is no REST surface or
// authentication layer here, both explicit spec Non-goals — with a plain
// net.Listener accept loop and a bounded worker pool, since the protocol
// is a raw length-prefixed binary stream over one TCP connection per
// client rather than JSON-over-HTTP.
package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/atlaskv/atlaskv/internal/config"
	"github.com/atlaskv/atlaskv/internal/engine"
	"github.com/atlaskv/atlaskv/internal/logkv"
	"github.com/atlaskv/atlaskv/internal/wire"
)

var log = logkv.With("server")

// Server accepts TCP connections and dispatches each request frame
// against an Engine, bounding concurrent connections at cfg.MaxConnections.
type Server struct {
	cfg config.Config
	eng *engine.Engine
	ln  net.Listener

	sem chan struct{} // bounds concurrent connections
	wg  sync.WaitGroup
}

// New returns a Server bound to eng but not yet listening.
func New(cfg config.Config, eng *engine.Engine) *Server {
	return &Server{
		cfg: cfg,
		eng: eng,
		sem: make(chan struct{}, cfg.MaxConnections),
	}
}

// Serve opens a TCP listener on cfg.ListenAddr and accepts connections
// until the listener is closed (via Shutdown) or any other accept error
// occurs; accept errors are not retried.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.ln = ln

	log.WithField("addr", s.cfg.ListenAddr).Info("server listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return err
		}

		select {
		case s.sem <- struct{}{}:
			s.wg.Add(1)
			go s.handle(conn)
		default:
			log.Warn("max connections reached, rejecting connection")
			conn.Close()
		}
	}
}

// Shutdown closes the listener, causing Serve to return once in-flight
// connections drain.
func (s *Server) Shutdown() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) handle(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("recovered from panic in connection handler")
		}
		conn.Close()
		<-s.sem
		s.wg.Done()
	}()

	readTimeout := s.cfg.ReadTimeout()
	writeTimeout := s.cfg.WriteTimeout()

	for {
		if readTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(readTimeout))
		}

		cmd, err := wire.ReadCommand(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithField("err", err).Debug("connection closed")
			}
			return
		}

		resp := s.eng.Execute(cmd)

		if writeTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		}
		if err := wire.WriteResponse(conn, resp); err != nil {
			log.WithField("err", err).Debug("failed to write response")
			return
		}
	}
}
