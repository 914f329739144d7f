// Copyright 2026 Scadalink
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mbtcp

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Server is a Modbus TCP server. Each accepted connection is served by
// its own goroutine; requests on a single connection are handled
// strictly in order, while different connections proceed concurrently.
type Server struct {
	dispatcher *Dispatcher
	opts       *serverOptions

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   int32
	wg       sync.WaitGroup
	metrics  *ServerMetrics
}

// NewServer creates a new Modbus TCP server serving requests from handler.
func NewServer(handler Handler, opts ...ServerOption) *Server {
	options := defaultServerOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Server{
		dispatcher: NewDispatcher(handler, options.logger),
		opts:       options,
		conns:      make(map[net.Conn]struct{}),
		metrics:    NewServerMetrics(),
	}
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *ServerMetrics {
	return s.metrics
}

// ListenAndServe starts the server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve starts serving connections on the given listener.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.opts.logger.Info("server started", slog.String("addr", listener.Addr().String()))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&s.closed) == 1 {
				return nil
			}
			s.opts.logger.Error("accept error", slog.String("error", err.Error()))
			continue
		}

		s.mu.Lock()
		if len(s.conns) >= s.opts.maxConns {
			s.mu.Unlock()
			s.opts.logger.Warn("max connections reached, rejecting",
				slog.String("remote", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}
		s.conns[conn] = struct{}{}
		s.metrics.ConnectionsActive.Add(1)
		s.metrics.ConnectionsTotal.Add(1)
		s.mu.Unlock()

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetKeepAlive(true)
			tcpConn.SetKeepAlivePeriod(30 * time.Second)
			tcpConn.SetNoDelay(true)
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Close shuts down the server gracefully.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}

	s.mu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.opts.logger.Info("server stopped")
	return err
}

// Addr returns the server's address.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ActiveConnections returns the number of active connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// handleConn serves one connection. Incoming bytes are accumulated and
// decoded frame by frame; TCP may deliver a request split across reads
// or several requests in one read, and both must work. A malformed
// frame closes the connection, since a byte stream cannot be
// resynchronized past one.
func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.opts.logger.Error("panic in connection handler",
				slog.String("remote", conn.RemoteAddr().String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}

		s.wg.Done()
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.metrics.ConnectionsActive.Add(-1)
		s.mu.Unlock()
	}()

	s.opts.logger.Debug("connection accepted",
		slog.String("remote", conn.RemoteAddr().String()))

	buf := make([]byte, 0, 512)
	chunk := make([]byte, 512)

	for {
		if atomic.LoadInt32(&s.closed) == 1 {
			return
		}

		// Drain every complete frame already buffered before reading more.
		for {
			frame, consumed, err := DecodeFrame(buf)
			if errors.Is(err, ErrShortFrame) {
				break
			}
			if err != nil {
				s.metrics.FramesInvalid.Add(1)
				s.opts.logger.Warn("invalid frame, closing connection",
					slog.String("remote", conn.RemoteAddr().String()),
					slog.String("error", err.Error()))
				return
			}
			buf = buf[consumed:]

			if !s.serveFrame(conn, frame) {
				return
			}
		}

		if s.opts.readTimeout > 0 {
			conn.SetReadDeadline(timeNow().Add(s.opts.readTimeout))
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err != io.EOF && atomic.LoadInt32(&s.closed) == 0 {
				// Timeouts are expected for idle connections.
				if netErr, ok := err.(net.Error); !ok || !netErr.Timeout() {
					s.opts.logger.Debug("read error",
						slog.String("remote", conn.RemoteAddr().String()),
						slog.String("error", err.Error()))
				}
			}
			return
		}
	}
}

// serveFrame dispatches one request and writes the response. It
// reports whether the connection is still usable.
func (s *Server) serveFrame(conn net.Conn, frame *Frame) bool {
	start := timeNow()
	s.metrics.RequestsTotal.Add(1)

	response := s.dispatcher.Dispatch(frame)

	if s.opts.readTimeout > 0 {
		conn.SetWriteDeadline(timeNow().Add(s.opts.readTimeout))
	}

	if _, err := conn.Write(response.Encode()); err != nil {
		s.metrics.RequestsErrors.Add(1)
		s.opts.logger.Debug("write error",
			slog.String("remote", conn.RemoteAddr().String()),
			slog.String("error", err.Error()))
		return false
	}

	s.metrics.Latency.Observe(time.Since(start))
	return true
}

// timeNow is a variable for testing
var timeNow = time.Now
