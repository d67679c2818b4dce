// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/syncgate/internal/gate"
	"github.com/holomush/syncgate/internal/ids"
	"github.com/holomush/syncgate/internal/syncpeer"
	"github.com/holomush/syncgate/internal/wire"
	"github.com/holomush/syncgate/pkg/errutil"
)

// Defaults for ServerConfig.
const (
	DefaultAddr            = ":8000"
	DefaultReadLimit int64 = 1 << 20
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// CorePeer is one connection's handle on the sync peer.
type CorePeer interface {
	gate.SyncCore
	Close()
}

// Connector attaches a new connection to the sync peer. Frames for the
// client are written to out.
type Connector func(ctx context.Context, out syncpeer.Outbound) CorePeer

// SuperPeerConnector connects clients to sp.
func SuperPeerConnector(sp *syncpeer.SuperPeer) Connector {
	return func(ctx context.Context, out syncpeer.Outbound) CorePeer {
		return sp.Connect(ctx, out)
	}
}

// ServerConfig holds a Server's collaborators and limits.
type ServerConfig struct {
	Addr       string
	Authorizer *Authorizer
	Connect    Connector
	// Schema decodes client frames. Defaults to syncpeer.ClientSchema.
	Schema       *wire.Schema
	ReadLimit    int64
	WriteTimeout time.Duration
	// OriginPatterns restricts browser origins. Empty accepts any origin.
	OriginPatterns []string
	Logger         *slog.Logger
	Metrics        Metrics
}

// Server accepts WebSocket connections and relays their frames through a
// gate.Session.
type Server struct {
	cfg      ServerConfig
	logger   *slog.Logger
	metrics  Metrics
	tracer   trace.Tracer
	sessions *gate.Registry

	mu       sync.RWMutex
	listener net.Listener
	running  atomic.Bool
	conns    sync.WaitGroup
}

// NewServer creates a Server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Authorizer == nil {
		return nil, oops.Code("RELAY_CONFIG_INVALID").Errorf("authorizer is required")
	}
	if cfg.Connect == nil {
		return nil, oops.Code("RELAY_CONFIG_INVALID").Errorf("connector is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Schema == nil {
		cfg.Schema = syncpeer.ClientSchema
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	return &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		tracer:   otel.Tracer("github.com/holomush/syncgate/internal/relay"),
		sessions: gate.NewRegistry(),
	}, nil
}

// Sessions returns the number of live sessions.
func (s *Server) Sessions() int { return s.sessions.Len() }

// Ready reports whether Run is accepting connections.
func (s *Server) Ready() bool { return s.running.Load() }

// Addr returns the listen address, or "" before Run has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ServeHTTP authorizes, upgrades and serves one connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.conns.Add(1)
	defer s.conns.Done()

	connID := ids.New()
	logger := s.logger.With("conn_id", connID.String(), "remote_addr", r.RemoteAddr)
	ctx, span := s.tracer.Start(r.Context(), "syncgate.connection",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("syncgate.conn_id", connID.String()),
			attribute.String("syncgate.policy", string(s.cfg.Authorizer.Policy())),
		))
	defer span.End()

	initial, err := s.cfg.Authorizer.Authorize(ctx, r)
	if err != nil {
		var rej *Rejection
		if !errors.As(err, &rej) {
			rej = &Rejection{Status: http.StatusInternalServerError, Reason: http.StatusText(http.StatusInternalServerError), Err: err}
		}
		result := ResultRejected
		if rej.Status != http.StatusUnauthorized {
			result = ResultError
		}
		s.metrics.ConnectionHandled(result)
		span.SetAttributes(attribute.Int("http.response.status_code", rej.Status))
		span.SetStatus(codes.Error, rej.Reason)
		http.Error(w, rej.Reason, rej.Status)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: s.cfg.OriginPatterns,
		// Browser clients live on other origins; the token is the check.
		InsecureSkipVerify: len(s.cfg.OriginPatterns) == 0,
	})
	if err != nil {
		s.metrics.ConnectionHandled(ResultError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "upgrade failed")
		errutil.LogWarn(ctx, logger, "websocket upgrade failed", err)
		return
	}
	defer conn.CloseNow() //nolint:errcheck // best effort after the read loop ends
	conn.SetReadLimit(s.cfg.ReadLimit)
	s.metrics.ConnectionHandled(ResultAccepted)

	peer := s.cfg.Connect(ctx, syncpeer.OutboundFunc(func(ctx context.Context, frame []byte) error {
		wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
		defer cancel()
		return conn.Write(wctx, websocket.MessageBinary, frame)
	}))
	defer peer.Close()

	sess, err := gate.NewSession(ctx, gate.Config{
		Verifier: s.cfg.Authorizer.Verifier(),
		Core:     peer,
		Schema:   s.cfg.Schema,
		Initial:  initial,
		ID:       connID,
		Logger:   logger,
		Metrics:  s.metrics,
	})
	if err != nil {
		errutil.LogErrorContext(ctx, logger, "session setup failed", err)
		_ = conn.Close(websocket.StatusInternalError, "session setup failed")
		return
	}
	release := s.sessions.Add(sess)
	defer release()

	logger.InfoContext(ctx, "connection accepted", "state", initial.String())
	s.readLoop(sess, conn, logger)
}

func (s *Server) readLoop(sess *gate.Session, conn *websocket.Conn, logger *slog.Logger) {
	ctx := sess.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch status := websocket.CloseStatus(err); {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				logger.InfoContext(ctx, "connection closed", "status", int(status))
			case ctx.Err() != nil:
				logger.InfoContext(ctx, "connection closed by server")
			default:
				errutil.LogWarn(ctx, logger, "connection read failed", err)
			}
			return
		}
		if typ != websocket.MessageBinary {
			logger.DebugContext(ctx, "ignoring text frame", "bytes", len(data))
			continue
		}
		sess.Handle(data)
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
// On shutdown every open session is closed.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return oops.Code("RELAY_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener. It takes ownership of listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		_ = listener.Close()
		return oops.Code("RELAY_ALREADY_RUNNING").Errorf("relay server already running")
	}
	defer s.running.Store(false)

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	// Connection contexts outlive ctx until shutdown starts, then end together.
	baseCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()
	httpSrv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()
	s.logger.Info("relay server started", "addr", listener.Addr().String(), "policy", string(s.cfg.Authorizer.Policy()))

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	s.running.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		errutil.LogWarn(ctx, s.logger, "relay shutdown incomplete", err)
	}
	// Upgraded connections are hijacked and outlive Shutdown.
	cancelConns()
	s.sessions.CloseAll()
	s.conns.Wait()
	s.logger.Info("relay server stopped")

	if serveErr != nil {
		return oops.Code("RELAY_SERVE_FAILED").Wrap(serveErr)
	}
	return nil
}
