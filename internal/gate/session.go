// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/syncgate/internal/auth"
	"github.com/holomush/syncgate/internal/ids"
	"github.com/holomush/syncgate/internal/wire"
	"github.com/holomush/syncgate/pkg/errutil"
)

// SyncCore is the synchronization peer behind the gate.
type SyncCore interface {
	// SendUpdate applies a mutation to entityID.
	SendUpdate(ctx context.Context, entityID string, update []byte) error
	// Deliver hands over a sync core frame exactly as received.
	Deliver(ctx context.Context, raw []byte) error
}

// Config holds a Session's collaborators.
type Config struct {
	Verifier auth.Verifier
	Core     SyncCore
	// Schema decodes frames. Defaults to wire.DefaultSchema.
	Schema *wire.Schema
	// Initial is the starting state. Authenticated is only valid when the
	// connection already presented verified credentials.
	Initial State
	// ID identifies the session in logs. Generated when zero.
	ID      ulid.ULID
	Logger  *slog.Logger
	Metrics Metrics
}

// Session is the gate for one connection.
type Session struct {
	id       ulid.ULID
	verifier auth.Verifier
	core     SyncCore
	schema   *wire.Schema
	logger   *slog.Logger
	metrics  Metrics

	ctx    context.Context
	cancel context.CancelFunc

	// mu serializes Handle. word holds the State plus closedBit; the state
	// part is only written by transition with mu held.
	mu   sync.Mutex
	word atomic.Int32
}

const closedBit int32 = 1 << 8

// NewSession creates a Session. Its context derives from ctx and is
// cancelled by Close.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Verifier == nil {
		return nil, oops.Code("GATE_CONFIG_INVALID").Errorf("verifier is required")
	}
	if cfg.Core == nil {
		return nil, oops.Code("GATE_CONFIG_INVALID").Errorf("sync core is required")
	}
	if cfg.Initial != Unauthenticated && cfg.Initial != Authenticated {
		return nil, oops.Code("GATE_CONFIG_INVALID").
			With("state", int32(cfg.Initial)).
			Errorf("invalid initial state")
	}
	if cfg.Schema == nil {
		cfg.Schema = wire.DefaultSchema
	}
	if cfg.ID == (ulid.ULID{}) {
		cfg.ID = ids.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:       cfg.ID,
		verifier: cfg.Verifier,
		core:     cfg.Core,
		schema:   cfg.Schema,
		logger:   cfg.Logger.With("session_id", cfg.ID.String()),
		metrics:  cfg.Metrics,
		ctx:      sctx,
		cancel:   cancel,
	}
	s.word.Store(int32(cfg.Initial))
	s.metrics.SessionOpened()
	s.logger.DebugContext(sctx, "session opened", "state", cfg.Initial.String())
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() ulid.ULID { return s.id }

// State returns the current state without waiting for an in-flight Handle.
func (s *Session) State() State { return State(s.word.Load() &^ closedBit) }

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.word.Load()&closedBit != 0 }

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// errSessionClosed is returned by transition on a closed session.
var errSessionClosed = errors.New("session is closed")

// transition moves the session to a new state. Callers hold mu. A closed
// session never changes state.
func (s *Session) transition(to State) error {
	from := s.State()
	if !canTransition(from, to) {
		return errInvalidTransition(from, to)
	}
	if !s.word.CompareAndSwap(int32(from), int32(to)) {
		return errSessionClosed
	}
	s.logger.InfoContext(s.ctx, "session state changed", "from", from.String(), "to", to.String())
	return nil
}

// Handle processes one inbound binary frame. It never fails the connection:
// every problem is logged and reported through the returned Outcome.
func (s *Session) Handle(data []byte) Outcome {
	if s.Closed() {
		return OutcomeClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Closed() {
		return OutcomeClosed
	}

	msg, err := s.schema.Decode(data)
	if err != nil {
		var decErr *wire.DecodeError
		attrs := []any{"bytes", len(data)}
		if errors.As(err, &decErr) {
			attrs = append(attrs, "reason", string(decErr.Reason))
		}
		errutil.LogWarn(s.ctx, s.logger, "dropping undecodable frame", err, attrs...)
		s.metrics.MessageHandled(KindInvalid, OutcomeDropped)
		return OutcomeDropped
	}

	var kind string
	var outcome Outcome
	switch m := msg.(type) {
	case wire.Authenticate:
		kind, outcome = KindAuthenticate, s.authenticate(m)
	case wire.SendUpdate:
		kind, outcome = KindSendUpdate, s.sendUpdate(m)
	case wire.Passthrough:
		kind, outcome = KindPassthrough, s.deliver(m)
	default:
		kind, outcome = KindInvalid, OutcomeDropped
	}
	s.metrics.MessageHandled(kind, outcome)
	return outcome
}

func (s *Session) authenticate(m wire.Authenticate) Outcome {
	if s.State() == Authenticated {
		s.logger.DebugContext(s.ctx, "ignoring authenticate on authenticated session")
		return OutcomeIgnored
	}

	ok, err := s.verifier.Verify(s.ctx, m.Username, m.Password)
	if s.Closed() {
		return OutcomeClosed
	}
	if err != nil {
		s.metrics.AuthAttempt(SourceMessage, string(OutcomeError))
		errutil.LogErrorContext(s.ctx, s.logger, "credential verification failed", err,
			"username", m.Username)
		return OutcomeError
	}
	if !ok {
		s.metrics.AuthAttempt(SourceMessage, string(OutcomeRejected))
		s.logger.InfoContext(s.ctx, "authentication rejected", "username", m.Username)
		return OutcomeRejected
	}

	if err := s.transition(Authenticated); err != nil {
		if errors.Is(err, errSessionClosed) {
			return OutcomeClosed
		}
		errutil.LogErrorContext(s.ctx, s.logger, "session transition failed", err)
		return OutcomeError
	}
	s.metrics.AuthAttempt(SourceMessage, string(OutcomeVerified))
	s.logger.InfoContext(s.ctx, "session authenticated", "username", m.Username)
	return OutcomeVerified
}

func (s *Session) sendUpdate(m wire.SendUpdate) Outcome {
	if s.State() != Authenticated {
		s.logger.DebugContext(s.ctx, "dropping update from unauthenticated session", "entity_id", m.EntityID)
		return OutcomeDropped
	}
	if s.Closed() {
		return OutcomeClosed
	}
	if err := s.core.SendUpdate(s.ctx, m.EntityID, m.Update); err != nil {
		errutil.LogErrorContext(s.ctx, s.logger, "sync core rejected update", err, "entity_id", m.EntityID)
		return OutcomeError
	}
	return OutcomeForwarded
}

func (s *Session) deliver(m wire.Passthrough) Outcome {
	if s.Closed() {
		return OutcomeClosed
	}
	if err := s.core.Deliver(s.ctx, m.Raw); err != nil {
		errutil.LogErrorContext(s.ctx, s.logger, "sync core rejected message", err, "kind", m.Kind)
		return OutcomeError
	}
	return OutcomeForwarded
}

// Close ends the session. It does not wait for an in-flight Handle; that
// call observes the closed flag and forwards nothing further. Safe to call
// more than once.
func (s *Session) Close() {
	for {
		w := s.word.Load()
		if w&closedBit != 0 {
			return
		}
		if s.word.CompareAndSwap(w, w|closedBit) {
			break
		}
	}
	s.cancel()
	s.metrics.SessionClosed()
	s.logger.Debug("session closed", "state", s.State().String())
}
