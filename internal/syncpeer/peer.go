// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package syncpeer

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/syncgate/internal/gate"
	"github.com/holomush/syncgate/internal/ids"
	"github.com/holomush/syncgate/internal/wire"
	"github.com/holomush/syncgate/pkg/errutil"
)

// Client message kinds handled by the peer.
const (
	KindSubscribe   = "subscribe"
	KindUnsubscribe = "unsubscribe"
)

// ClientSchema lists the passthrough kinds a Peer understands.
var ClientSchema = wire.MustSchema(
	wire.KindSpec{Kind: KindSubscribe, Required: []string{wire.FieldEntityID}},
	wire.KindSpec{Kind: KindUnsubscribe, Required: []string{wire.FieldEntityID}},
)

// DefaultOutboxSize is how many live updates may queue for one slow connection.
const DefaultOutboxSize = 256

// Outbound writes frames back to a client.
type Outbound interface {
	Send(ctx context.Context, frame []byte) error
}

// OutboundFunc adapts a function to Outbound.
type OutboundFunc func(ctx context.Context, frame []byte) error

// Send calls f.
func (f OutboundFunc) Send(ctx context.Context, frame []byte) error { return f(ctx, frame) }

// SuperPeer owns the update log and every connected Peer.
type SuperPeer struct {
	store      UpdateStore
	bc         *broadcaster
	logger     *slog.Logger
	outboxSize int

	// mu orders appends against subscriptions so a new subscriber sees
	// every update exactly once, either in its replay or live.
	mu sync.Mutex
}

// Option configures a SuperPeer.
type Option func(*SuperPeer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sp *SuperPeer) { sp.logger = logger }
}

// WithOutboxSize sets the per-connection live update queue length.
func WithOutboxSize(n int) Option {
	return func(sp *SuperPeer) {
		if n > 0 {
			sp.outboxSize = n
		}
	}
}

// NewSuperPeer creates a SuperPeer backed by store.
func NewSuperPeer(store UpdateStore, opts ...Option) *SuperPeer {
	sp := &SuperPeer{
		store:      store,
		logger:     slog.New(slog.DiscardHandler),
		outboxSize: DefaultOutboxSize,
	}
	for _, opt := range opts {
		opt(sp)
	}
	sp.bc = newBroadcaster(sp.logger)
	return sp
}

// Subscribers returns how many peers follow entityID.
func (sp *SuperPeer) Subscribers(entityID string) int {
	return sp.bc.subscribers(entityID)
}

// Connect attaches a new Peer that writes to out until ctx ends or the Peer
// is closed.
func (sp *SuperPeer) Connect(ctx context.Context, out Outbound) *Peer {
	pctx, cancel := context.WithCancel(ctx)
	id := ids.New()
	p := &Peer{
		sp:     sp,
		out:    out,
		sub:    &subscriber{id: id, ch: make(chan []byte, sp.outboxSize)},
		subs:   make(map[string]struct{}),
		ctx:    pctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: sp.logger.With("peer_id", id.String()),
	}
	go p.pump()
	return p
}

// Peer is one connection's view of the SuperPeer. It implements gate.SyncCore.
type Peer struct {
	sp     *SuperPeer
	out    Outbound
	sub    *subscriber
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

var _ gate.SyncCore = (*Peer)(nil)

// ID returns the peer identifier, recorded as the author of its updates.
func (p *Peer) ID() ulid.ULID { return p.sub.id }

// SendUpdate appends update to entityID's log and pushes it to every other
// subscriber.
func (p *Peer) SendUpdate(ctx context.Context, entityID string, update []byte) error {
	frame, err := wire.EncodeServerUpdate(entityID, update)
	if err != nil {
		return err
	}

	p.sp.mu.Lock()
	defer p.sp.mu.Unlock()
	if _, err := p.sp.store.Append(ctx, entityID, update, p.sub.id.String()); err != nil {
		return oops.With("peer_id", p.sub.id.String()).Wrap(err)
	}
	p.sp.bc.broadcast(entityID, frame, p.sub.id)
	return nil
}

// Deliver handles a subscribe or unsubscribe frame.
func (p *Peer) Deliver(ctx context.Context, raw []byte) error {
	msg, err := ClientSchema.Decode(raw)
	if err != nil {
		return oops.Code("PEER_BAD_MESSAGE").Wrap(err)
	}
	pt, ok := msg.(wire.Passthrough)
	if !ok {
		return oops.Code("PEER_BAD_MESSAGE").
			With("type", msg.Type()).
			Errorf("message %q is not for the sync core", msg.Type())
	}

	switch pt.Kind {
	case KindSubscribe:
		return p.subscribe(ctx, pt.EntityID)
	case KindUnsubscribe:
		p.unsubscribe(pt.EntityID)
		return nil
	default:
		return oops.Code("PEER_BAD_MESSAGE").With("type", pt.Kind).Errorf("unhandled kind %q", pt.Kind)
	}
}

func (p *Peer) subscribe(ctx context.Context, entityID string) error {
	p.mu.Lock()
	if _, ok := p.subs[entityID]; ok {
		p.mu.Unlock()
		return nil
	}
	p.subs[entityID] = struct{}{}
	p.mu.Unlock()

	p.sp.mu.Lock()
	history, err := p.sp.store.List(ctx, entityID)
	if err != nil {
		p.sp.mu.Unlock()
		p.mu.Lock()
		delete(p.subs, entityID)
		p.mu.Unlock()
		return oops.With("entity_id", entityID).Wrap(err)
	}
	p.sp.bc.subscribe(entityID, p.sub)
	p.sp.mu.Unlock()

	// Live updates may interleave with the replay; clients merge them.
	for _, u := range history {
		frame, err := wire.EncodeServerUpdate(entityID, u.Payload)
		if err != nil {
			return err
		}
		if err := p.out.Send(ctx, frame); err != nil {
			return oops.Code("PEER_SEND_FAILED").With("entity_id", entityID).Wrap(err)
		}
	}
	p.logger.DebugContext(ctx, "subscribed", "entity_id", entityID, "replayed", len(history))
	return nil
}

func (p *Peer) unsubscribe(entityID string) {
	p.mu.Lock()
	_, ok := p.subs[entityID]
	delete(p.subs, entityID)
	p.mu.Unlock()
	if ok {
		p.sp.bc.unsubscribe(entityID, p.sub.id)
	}
}

// Subscriptions returns the followed entities in sorted order.
func (p *Peer) Subscriptions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.subs))
	for e := range p.subs {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func (p *Peer) pump() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case frame := <-p.sub.ch:
			if err := p.out.Send(p.ctx, frame); err != nil {
				if p.ctx.Err() == nil {
					errutil.LogWarn(p.ctx, p.logger, "stopping live updates", err)
				}
				return
			}
		}
	}
}

// Close drops every subscription and stops the writer. Safe to call more than once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		for _, entityID := range p.Subscriptions() {
			p.unsubscribe(entityID)
		}
		p.cancel()
		<-p.done
	})
}
