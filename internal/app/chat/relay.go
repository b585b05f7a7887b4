/*
Package chat contains the connection-event state machine of the relay.

This file defines the Relay. It tracks every open connection, binds
connections to identities through the presence registry, persists messages
before delivering them, and fans frames out to the right connections.
*/
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"relaychat/internal/app/presence"
	"relaychat/internal/app/store"
	"relaychat/internal/app/user"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/metrics"
)

const (
	// MaxContentBytes is the largest message content accepted, in bytes.
	MaxContentBytes = 5000

	// WsCloseCodeSessionKicked tells a client its identity was taken over by a newer connection.
	WsCloseCodeSessionKicked = 4001

	// WsCloseCodeRegisterTimeout tells a client it did not register in time.
	WsCloseCodeRegisterTimeout = 4008
)

var (
	// ErrRelayClosed is returned by Connect after Shutdown.
	ErrRelayClosed = errors.New("relay is shut down")

	// ErrNotConnected is returned for events from a peer that is not connected.
	ErrNotConnected = errors.New("connection is not open")
)

// Peer is one live connection as seen by the relay.
type Peer interface {
	// ID is unique for the lifetime of the process.
	ID() presence.ConnID

	// Deliver queues a frame without blocking. It reports false when the frame
	// was not queued because the peer is closed or its buffer is full.
	Deliver(frame []byte) bool

	// Close ends the connection with a WebSocket close code. Repeated calls are ignored.
	Close(code int, reason string)

	// AuthIdentity returns the identity proven by the transport, if any.
	AuthIdentity() (user.Identity, bool)
}

// DuplicatePolicy decides what happens when an identity that is already online registers again.
type DuplicatePolicy string

const (
	// PolicyReplace moves the identity to the new connection; the old one stays open, unregistered.
	PolicyReplace DuplicatePolicy = "replace"

	// PolicyKick moves the identity and closes the old connection with WsCloseCodeSessionKicked.
	PolicyKick DuplicatePolicy = "kick"

	// PolicyReject refuses the newcomer with ErrIdentityTaken.
	PolicyReject DuplicatePolicy = "reject"
)

// ParseDuplicatePolicy validates a policy name. An empty name selects PolicyReplace.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyReplace, nil
	case PolicyReplace, PolicyKick, PolicyReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate identity policy %q", s)
	}
}

// State is the lifecycle state of a connection.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateRegistered:
		return "registered"
	default:
		return "disconnected"
	}
}

// Options tunes a Relay. The zero value is usable.
type Options struct {
	// DuplicatePolicy defaults to PolicyReplace.
	DuplicatePolicy DuplicatePolicy

	// RegisterTimeout closes connections that have not registered in time. Zero disables it.
	RegisterTimeout time.Duration

	// StoreTimeout bounds each Append. Zero leaves the caller's context untouched.
	StoreTimeout time.Duration

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

type peerEntry struct {
	peer Peer

	// registerTimer is nil when RegisterTimeout is disabled.
	registerTimer *time.Timer
}

// Relay routes events between connections.
type Relay struct {
	registry *presence.Registry
	store    store.MessageStore
	opts     Options
	metrics  *metrics.Metrics

	// mu guards peers and closed. Lock order: mu before the registry's lock.
	mu     sync.RWMutex
	peers  map[presence.ConnID]*peerEntry
	closed bool

	logger zerolog.Logger
}

// NewRelay builds a Relay over the given registry and store.
func NewRelay(registry *presence.Registry, messageStore store.MessageStore, opts Options) *Relay {
	if opts.DuplicatePolicy == "" {
		opts.DuplicatePolicy = PolicyReplace
	}

	return &Relay{
		registry: registry,
		store:    messageStore,
		opts:     opts,
		metrics:  opts.Metrics,
		peers:    make(map[presence.ConnID]*peerEntry),
		logger:   logx.Component("relay"),
	}
}

// Connect adds p as an unregistered connection.
func (r *Relay) Connect(p Peer) error {
	entry := &peerEntry{peer: p}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRelayClosed
	}
	if _, exists := r.peers[p.ID()]; exists {
		r.mu.Unlock()
		return fmt.Errorf("connection %s is already connected", p.ID())
	}

	if r.opts.RegisterTimeout > 0 {
		entry.registerTimer = time.AfterFunc(r.opts.RegisterTimeout, func() {
			r.expireUnregistered(p)
		})
	}

	r.peers[p.ID()] = entry
	total := len(r.peers)
	r.mu.Unlock()

	r.metrics.ConnectionOpened()
	r.logger.Debug().
		Str("conn_id", string(p.ID())).
		Int("connections", total).
		Msg("Connection opened.")

	return nil
}

func (r *Relay) expireUnregistered(p Peer) {
	if r.State(p.ID()) != StateConnected {
		return
	}

	r.logger.Info().
		Str("conn_id", string(p.ID())).
		Dur("timeout", r.opts.RegisterTimeout).
		Msg("Closing connection that never registered.")

	p.Close(WsCloseCodeRegisterTimeout, "registration timeout")
}

// HandleFrame decodes a raw inbound frame and handles it. Malformed frames are
// answered with an error frame; the connection stays open.
func (r *Relay) HandleFrame(ctx context.Context, p Peer, data []byte) error {
	event, tempID, err := DecodeEvent(data)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("conn_id", string(p.ID())).
			Int("frame_bytes", len(data)).
			Msg("Client sent invalid event")

		r.metrics.EventReceived("invalid")
		r.deliver(p, errorFrame(err, tempID))
		return err
	}

	return r.Handle(ctx, p, event)
}

// Handle applies one event from p. Failures are reported to p as an error
// frame and also returned.
func (r *Relay) Handle(ctx context.Context, p Peer, event Event) error {
	r.metrics.EventReceived(string(event.Type()))

	var (
		err    error
		tempID string
	)

	switch ev := event.(type) {
	case RegisterIdentity:
		err = r.register(p, ev)

	case SendMessage:
		tempID = ev.TempID
		err = r.sendMessage(ctx, p, ev)

	case Typing:
		err = r.typing(p, ev)

	default:
		err = errs.NewError(errs.ErrUnsupportedEventType, event.Type())
	}

	if err != nil {
		r.deliver(p, errorFrame(err, tempID))
	}

	return err
}

func (r *Relay) register(p Peer, ev RegisterIdentity) error {
	if err := ev.Identity.Validate(); err != nil {
		return errs.NewError(errs.ErrIdentityInvalid)
	}

	if authIdentity, ok := p.AuthIdentity(); ok && authIdentity != ev.Identity {
		return errs.NewError(errs.ErrIdentityMismatch)
	}

	var displaced Peer

	r.mu.RLock()
	if _, connected := r.peers[p.ID()]; !connected {
		r.mu.RUnlock()
		return ErrNotConnected
	}

	switch r.opts.DuplicatePolicy {
	case PolicyReject:
		if !r.registry.RegisterIfAbsent(ev.Identity, p.ID()) {
			r.mu.RUnlock()
			return errs.NewError(errs.ErrIdentityTaken)
		}

	default:
		previous, replaced := r.registry.Register(ev.Identity, p.ID())
		if replaced {
			if entry, ok := r.peers[previous]; ok {
				displaced = entry.peer
			}
		}
	}
	r.mu.RUnlock()

	logger := r.logger.With().
		Str("conn_id", string(p.ID())).
		Str("identity", ev.Identity.String()).
		Logger()

	if displaced != nil {
		logger.Warn().
			Str("previous_conn_id", string(displaced.ID())).
			Str("policy", string(r.opts.DuplicatePolicy)).
			Msg("Identity already connected. Moving it to the new connection.")

		if r.opts.DuplicatePolicy == PolicyKick {
			displaced.Deliver(errorFrame(errs.NewError(errs.ErrSessionKicked), ""))
			displaced.Close(WsCloseCodeSessionKicked, "Session replaced by new connection. Check other tabs.")
		}
	}

	logger.Info().Msg("Identity registered.")

	r.broadcastOnline()
	return nil
}

func (r *Relay) sendMessage(ctx context.Context, p Peer, ev SendMessage) error {
	if err := ev.Sender.Validate(); err != nil {
		return errs.NewError(errs.ErrInvalidEventPayload, "sender is required")
	}

	registered, ok := r.registry.IdentityOf(p.ID())
	if !ok {
		return errs.NewError(errs.ErrNotRegistered)
	}

	if ev.Sender != registered {
		return errs.NewError(errs.ErrIdentityMismatch)
	}

	if ev.Recipient != nil {
		if err := ev.Recipient.Validate(); err != nil {
			return errs.NewError(errs.ErrIdentityInvalid)
		}
	}

	if len(ev.Content) > MaxContentBytes {
		return errs.NewError(errs.ErrMessageContentTooLong)
	}

	if r.opts.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.StoreTimeout)
		defer cancel()
	}

	draft := store.NewDraft(ev.Sender, ev.Recipient, ev.Content)

	msg, err := r.store.Append(ctx, draft)
	if err != nil {
		r.metrics.StorageFailed()
		r.logger.Error().
			Err(err).
			Str("conn_id", string(p.ID())).
			Str("sender", ev.Sender.String()).
			Str("conversation_id", draft.ConversationID.String()).
			Msg("Failed to persist message. Nothing was delivered.")

		return errs.NewError(errs.ErrStorageFailed)
	}

	r.dispatchMessage(p, msg, ev.TempID)
	r.metrics.MessageRelayed(msg.Recipient != nil)

	return nil
}

// dispatchMessage delivers a persisted message. The sender's copy carries tempID.
func (r *Relay) dispatchMessage(sender Peer, msg store.Message, tempID string) {
	ownFrame, err := messageFrame(msg, tempID)
	if err != nil {
		r.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Error marshaling message frame.")
		return
	}

	frame := ownFrame
	if tempID != "" {
		if frame, err = messageFrame(msg, ""); err != nil {
			r.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Error marshaling message frame.")
			return
		}
	}

	if msg.Recipient == nil {
		for _, p := range r.snapshot() {
			if p.ID() == sender.ID() {
				r.deliver(p, ownFrame)
				continue
			}
			r.deliver(p, frame)
		}
		return
	}

	r.deliver(sender, ownFrame)

	if recipient, ok := r.peerFor(*msg.Recipient); ok && recipient.ID() != sender.ID() {
		r.deliver(recipient, frame)
	}
}

func (r *Relay) typing(p Peer, ev Typing) error {
	registered, ok := r.registry.IdentityOf(p.ID())
	if !ok {
		return errs.NewError(errs.ErrNotRegistered)
	}

	if ev.Username != registered {
		return errs.NewError(errs.ErrIdentityMismatch)
	}

	frame, err := typingFrame(ev)
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}

	if ev.Recipient != nil {
		if recipient, ok := r.peerFor(*ev.Recipient); ok {
			r.deliver(recipient, frame)
		}
		return nil
	}

	for _, other := range r.snapshot() {
		if other.ID() != p.ID() {
			r.deliver(other, frame)
		}
	}

	return nil
}

// Disconnect removes p. If p held an identity, the new online list is
// broadcast to the remaining connections. Calling it twice is harmless.
func (r *Relay) Disconnect(p Peer) {
	r.mu.Lock()
	entry, ok := r.peers[p.ID()]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.peers, p.ID())
	remaining := len(r.peers)
	r.mu.Unlock()

	if entry.registerTimer != nil {
		entry.registerTimer.Stop()
	}

	r.metrics.ConnectionClosed()

	identity, removed := r.registry.Unregister(p.ID())
	if !removed {
		r.logger.Debug().
			Str("conn_id", string(p.ID())).
			Int("connections", remaining).
			Msg("Unregistered connection closed.")
		return
	}

	r.logger.Info().
		Str("conn_id", string(p.ID())).
		Str("identity", identity.String()).
		Int("connections", remaining).
		Msg("Connection closed.")

	r.broadcastOnline()
}

// State returns the lifecycle state of a connection.
func (r *Relay) State(id presence.ConnID) State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.peers[id]; !ok {
		return StateDisconnected
	}

	if _, ok := r.registry.IdentityOf(id); ok {
		return StateRegistered
	}
	return StateConnected
}

// Online returns the identities currently registered, sorted.
func (r *Relay) Online() []user.Identity {
	return r.registry.ListOnline()
}

// Connections returns the number of open connections.
func (r *Relay) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.peers)
}

// Shutdown refuses new connections and closes every open one with "going away".
// Connections leave through Disconnect as their read loops end.
func (r *Relay) Shutdown() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	peers := r.snapshot()
	r.logger.Info().Int("connections", len(peers)).Msg("Relay shutting down.")

	for _, p := range peers {
		p.Close(websocket.CloseGoingAway, "server shutting down")
	}
}

func (r *Relay) broadcastOnline() {
	online := r.registry.ListOnline()
	r.metrics.SetOnline(len(online))

	frame, err := onlineUsersFrame(online)
	if err != nil {
		r.logger.Error().Err(err).Msg("Error marshaling online users frame.")
		return
	}

	for _, p := range r.snapshot() {
		r.deliver(p, frame)
	}
}

// deliver queues frame on p. A peer that cannot take the frame is closed;
// its read loop then disconnects it.
func (r *Relay) deliver(p Peer, frame []byte) {
	ok := p.Deliver(frame)
	r.metrics.Delivered(ok)

	if !ok {
		r.logger.Warn().
			Str("conn_id", string(p.ID())).
			Msg("Client send channel full or closed, closing connection.")

		p.Close(websocket.CloseTryAgainLater, "send buffer full")
	}
}

// snapshot copies the open peers so delivery happens outside the lock.
func (r *Relay) snapshot() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.peers))
	for _, entry := range r.peers {
		peers = append(peers, entry.peer)
	}
	return peers
}

// peerFor resolves the live connection of an identity.
func (r *Relay) peerFor(identity user.Identity) (Peer, bool) {
	conn, ok := r.registry.Lookup(identity)
	if !ok {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.peers[conn]
	if !ok {
		return nil, false
	}
	return entry.peer, true
}
