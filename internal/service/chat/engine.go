package chat

import (
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/speaco/backend/internal/model/chat"
	"github.com/zhouzirui/speaco/backend/internal/protocol"
)

// Transport delivers encoded events to connections and closes them.
type Transport interface {
	Send(sessionID string, payload []byte) error
	Terminate(sessionID string)
}

// Persister receives the final state on shutdown. Implementations must not fail loudly.
type Persister interface {
	Save(snapshot chat.Snapshot)
}

// Option configures an Engine.
type Option interface {
	apply(*options)
}

type optionFunc func(o *options)

func (f optionFunc) apply(o *options) { f(o) }

type options struct {
	limits    protocol.Limits
	logger    *zap.Logger
	random    io.Reader
	now       func() time.Time
	persister Persister
}

// WithLimits overrides protocol.DefaultLimits.
func WithLimits(limits protocol.Limits) Option {
	return optionFunc(func(o *options) {
		o.limits = limits
	})
}

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

// WithRandom sets the source of attachment ids.
func WithRandom(random io.Reader) Option {
	return optionFunc(func(o *options) {
		o.random = random
	})
}

// WithClock sets the clock used to timestamp messages.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(o *options) {
		o.now = now
	})
}

// WithPersister registers where the state goes on Shutdown.
func WithPersister(p Persister) Option {
	return optionFunc(func(o *options) {
		o.persister = p
	})
}

// Stats is a point-in-time view of the engine state.
type Stats struct {
	Sessions    int `json:"sessions"`
	Joined      int `json:"joined"`
	Chatters    int `json:"chatters"`
	History     int `json:"history"`
	Attachments int `json:"attachments"`
}

// Engine owns all chat state and processes events one at a time.
type Engine struct {
	mu sync.Mutex

	transport Transport
	codec     *protocol.Codec
	logger    *zap.Logger
	now       func() time.Time
	persister Persister

	registry    *Registry
	history     *History
	attachments *AttachmentStore

	terminated map[string]struct{}
	closed     bool
}

// NewEngine returns an engine with empty state that talks to clients through transport.
func NewEngine(transport Transport, opts ...Option) *Engine {
	o := options{
		limits: protocol.DefaultLimits(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt.apply(&o)
	}

	attachments := NewAttachmentStore(o.random)
	return &Engine{
		transport:   transport,
		codec:       protocol.NewCodec(o.limits),
		logger:      o.logger,
		now:         o.now,
		persister:   o.persister,
		registry:    NewRegistry(o.limits.NicknameLength),
		history:     NewHistory(o.limits.HistorySize, attachments),
		attachments: attachments,
		terminated:  make(map[string]struct{}),
	}
}

// Limits returns the limits the engine enforces.
func (e *Engine) Limits() protocol.Limits {
	return e.codec.Limits()
}

// Restore replaces history, attachments and chatter records with snapshot.
func (e *Engine) Restore(snapshot chat.Snapshot) {
	snapshot = snapshot.Normalize()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.attachments.Restore(snapshot.Attachments)
	e.history.Restore(snapshot.History)
	e.registry.RestoreChatters(snapshot.ChatterData)

	e.logger.Info("state restored",
		zap.Int("chatters", len(snapshot.ChatterData)),
		zap.Int("history", e.history.Len()),
		zap.Int("attachments", e.attachments.Len()),
	)
}

// Snapshot copies the persistent part of the state.
func (e *Engine) Snapshot() chat.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Engine) snapshot() chat.Snapshot {
	return chat.Snapshot{
		ChatterData: e.registry.Chatters(),
		History:     e.history.Messages(),
		Attachments: e.attachments.Snapshot(),
	}
}

// Stats reports collection sizes.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Sessions:    e.registry.Len(),
		Joined:      len(e.registry.Authorized()),
		Chatters:    e.registry.ChatterCount(),
		History:     e.history.Len(),
		Attachments: e.attachments.Len(),
	}
}

// Connect registers a new unauthenticated session.
// After Shutdown the connection is refused.
func (e *Engine) Connect(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		e.transport.Terminate(sessionID)
		return
	}
	e.registry.Connect(sessionID)
	e.logger.Debug("session connected", zap.String("session", sessionID))
}

// Handle processes one inbound frame. Any failure is fatal to the session.
func (e *Engine) Handle(sessionID string, frame []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.registry.Get(sessionID)
	if !ok {
		return
	}
	if _, gone := e.terminated[sessionID]; gone {
		return
	}

	envelope, err := e.codec.Decode(frame)
	if err != nil {
		e.reject(session, err)
		return
	}

	e.logger.Debug("event received",
		zap.String("session", sessionID),
		zap.String("nickname", session.Nickname()),
		zap.String("event", string(envelope.Type)),
	)

	if err := e.dispatch(session, envelope); err != nil {
		e.reject(session, err)
	}
}

// Abort reports a transport-level failure to the session and terminates it.
func (e *Engine) Abort(sessionID string, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.registry.Get(sessionID)
	if !ok {
		return
	}
	if _, gone := e.terminated[sessionID]; gone {
		return
	}
	e.reject(session, &protocol.EventError{Kind: protocol.ErrProtocol, Message: message})
}

// Disconnect forgets the session and announces the departure of joined chatters.
func (e *Engine) Disconnect(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.terminated, sessionID)
	nickname, joined := e.registry.Leave(sessionID)
	e.logger.Debug("session disconnected", zap.String("session", sessionID), zap.String("nickname", nickname))
	if joined && !e.closed {
		e.announce(nickname + " left")
	}
}

// Shutdown announces the shutdown, persists the state and says bye to every session.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.announce("The server shut down")
	if e.persister != nil {
		e.persister.Save(e.snapshot())
	}
	e.closed = true

	for _, session := range e.registry.All() {
		e.send(session, protocol.EventBye, protocol.Bye{})
		e.transport.Terminate(session.ID)
	}
	e.logger.Info("engine stopped", zap.Int("sessions", e.registry.Len()))
}

func (e *Engine) dispatch(session *Session, envelope protocol.Envelope) error {
	if envelope.Type != protocol.EventJoin && !session.Authorized() {
		return protocol.ErrNotAuthorized
	}

	switch envelope.Type {
	case protocol.EventJoin:
		return e.onJoin(session, envelope)
	case protocol.EventMessage:
		return e.onMessage(session, envelope)
	case protocol.EventEditMessage:
		return e.onEditMessage(session, envelope)
	case protocol.EventDeleteMessage:
		return e.onDeleteMessage(session, envelope)
	case protocol.EventAddAttachment:
		return e.onAddAttachment(session, envelope)
	case protocol.EventFetchAttachment:
		return e.onFetchAttachment(session, envelope)
	default:
		return protocol.ErrUnknownEventType
	}
}

// reject sends the error event and terminates the session.
func (e *Engine) reject(session *Session, err error) {
	message := "internal server error"
	var eventErr *protocol.EventError
	if errors.As(err, &eventErr) {
		message = eventErr.Message
		e.logger.Info("session rejected",
			zap.String("session", session.ID),
			zap.String("nickname", session.Nickname()),
			zap.Error(err),
		)
	} else {
		e.logger.Error("event failed",
			zap.String("session", session.ID),
			zap.String("nickname", session.Nickname()),
			zap.Error(err),
		)
	}

	e.send(session, protocol.EventErrorMessage, protocol.Error{Message: message})
	e.terminated[session.ID] = struct{}{}
	e.transport.Terminate(session.ID)
}

// announce posts a system message.
func (e *Engine) announce(text string) {
	e.post(chat.NewSystemMessage(text, e.now()))
}

// post commits message to the history before fanning it out.
func (e *Engine) post(message chat.Message) {
	e.history.Append(message)
	e.broadcast(protocol.EventMessage, message)
}

// broadcast encodes once and sends to every joined session. Send failures are skipped.
func (e *Engine) broadcast(eventType protocol.EventType, payload any) {
	encoded, err := e.codec.Encode(eventType, payload)
	if err != nil {
		e.logger.Error("encode broadcast", zap.String("event", string(eventType)), zap.Error(err))
		return
	}

	for _, session := range e.registry.Authorized() {
		if err := e.transport.Send(session.ID, encoded); err != nil {
			e.logger.Debug("broadcast send failed",
				zap.String("session", session.ID),
				zap.String("event", string(eventType)),
				zap.Error(err),
			)
		}
	}
}

func (e *Engine) send(session *Session, eventType protocol.EventType, payload any) {
	encoded, err := e.codec.Encode(eventType, payload)
	if err != nil {
		e.logger.Error("encode event", zap.String("event", string(eventType)), zap.Error(err))
		return
	}
	if err := e.transport.Send(session.ID, encoded); err != nil {
		e.logger.Debug("send failed",
			zap.String("session", session.ID),
			zap.String("event", string(eventType)),
			zap.Error(err),
		)
	}
}
