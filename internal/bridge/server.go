// Package bridge serves a synchronized document to browser surfaces over
// websockets. Inbound envelopes become editor commands and controller deltas
// are broadcast to every connected surface.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goliatone/go-mdsync/internal/commands/editor"
	"github.com/goliatone/go-mdsync/internal/controller"
	"github.com/goliatone/go-mdsync/internal/logging"
	"github.com/goliatone/go-mdsync/internal/view"
	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

// ErrNotBound is returned for requests received before Bind.
var ErrNotBound = errors.New("bridge: no document bound")

const (
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultSendBuffer = 64
	maxMessageSize    = 1 << 20
)

// Session is the document a bridge serves.
type Session interface {
	editor.Session
	Model() *view.Model
	Version() int64
}

// Server is an http.Handler speaking the bridge protocol. It also implements
// controller.ViewListener so it can be handed to the controller it serves.
type Server struct {
	logger     interfaces.Logger
	provider   interfaces.LoggerProvider
	upgrader   websocket.Upgrader
	writeWait  time.Duration
	pongWait   time.Duration
	sendBuffer int
	registry   editor.CommandRegistry

	mu       sync.RWMutex
	session  Session
	handlers *editor.HandlerSet
	clients  map[*client]struct{}
}

var _ controller.ViewListener = (*Server)(nil)

// Option customises a Server.
type Option func(*Server)

// WithLoggerProvider sets the provider for bridge and command loggers.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(s *Server) {
		s.provider = provider
	}
}

// WithCheckOrigin overrides the upgrader origin check.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = check
	}
}

// WithSendBuffer sets how many outbound messages may queue per surface
// before it is dropped as too slow.
func WithSendBuffer(size int) Option {
	return func(s *Server) {
		if size > 0 {
			s.sendBuffer = size
		}
	}
}

// WithCommandRegistry registers the editor handlers built on Bind.
func WithCommandRegistry(reg editor.CommandRegistry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// NewServer builds an unbound server.
func NewServer(opts ...Option) *Server {
	s := &Server{
		writeWait:  defaultWriteWait,
		pongWait:   defaultPongWait,
		sendBuffer: defaultSendBuffer,
		clients:    make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = logging.BridgeLogger(s.provider)
	return s
}

// Bind attaches session and builds its editor command handlers.
func (s *Server) Bind(session Session) error {
	handlers, err := editor.RegisterEditorCommands(s.registry, session, s.provider)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.session = session
	s.handlers = handlers
	s.mu.Unlock()
	return nil
}

// OnViewModelUpdated broadcasts delta to every surface.
func (s *Server) OnViewModelUpdated(delta view.Delta) {
	d := delta
	s.broadcast(Outbound{Type: TypeDelta, Version: delta.Version, Delta: &d})
}

// OnError broadcasts a controller failure to every surface.
func (s *Server) OnError(kind controller.ErrorKind, detail string) {
	s.broadcast(Outbound{
		Type:    TypeError,
		Version: s.version(),
		Error:   &ErrorPayload{Kind: kind, Message: detail},
	})
}

// Clients returns the number of connected surfaces.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request and serves one surface until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("bridge.upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan Outbound, s.sendBuffer), done: make(chan struct{})}
	s.register(c)
	s.logger.Info("bridge.client.connected", "remote", r.RemoteAddr, "clients", s.Clients())

	ctx, cancel := context.WithCancel(r.Context())
	go s.writeLoop(c)
	s.enqueue(c, s.snapshot(""))
	s.readLoop(ctx, c)
	cancel()
	c.inflight.Wait()

	s.unregister(c)
	s.logger.Info("bridge.client.disconnected", "remote", r.RemoteAddr, "clients", s.Clients())
}

// Close disconnects every surface.
func (s *Server) Close() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("bridge.read_failed", "error", err)
			}
			return
		}
		s.handle(ctx, c, raw)
	}
}

// handle queues the request on the session in read order and waits for its
// outcome off the read loop, so requests read together share a pass.
func (s *Server) handle(ctx context.Context, c *client, raw []byte) {
	if err := ValidateEnvelope(raw); err != nil {
		s.logger.Debug("bridge.envelope.rejected", "error", err)
		s.enqueue(c, s.failure("", err))
		return
	}
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		s.enqueue(c, s.failure("", &EnvelopeError{Cause: err}))
		return
	}

	s.mu.RLock()
	handlers, session := s.handlers, s.session
	s.mu.RUnlock()
	if handlers == nil {
		s.enqueue(c, s.failure(in.RequestID, ErrNotBound))
		return
	}
	if in.Type == TypeSnapshot {
		s.enqueue(c, s.snapshot(in.RequestID))
		return
	}

	var outcome editor.Outcome
	sink := func(o editor.Outcome) { outcome = o }
	var run func() error
	switch in.Type {
	case TypeOperation:
		run = queued(ctx, session, editor.SubmitOperationCommand{
			RequestID:   in.RequestID,
			BaseVersion: in.BaseVersion,
			Operation:   *in.Operation,
			Selection:   in.Selection,
			Result:      sink,
		}, handlers.Submit.Execute)
	case TypeUndo:
		run = queued(ctx, session, editor.UndoCommand{RequestID: in.RequestID, Result: sink}, handlers.Undo.Execute)
	case TypeRedo:
		run = queued(ctx, session, editor.RedoCommand{RequestID: in.RequestID, Result: sink}, handlers.Redo.Execute)
	case TypeExternalChange:
		run = queued(ctx, session, editor.ExternalChangeCommand{
			RequestID:   in.RequestID,
			Text:        in.Text,
			BaseVersion: in.BaseVersion,
			Result:      sink,
		}, handlers.External.Execute)
	default:
		return
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if err := run(); err != nil {
			s.enqueue(c, s.failure(in.RequestID, err))
			return
		}
		s.enqueue(c, Outbound{Type: TypeAck, RequestID: in.RequestID, Version: outcome.Version})
	}()
}

type queueable[T any] interface {
	Validate() error
	Queue(session editor.Session) T
}

// queued enqueues a valid cmd right away. An invalid one is left for exec to
// reject with its validation error.
func queued[T queueable[T]](ctx context.Context, session editor.Session, cmd T, exec func(context.Context, T) error) func() error {
	if cmd.Validate() == nil {
		cmd = cmd.Queue(session)
	}
	return func() error {
		return exec(ctx, cmd)
	}
}

func (s *Server) failure(requestID string, err error) Outbound {
	return Outbound{Type: TypeError, RequestID: requestID, Version: s.version(), Error: errorPayload(err)}
}

func (s *Server) snapshot(requestID string) Outbound {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return s.failure(requestID, ErrNotBound)
	}
	model := session.Model()
	out := Outbound{Type: TypeSnapshot, RequestID: requestID, Model: model}
	if model != nil {
		out.Version = model.Version
	}
	return out
}

func (s *Server) version() int64 {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return 0
	}
	return session.Version()
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
}

func (s *Server) broadcast(msg Outbound) {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	for _, c := range clients {
		s.enqueue(c, msg)
	}
}

// enqueue never blocks. A surface whose buffer is full is disconnected and
// is expected to reconnect for a fresh snapshot.
func (s *Server) enqueue(c *client, msg Outbound) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		s.logger.Warn("bridge.client.too_slow", "dropped_type", msg.Type, "version", msg.Version)
		c.close()
	}
}

func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(s.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.writeWait))
			_ = c.conn.Close()
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				s.logger.Warn("bridge.write_failed", "type", msg.Type, "error", err)
				c.close()
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeWait)); err != nil {
				c.close()
			}
		}
	}
}

type client struct {
	conn     *websocket.Conn
	send     chan Outbound
	done     chan struct{}
	once     sync.Once
	inflight sync.WaitGroup
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}
