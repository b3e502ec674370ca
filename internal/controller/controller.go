// Package controller keeps a Markdown text and its syntax tree in step. A
// single worker goroutine owns the document: external text changes and
// structured view operations are queued, applied one pass at a time and
// published to the view as incremental deltas.
package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-mdsync/internal/history"
	"github.com/goliatone/go-mdsync/internal/logging"
	"github.com/goliatone/go-mdsync/internal/markdown"
	"github.com/goliatone/go-mdsync/internal/ops"
	"github.com/goliatone/go-mdsync/internal/syntax"
	"github.com/goliatone/go-mdsync/internal/textpatch"
	"github.com/goliatone/go-mdsync/internal/view"
	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

// State reports whether a sync pass is running.
type State int32

const (
	StateIdle State = iota
	StateSyncing
)

func (s State) String() string {
	if s == StateSyncing {
		return "syncing"
	}
	return "idle"
}

// Config tunes queueing and verification.
type Config struct {
	// CoalesceWindow delays each pass so bursts of edits share it.
	CoalesceWindow time.Duration
	// QueueSize bounds queued view requests.
	QueueSize int
	// MaxUndoEntries bounds the undo stack.
	MaxUndoEntries int
	// VerifyRoundTrip checks every serialized text re-parses to itself.
	VerifyRoundTrip bool
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		QueueSize:       256,
		MaxUndoEntries:  history.DefaultMaxEntries,
		VerifyRoundTrip: true,
	}
}

// Document is a consistent snapshot of the synchronized state.
type Document struct {
	ID          uuid.UUID
	Path        string
	Text        string
	Tree        *syntax.Node
	Model       *view.Model
	Version     int64
	FrontMatter map[string]any
	Diagnostics markdown.Diagnostics
}

// Option customises a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithParser replaces the Markdown parser.
func WithParser(parser markdown.Parser) Option {
	return func(c *Controller) {
		if parser != nil {
			c.parser = parser
		}
	}
}

// WithSerializer replaces the canonical serializer.
func WithSerializer(serializer markdown.TreeSerializer) Option {
	return func(c *Controller) {
		if serializer != nil {
			c.serializer = serializer
		}
	}
}

// WithEngine replaces the operation engine.
func WithEngine(engine *ops.Engine) Option {
	return func(c *Controller) {
		if engine != nil {
			c.engine = engine
		}
	}
}

// WithHistory replaces the undo manager.
func WithHistory(manager *history.Manager) Option {
	return func(c *Controller) {
		if manager != nil {
			c.history = manager
		}
	}
}

// WithDocument names the document the controller serves.
func WithDocument(path string, id uuid.UUID) Option {
	return func(c *Controller) {
		c.path = path
		c.id = id
	}
}

type requestKind int

const (
	requestOperation requestKind = iota
	requestUndo
	requestRedo
	requestFlush
)

type request struct {
	kind      requestKind
	op        ops.Operation
	selection *history.Selection
	pending   *Pending
}

type sourceChange struct {
	text    string
	base    int64
	pending *Pending
}

// revision is a committed document state. patch turns the previous
// revision's text into this one.
type revision struct {
	version int64
	text    string
	tree    *syntax.Node
	patch   textpatch.Patch
	source  bool
}

const maxRevisions = 64

// Controller synchronizes one document.
type Controller struct {
	cfg        Config
	host       TextHost
	listener   ViewListener
	parser     markdown.Parser
	serializer markdown.TreeSerializer
	engine     *ops.Engine
	history    *history.Manager
	logger     interfaces.Logger

	id   uuid.UUID
	path string

	mu      sync.Mutex
	queue   []*request
	source  *sourceChange
	started bool
	closed  bool

	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// ctx scopes host calls made by the worker.
	ctx    context.Context
	cancel context.CancelFunc

	state atomic.Int32
	stats counters

	docMu       sync.RWMutex
	text        string
	tree        *syntax.Node
	model       *view.Model
	version     int64
	frontMatter map[string]any
	diagnostics markdown.Diagnostics

	// revisions and sims are only touched by the worker. sims holds, per
	// base version, that version's tree with the operations submitted
	// against it applied.
	revisions []revision
	sims      map[int64]*syntax.Node
}

// New parses text and prepares a controller at version 1. Call Start to begin
// processing; work submitted earlier is queued.
func New(text string, host TextHost, listener ViewListener, cfg Config, opts ...Option) *Controller {
	defaults := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.MaxUndoEntries <= 0 {
		cfg.MaxUndoEntries = defaults.MaxUndoEntries
	}
	if host == nil {
		host = discardHost{}
	}
	if listener == nil {
		listener = discardListener{}
	}

	c := &Controller{
		cfg:        cfg,
		host:       host,
		listener:   listener,
		parser:     markdown.NewGoldmarkParser(markdown.ParseOptions{FrontMatter: true}),
		serializer: markdown.NewSerializer(),
		engine:     ops.NewEngine(),
		logger:     logging.NoOp(),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.history == nil {
		c.history = history.NewManager(cfg.MaxUndoEntries)
	}
	idLabel := ""
	if c.id != uuid.Nil {
		idLabel = c.id.String()
	}
	c.logger = logging.WithDocumentContext(c.logger, c.path, idLabel, "")

	tree, diags := c.parser.Parse(text)
	c.text = text
	c.tree = tree
	c.model = view.Project(tree)
	c.version = 1
	c.model.Version = c.version
	c.frontMatter = decodeFrontMatter(tree)
	c.diagnostics = diags
	c.revisions = []revision{{version: c.version, text: text, tree: tree}}
	c.sims = map[int64]*syntax.Node{}
	logDiagnostics(c.logger, diags)
	return c
}

// Start launches the worker. It is a no-op when already started or closed.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	go c.run()
	c.signal()
}

// Close stops the worker and rejects queued work with ErrClosed.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.closed = true
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })
	if !started {
		c.cancel()
		c.drain(ErrClosed)
		return nil
	}
	select {
	case <-c.stopped:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		return ctx.Err()
	}
}

// Enqueue queues a view operation and returns its pending outcome.
func (c *Controller) Enqueue(op ops.Operation) *Pending {
	return c.push(&request{kind: requestOperation, op: op})
}

// EnqueueWithSelection queues a view operation together with the selection
// the presentation held when it was issued.
func (c *Controller) EnqueueWithSelection(op ops.Operation, selection *history.Selection) *Pending {
	return c.push(&request{kind: requestOperation, op: op, selection: selection})
}

// SubmitOperation queues op and waits for the version that includes it.
func (c *Controller) SubmitOperation(ctx context.Context, op ops.Operation) (int64, error) {
	return c.Enqueue(op).Wait(ctx)
}

// EnqueueUndo queues an undo step behind every earlier view request.
func (c *Controller) EnqueueUndo() *Pending {
	return c.push(&request{kind: requestUndo})
}

// EnqueueRedo queues a redo step behind every earlier view request.
func (c *Controller) EnqueueRedo() *Pending {
	return c.push(&request{kind: requestRedo})
}

// Undo reverts the latest view edit and waits for the resulting version.
func (c *Controller) Undo(ctx context.Context) (int64, error) {
	return c.EnqueueUndo().Wait(ctx)
}

// Redo reapplies the latest undone edit and waits for the resulting version.
func (c *Controller) Redo(ctx context.Context) (int64, error) {
	return c.EnqueueRedo().Wait(ctx)
}

// Flush waits until every view request queued before it has been processed.
func (c *Controller) Flush(ctx context.Context) (int64, error) {
	return c.push(&request{kind: requestFlush}).Wait(ctx)
}

// OnExternalTextChange records a new source text based on the current
// version. Only the latest unprocessed change is kept.
func (c *Controller) OnExternalTextChange(text string) *Pending {
	return c.ExternalChange(text, c.Version())
}

// ExternalChange records a new source text computed against base. A change
// whose base is no longer current is rebased over the edits committed since.
func (c *Controller) ExternalChange(text string, base int64) *Pending {
	pending := newPending()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return resolved(c.Version(), ErrClosed)
	}
	previous := c.source
	c.source = &sourceChange{text: text, base: base, pending: pending}
	c.signal()
	c.mu.Unlock()

	if previous != nil {
		c.stats.discardedSource.Add(1)
		previous.pending.resolve(c.Version(), ErrSuperseded)
		c.logger.Debug("controller.source.superseded", "base", previous.base)
	}
	return pending
}

func (c *Controller) push(req *request) *Pending {
	req.pending = newPending()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		req.pending.resolve(c.Version(), ErrClosed)
		return req.pending
	}
	if len(c.queue) >= c.cfg.QueueSize {
		req.pending.resolve(c.Version(), ErrQueueFull)
		return req.pending
	}
	c.queue = append(c.queue, req)
	c.signal()
	return req.pending
}

// signal wakes the worker. Callers hold c.mu.
func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Version returns the current document version.
func (c *Controller) Version() int64 {
	c.docMu.RLock()
	defer c.docMu.RUnlock()
	return c.version
}

// CurrentText returns the current source text.
func (c *Controller) CurrentText() string {
	c.docMu.RLock()
	defer c.docMu.RUnlock()
	return c.text
}

// Tree returns the current syntax tree. The tree must not be mutated.
func (c *Controller) Tree() *syntax.Node {
	c.docMu.RLock()
	defer c.docMu.RUnlock()
	return c.tree
}

// Model returns the current view model. The model must not be mutated.
func (c *Controller) Model() *view.Model {
	c.docMu.RLock()
	defer c.docMu.RUnlock()
	return c.model
}

// Document returns a consistent snapshot of the synchronized state.
func (c *Controller) Document() Document {
	c.docMu.RLock()
	defer c.docMu.RUnlock()
	return Document{
		ID:          c.id,
		Path:        c.path,
		Text:        c.text,
		Tree:        c.tree,
		Model:       c.model,
		Version:     c.version,
		FrontMatter: c.frontMatter,
		Diagnostics: c.diagnostics,
	}
}

// State reports whether a pass is running.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// CanUndo reports whether an undo step is recorded.
func (c *Controller) CanUndo() bool {
	return c.history.CanUndo()
}

// CanRedo reports whether a redo step is recorded.
func (c *Controller) CanRedo() bool {
	return c.history.CanRedo()
}

func decodeFrontMatter(tree *syntax.Node) map[string]any {
	if tree == nil || tree.Literal == "" {
		return nil
	}
	values, err := markdown.DecodeFrontMatter(tree.Literal)
	if err != nil {
		return nil
	}
	return values
}

func logDiagnostics(logger interfaces.Logger, diags markdown.Diagnostics) {
	for _, diag := range diags {
		logger.Debug("controller.parse.degraded",
			"construct", diag.Construct,
			"start", diag.Span.Start,
			"end", diag.Span.End,
		)
	}
}
