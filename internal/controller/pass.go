package controller

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-mdsync/internal/history"
	"github.com/goliatone/go-mdsync/internal/markdown"
	"github.com/goliatone/go-mdsync/internal/ops"
	"github.com/goliatone/go-mdsync/internal/syntax"
	"github.com/goliatone/go-mdsync/internal/textpatch"
	"github.com/goliatone/go-mdsync/internal/treediff"
	"github.com/goliatone/go-mdsync/internal/view"
)

func (c *Controller) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			c.drain(ErrClosed)
			return
		case <-c.wake:
		}

		if c.cfg.CoalesceWindow > 0 {
			timer := time.NewTimer(c.cfg.CoalesceWindow)
			select {
			case <-c.done:
				timer.Stop()
				c.drain(ErrClosed)
				return
			case <-timer.C:
			}
		}

		for c.step() {
			select {
			case <-c.done:
				c.drain(ErrClosed)
				return
			default:
			}
		}
	}
}

// step runs one pass. Source changes go first; view requests are drained up
// to the next undo, redo or flush barrier.
func (c *Controller) step() bool {
	c.mu.Lock()
	if change := c.source; change != nil {
		c.source = nil
		c.mu.Unlock()
		c.runSourcePass(change)
		return true
	}
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return false
	}
	if head := c.queue[0]; head.kind != requestOperation {
		c.queue = c.queue[1:]
		c.mu.Unlock()
		c.runBarrier(head)
		return true
	}
	n := 0
	for n < len(c.queue) && c.queue[n].kind == requestOperation {
		n++
	}
	batch := append([]*request(nil), c.queue[:n]...)
	c.queue = c.queue[n:]
	c.mu.Unlock()

	c.runViewPass(batch)
	return true
}

func (c *Controller) drain(err error) {
	c.mu.Lock()
	queue := c.queue
	change := c.source
	c.queue, c.source = nil, nil
	c.mu.Unlock()

	version := c.Version()
	for _, req := range queue {
		req.pending.resolve(version, err)
	}
	if change != nil {
		change.pending.resolve(version, err)
	}
}

type appliedOp struct {
	req     *request
	forward ops.Operation
	inverse ops.Operation
}

func (c *Controller) runViewPass(batch []*request) {
	c.state.Store(int32(StateSyncing))
	defer c.state.Store(int32(StateIdle))
	c.stats.viewPasses.Add(1)

	tree := c.tree
	applied := make([]appliedOp, 0, len(batch))
	for _, req := range batch {
		op, err := c.prepare(req.op)
		if err == nil {
			var res ops.Result
			if res, err = c.engine.Apply(tree, op); err == nil {
				err = c.checkBlocks(tree, res.Tree, op)
			}
			if err == nil {
				tree = res.Tree
				applied = append(applied, appliedOp{req: req, forward: op, inverse: res.Inverse})
				continue
			}
		}
		c.reject(req, err)
	}
	if len(applied) == 0 {
		return
	}

	version, err := c.commitTree(tree)
	if err != nil {
		c.stats.rejectedOps.Add(int64(len(applied)))
		c.report(err)
		for _, a := range applied {
			a.req.pending.resolve(c.version, err)
		}
		return
	}

	c.history.BeginGroup()
	for _, a := range applied {
		c.history.Push(history.Entry{
			Version:   version,
			Forward:   a.forward,
			Inverse:   a.inverse,
			Selection: a.req.selection,
		})
	}
	c.history.EndGroup(version)

	c.stats.coalescedOps.Add(int64(len(applied)))
	c.logger.Debug("controller.view_pass.committed",
		"version", version,
		"operations", len(applied),
		"rejected", len(batch)-len(applied),
	)
	for _, a := range applied {
		a.req.pending.resolve(version, nil)
	}
}

// prepare validates the shape of op and, when op.BaseVersion is older than
// the current version, pins the node IDs op addressed in the tree of that
// version so a shifted path is reported as stale. Operations sharing a base
// are simulated in submission order, so later ones address the tree their
// predecessors produced.
func (c *Controller) prepare(op ops.Operation) (ops.Operation, error) {
	if err := op.Validate(); err != nil {
		return op, &ops.Error{
			Err:    ops.ErrInvalidOperation,
			Op:     op.Kind,
			Path:   op.Path.Clone(),
			Index:  op.Index,
			Detail: err.Error(),
			Step:   -1,
		}
	}

	base := op.BaseVersion
	if base <= 0 || base >= c.version {
		return op, nil
	}
	sim, ok := c.sims[base]
	if !ok {
		rev, found := c.revision(base)
		if !found {
			return op, &ops.Error{
				Err:    ops.ErrStaleOperation,
				Op:     op.Kind,
				Path:   op.Path.Clone(),
				Index:  op.Index,
				Detail: fmt.Sprintf("base version %d is no longer retained", base),
				Step:   -1,
			}
		}
		sim = rev.tree
	}

	guarded := pin(c.engine, sim, op)
	if res, err := c.engine.Apply(sim, guarded); err == nil {
		c.sims[base] = res.Tree
	} else {
		c.sims[base] = sim
	}
	return guarded, nil
}

// checkBlocks rejects op when a top-level block it produced has no canonical
// text, before anything is committed.
func (c *Controller) checkBlocks(before, after *syntax.Node, op ops.Operation) error {
	if !c.cfg.VerifyRoundTrip || after == nil {
		return nil
	}
	kept := make(map[*syntax.Node]struct{})
	if before != nil {
		for _, block := range before.Children {
			kept[block] = struct{}{}
		}
	}
	for _, block := range after.Children {
		if _, ok := kept[block]; ok {
			continue
		}
		if err := markdown.CheckBlock(c.parser, block); err != nil {
			return &ops.Error{
				Err:    ops.ErrInvalidOperation,
				Op:     op.Kind,
				Path:   op.Path.Clone(),
				Index:  op.Index,
				Detail: "result has no canonical markdown: " + err.Error(),
				Step:   -1,
			}
		}
	}
	return nil
}

func (c *Controller) revision(version int64) (revision, bool) {
	for _, rev := range c.revisions {
		if rev.version == version {
			return rev, true
		}
	}
	return revision{}, false
}

// pin fills unset target IDs of op from tree.
func pin(engine *ops.Engine, tree *syntax.Node, op ops.Operation) ops.Operation {
	switch op.Kind {
	case ops.KindBatch:
		inner := make([]ops.Operation, len(op.Ops))
		copy(inner, op.Ops)
		current := tree
		for i := range inner {
			inner[i] = pin(engine, current, inner[i])
			res, err := engine.Apply(current, inner[i])
			if err != nil {
				break
			}
			current = res.Tree
		}
		op.Ops = inner
	case ops.KindInsert:
		if n, ok := syntax.Resolve(tree, op.Path); ok && op.Target == uuid.Nil {
			op.Target = n.ID
		}
	case ops.KindDelete, ops.KindReplace:
		if n, ok := syntax.Resolve(tree, op.Path.Child(op.Index)); ok && op.Target == uuid.Nil {
			op.Target = n.ID
		}
	case ops.KindMove:
		if n, ok := syntax.Resolve(tree, op.Path.Child(op.Index)); ok && op.Target == uuid.Nil {
			op.Target = n.ID
		}
		if op.ToTarget == uuid.Nil {
			if res, err := engine.Apply(tree, op); err == nil {
				if dest, ok := syntax.Resolve(res.Tree, op.ToPath); ok {
					op.ToTarget = dest.ID
				}
			}
		}
	case ops.KindTextEdit:
		if n, ok := syntax.Resolve(tree, op.Path); ok && op.Target == uuid.Nil {
			op.Target = n.ID
		}
	}
	return op
}

// commitTree serializes tree, verifies and saves the text, then commits it.
// On failure nothing is committed.
func (c *Controller) commitTree(tree *syntax.Node) (int64, error) {
	text := c.serializer.Serialize(tree)
	if c.cfg.VerifyRoundTrip {
		if err := markdown.VerifyRoundTrip(c.parser, text); err != nil {
			c.stats.invariantViolations.Add(1)
			c.rebuild()
			return 0, fmt.Errorf("%w: %w", ErrSerializationInvariant, err)
		}
	}

	patch := textpatch.Compute(c.text, text)
	if !patch.Empty() {
		if err := c.host.SaveText(c.ctx, text, patch); err != nil {
			c.stats.saveFailures.Add(1)
			return 0, fmt.Errorf("%w: %w", ErrSaveFailed, err)
		}
	}
	return c.commit(text, treediff.Diff(c.tree, tree), patch, false, nil), nil
}

// commit publishes a new document state and its view delta.
func (c *Controller) commit(text string, result treediff.Result, patch textpatch.Patch, source bool, diags markdown.Diagnostics) int64 {
	model, delta := view.ApplyDelta(c.model, result)

	c.docMu.Lock()
	c.version++
	version := c.version
	model.Version = version
	c.text = text
	c.tree = result.Tree
	c.model = model
	c.frontMatter = decodeFrontMatter(result.Tree)
	c.diagnostics = diags
	c.docMu.Unlock()

	c.revisions = append(c.revisions, revision{
		version: version,
		text:    text,
		tree:    result.Tree,
		patch:   patch,
		source:  source,
	})
	if excess := len(c.revisions) - maxRevisions; excess > 0 {
		c.revisions = append([]revision(nil), c.revisions[excess:]...)
		oldest := c.revisions[0].version
		for base := range c.sims {
			if base < oldest {
				delete(c.sims, base)
			}
		}
	}

	delta.Version = version
	c.listener.OnViewModelUpdated(delta)
	return version
}

// rebuild re-derives the tree from the current text without a version bump.
func (c *Controller) rebuild() {
	tree, diags := c.parser.Parse(c.text)
	result := treediff.Diff(c.tree, tree)
	model, delta := view.ApplyDelta(c.model, result)

	c.docMu.Lock()
	model.Version = c.version
	c.tree = result.Tree
	c.model = model
	c.diagnostics = diags
	c.docMu.Unlock()

	c.logger.Warn("controller.tree.rebuilt", "version", c.version, "edits", len(result.Edits))
	if !delta.Empty() {
		delta.Version = c.version
		c.listener.OnViewModelUpdated(delta)
	}
}

func (c *Controller) runSourcePass(change *sourceChange) {
	c.state.Store(int32(StateSyncing))
	defer c.state.Store(int32(StateIdle))
	c.stats.sourcePasses.Add(1)

	text, err := c.resolveExternal(change)
	if err != nil {
		c.stats.conflicts.Add(1)
		c.report(err)
		text = change.text
	}
	if text != change.text {
		if err := c.host.SaveText(c.ctx, text, textpatch.Compute(change.text, text)); err != nil {
			c.stats.saveFailures.Add(1)
			c.report(fmt.Errorf("%w: %w", ErrSaveFailed, err))
			text = change.text
		}
	}
	if text == c.text {
		change.pending.resolve(c.version, nil)
		return
	}

	tree, diags := c.parser.Parse(text)
	logDiagnostics(c.logger, diags)
	result := treediff.Diff(c.tree, tree)
	version := c.commit(text, result, textpatch.Compute(c.text, text), true, diags)

	c.logger.Debug("controller.source_pass.committed",
		"version", version,
		"base", change.base,
		"edits", len(result.Edits),
	)
	change.pending.resolve(version, nil)
}

// resolveExternal returns the text a source change should commit. A change
// computed against an older version is rebased over every commit since; an
// overlap is reported as a conflict and the external text wins.
func (c *Controller) resolveExternal(change *sourceChange) (string, error) {
	if change.base <= 0 || change.base >= c.version {
		return change.text, nil
	}
	base, ok := c.revision(change.base)
	if !ok {
		return change.text, fmt.Errorf("%w: base version %d is no longer retained", ErrConflict, change.base)
	}

	patch := textpatch.Compute(base.text, change.text)
	for _, rev := range c.revisions {
		if rev.version <= change.base {
			continue
		}
		rebased, err := textpatch.Rebase(patch, rev.patch)
		if err != nil {
			return change.text, err
		}
		patch = rebased
	}
	merged, err := textpatch.Apply(c.text, patch)
	if err != nil {
		return change.text, fmt.Errorf("%w: %w", ErrConflict, err)
	}
	c.stats.rebasedSource.Add(1)
	c.logger.Info("controller.source.rebased", "base", change.base, "version", c.version)
	return merged, nil
}

func (c *Controller) runBarrier(req *request) {
	switch req.kind {
	case requestFlush:
		req.pending.resolve(c.version, nil)
		return
	case requestUndo, requestRedo:
	default:
		return
	}

	c.state.Store(int32(StateSyncing))
	defer c.state.Store(int32(StateIdle))

	var (
		entry history.Entry
		err   error
	)
	if req.kind == requestUndo {
		entry, err = c.history.Undo(c.replay)
		if err == nil {
			c.stats.undos.Add(1)
		}
	} else {
		entry, err = c.history.Redo(c.replay)
		if err == nil {
			c.stats.redos.Add(1)
		}
	}
	if err != nil {
		if kind := KindOf(err); kind != ErrorNothingToUndo && kind != ErrorNothingToRedo {
			c.report(err)
		}
		req.pending.resolve(c.version, err)
		return
	}
	req.pending.resolve(entry.Version, nil)
}

// replay applies a history operation as its own pass.
func (c *Controller) replay(op ops.Operation) (ops.Operation, int64, error) {
	res, err := c.engine.Apply(c.tree, op)
	if err != nil {
		return ops.Operation{}, 0, err
	}
	version, err := c.commitTree(res.Tree)
	if err != nil {
		return ops.Operation{}, 0, err
	}
	return res.Inverse, version, nil
}

func (c *Controller) reject(req *request, err error) {
	c.stats.rejectedOps.Add(1)
	c.report(err)
	req.pending.resolve(c.version, err)
}

func (c *Controller) report(err error) {
	kind := KindOf(err)
	c.logger.Warn("controller.error", "kind", string(kind), "error", err)
	c.listener.OnError(kind, err.Error())
}
