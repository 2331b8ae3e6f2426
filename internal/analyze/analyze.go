// Package analyze runs the analysis pipeline over a code tree: heuristic
// scoring, quality rollup, AI summarization through a bounded worker pool,
// and bottom-up directory synthesis. It also serves the interactive
// server's single-node path.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"codedocent/internal/ai"
	"codedocent/internal/cache"
	"codedocent/internal/quality"
	"codedocent/internal/tree"
)

// DefaultMinLines is the line count below which a node is summarized
// descriptively instead of sent to the model.
const DefaultMinLines = 5

const (
	summaryTimedOut = "Summary timed out"
	summaryFailed   = "Summary generation failed"
)

// Progress reports one completed unit of work: index is 1-based over the
// batch's AI-eligible nodes.
type Progress func(index, total int, node *tree.CodeNode)

// Options configures a batch run.
type Options struct {
	Workers int

	// Progress may be nil.
	Progress Progress
}

// Orchestrator drives the four-phase batch pipeline.
type Orchestrator struct {
	scorer     *quality.Scorer
	summarizer *ai.Summarizer
	store      *cache.Store
	minLines   int
	logger     *slog.Logger

	// mu serializes cache access and node writes across workers.
	mu sync.Mutex
}

// NewOrchestrator assembles the pipeline. summarizer may be nil to skip
// AI analysis entirely (scoring and synthesis still run). minLines below 1
// falls back to DefaultMinLines; batch and lazy analysis both honor it.
func NewOrchestrator(scorer *quality.Scorer, summarizer *ai.Summarizer, store *cache.Store, minLines int, logger *slog.Logger) *Orchestrator {
	if minLines < 1 {
		minLines = DefaultMinLines
	}
	return &Orchestrator{
		scorer:     scorer,
		summarizer: summarizer,
		store:      store,
		minLines:   minLines,
		logger:     logger,
	}
}

// Run executes the batch over the whole tree and persists the cache once
// at the end. Only an unreachable backend aborts the run; per-node
// failures degrade to descriptive summaries.
func (o *Orchestrator) Run(ctx context.Context, root *tree.CodeNode, opts Options) error {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	flat := tree.Flatten(root)

	// Phase 1: heuristic scoring for every node.
	for _, fn := range flat {
		o.scorer.Apply(ctx, fn.Node)
	}

	// Phase 2: quality rollup, deepest first so children are final.
	rollupTargets := selectNodes(flat, func(n *tree.CodeNode) bool {
		return n.Type == tree.NodeFile || n.Type == tree.NodeClass
	})
	sort.SliceStable(rollupTargets, func(i, j int) bool {
		return rollupTargets[i].Depth > rollupTargets[j].Depth
	})
	for _, fn := range rollupTargets {
		quality.Rollup(fn.Node)
	}

	// Phase 3: AI analysis, files before code nodes, each group
	// shallowest first.
	if o.summarizer != nil {
		if err := o.analyzeAll(ctx, flat, opts); err != nil {
			return err
		}
	}

	// Phase 4: directory synthesis, deepest first.
	dirs := selectNodes(flat, func(n *tree.CodeNode) bool {
		return n.Type == tree.NodeDirectory
	})
	sort.SliceStable(dirs, func(i, j int) bool {
		return dirs[i].Depth > dirs[j].Depth
	})
	for _, fn := range dirs {
		quality.DirectorySummary(fn.Node)
	}

	// Without a summarizer no entries were added; saving would clobber a
	// cache written under a different model.
	if o.summarizer != nil {
		if err := o.store.Save(); err != nil {
			o.logger.Warn("could not persist analysis cache", "error", err)
		}
	}
	return nil
}

// analyzeAll runs the worker pool over the AI-eligible nodes.
func (o *Orchestrator) analyzeAll(ctx context.Context, flat []tree.FlatNode, opts Options) error {
	files := selectNodes(flat, func(n *tree.CodeNode) bool {
		return n.Type == tree.NodeFile
	})
	codeNodes := selectNodes(flat, func(n *tree.CodeNode) bool {
		switch n.Type {
		case tree.NodeClass, tree.NodeFunction, tree.NodeMethod:
			return true
		}
		return false
	})
	sort.SliceStable(files, func(i, j int) bool { return files[i].Depth < files[j].Depth })
	sort.SliceStable(codeNodes, func(i, j int) bool { return codeNodes[i].Depth < codeNodes[j].Depth })

	work := append(files, codeNodes...)
	total := len(work)
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, fn := range work {
		node := fn.Node
		g.Go(func() error {
			if err := o.analyzeOne(ctx, node); err != nil {
				return err
			}
			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), total, node)
			}
			return nil
		})
	}
	return g.Wait()
}

// analyzeOne processes a single node: skip, cache hit, or model call.
// Returns an error only for systemic failures that should abort the batch.
func (o *Orchestrator) analyzeOne(ctx context.Context, node *tree.CodeNode) error {
	if node.LineCount < o.minLines {
		o.mu.Lock()
		node.Summary = fmt.Sprintf("Small %s (%d lines)", node.Type, node.LineCount)
		o.mu.Unlock()
		return nil
	}

	o.mu.Lock()
	if entry, ok := o.store.Get(node); ok {
		node.Summary = entry.Summary
		node.Pseudocode = entry.Pseudocode
		o.mu.Unlock()
		o.logger.Debug("cache hit", "node", node.Name)
		return nil
	}
	o.mu.Unlock()

	summary, pseudocode, err := o.summarizer.Summarize(ctx, node)
	switch {
	case err == nil:
		o.mu.Lock()
		node.Summary = summary
		node.Pseudocode = pseudocode
		o.store.Put(node, summary, pseudocode)
		o.mu.Unlock()
	case errors.Is(err, ai.ErrTimeout):
		o.mu.Lock()
		node.Summary = summaryTimedOut
		o.mu.Unlock()
	case errors.Is(err, ai.ErrUnreachable):
		return err
	default:
		o.logger.Warn("summarization failed", "node", node.Name, "error", err)
		o.mu.Lock()
		node.Summary = summaryFailed
		o.mu.Unlock()
	}
	return nil
}

// AnalyzeNode is the interactive server's lazy path: score and summarize
// one node on demand, consulting and updating the shared cache. Unlike a
// batch run, every error surfaces to the caller.
func (o *Orchestrator) AnalyzeNode(ctx context.Context, node *tree.CodeNode) error {
	if node.Type == tree.NodeDirectory {
		quality.DirectorySummary(node)
		return nil
	}

	if node.Quality == "" {
		o.scorer.Apply(ctx, node)
	}

	if o.summarizer == nil {
		return nil
	}

	// Same skip as the batch path: trivial nodes never reach the model.
	if node.LineCount < o.minLines {
		o.mu.Lock()
		node.Summary = fmt.Sprintf("Small %s (%d lines)", node.Type, node.LineCount)
		o.mu.Unlock()
		return nil
	}

	o.mu.Lock()
	if entry, ok := o.store.Get(node); ok {
		node.Summary = entry.Summary
		node.Pseudocode = entry.Pseudocode
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	summary, pseudocode, err := o.summarizer.Summarize(ctx, node)
	if err != nil {
		if errors.Is(err, ai.ErrTimeout) {
			node.Summary = summaryTimedOut
			return nil
		}
		return err
	}

	o.mu.Lock()
	node.Summary = summary
	node.Pseudocode = pseudocode
	o.store.Put(node, summary, pseudocode)
	err = o.store.Save()
	o.mu.Unlock()
	if err != nil {
		o.logger.Warn("could not persist analysis cache", "error", err)
	}
	return nil
}

// InvalidateNode drops a node's cache entry by its pre-edit key and
// persists the change. Used after source replacement.
func (o *Orchestrator) InvalidateNode(oldKey string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.store.Remove(oldKey)
	if err := o.store.Save(); err != nil {
		o.logger.Warn("could not persist analysis cache", "error", err)
	}
}

func selectNodes(flat []tree.FlatNode, keep func(*tree.CodeNode) bool) []tree.FlatNode {
	var out []tree.FlatNode
	for _, fn := range flat {
		if keep(fn.Node) {
			out = append(out, fn)
		}
	}
	return out
}
