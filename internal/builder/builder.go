// Package builder constructs bounded subgraphs around a seed subject from
// the relational record store.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fraudsight/graph-engine/internal/config"
	"github.com/fraudsight/graph-engine/internal/graph"
	"github.com/fraudsight/graph-engine/internal/records"
)

// Builder turns subject and transaction records into a graph context. Each
// Build call constructs a fresh context; the builder itself holds no graph
// state and is safe for concurrent use.
type Builder struct {
	store  records.Store
	cfg    config.GraphEngineConfig
	logger *slog.Logger
}

// Options bound one subgraph construction.
type Options struct {
	// MaxDepth is the maximum BFS distance from the seed at which subjects
	// are still expanded.
	MaxDepth int

	// NodeBudget caps the number of nodes added to the context. Work
	// already queued when the budget is hit still completes, but no new
	// nodes are added and no further expansion is scheduled.
	NodeBudget int

	// PageOffset and PageLimit bound the per-subject transaction fetch.
	PageOffset int
	PageLimit  int
}

type queueItem struct {
	subjectID string
	depth     int
}

// NewBuilder creates a graph builder over the given record store.
func NewBuilder(store records.Store, cfg config.GraphEngineConfig, logger *slog.Logger) *Builder {
	return &Builder{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

func (b *Builder) normalize(opts Options) Options {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = b.cfg.DefaultTraversalDepth
	}
	if opts.MaxDepth > b.cfg.MaxTraversalDepth {
		opts.MaxDepth = b.cfg.MaxTraversalDepth
	}
	if opts.NodeBudget <= 0 {
		opts.NodeBudget = b.cfg.MaxGraphNodes
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = b.cfg.DefaultPageLimit
	}
	if opts.PageLimit > b.cfg.MaxPageLimit {
		opts.PageLimit = b.cfg.MaxPageLimit
	}
	if opts.PageOffset < 0 {
		opts.PageOffset = 0
	}
	return opts
}

// Build constructs a subgraph rooted at seedID using breadth-first
// traversal over the subject's transactions. An unknown seed yields an
// empty context, not an error; any record fetch failure aborts the whole
// build with no partial graph returned.
func (b *Builder) Build(ctx context.Context, seedID string, opts Options) (*graph.Context, error) {
	opts = b.normalize(opts)
	startTime := time.Now()

	gctx := graph.NewContext()

	seed, err := b.store.GetSubject(ctx, seedID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch seed subject %s: %w", seedID, err)
	}
	if seed == nil {
		b.logger.Info("Seed subject not found, returning empty graph", "subject_id", seedID)
		return gctx, nil
	}

	if _, err := gctx.AddNode(subjectNode(seed)); err != nil {
		return nil, fmt.Errorf("failed to add seed node: %w", err)
	}

	// FIFO queue keeps discovery order; visited guards against cycles in
	// the underlying records.
	visited := map[string]bool{seed.ID: true}
	queue := []queueItem{{subjectID: seed.ID, depth: 0}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		// Subjects at the depth bound are leaves: expanding them would
		// discover nodes beyond MaxDepth.
		if item.depth >= opts.MaxDepth {
			continue
		}

		transactions, err := b.store.ListTransactions(ctx, item.subjectID, opts.PageOffset, opts.PageLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch transactions for subject %s: %w", item.subjectID, err)
		}

		for _, tx := range transactions {
			counterpartID, enqueue, err := b.addCounterpart(ctx, gctx, tx, opts.NodeBudget)
			if err != nil {
				return nil, err
			}
			if counterpartID == "" {
				// Budget exhausted and counterpart not already present;
				// the edge would dangle, so the transaction is skipped.
				continue
			}

			gctx.AddEdge(graph.Edge{
				SourceID:    item.subjectID,
				TargetID:    counterpartID,
				Kind:        graph.EdgeTransaction,
				Weight:      tx.Amount,
				ReferenceID: tx.ID,
			})

			if enqueue && !visited[counterpartID] {
				visited[counterpartID] = true
				queue = append(queue, queueItem{subjectID: counterpartID, depth: item.depth + 1})
			}
		}
	}

	b.logger.Info("Subgraph build completed",
		"seed_id", seedID,
		"nodes", gctx.NodeCount(),
		"edges", gctx.EdgeCount(),
		"max_depth", opts.MaxDepth,
		"duration_ms", time.Since(startTime).Milliseconds())

	return gctx, nil
}

// addCounterpart resolves the counterpart node for a transaction, adding it
// to the context if the node budget allows. It returns the counterpart node
// id (empty when the node could not be added), and whether the counterpart
// is a subject eligible for further expansion.
func (b *Builder) addCounterpart(ctx context.Context, gctx *graph.Context, tx records.Transaction, budget int) (string, bool, error) {
	if tx.CounterpartySubjectID != "" {
		id := tx.CounterpartySubjectID
		if gctx.HasNode(id) {
			return id, true, nil
		}
		if gctx.NodeCount() >= budget {
			return "", false, nil
		}

		subject, err := b.store.GetSubject(ctx, id)
		if err != nil {
			return "", false, fmt.Errorf("failed to fetch counterpart subject %s: %w", id, err)
		}
		node := graph.Node{ID: id, Kind: graph.NodeSubject, Attributes: map[string]string{"label": id}}
		if subject != nil {
			node = subjectNode(subject)
		}
		if _, err := gctx.AddNode(node); err != nil {
			return "", false, fmt.Errorf("failed to add counterpart subject node: %w", err)
		}
		return id, true, nil
	}

	if tx.CounterpartyBank == "" {
		return "", false, nil
	}

	// Banks are deduplicated by their identity, not per transaction, and
	// are never expanded.
	id := tx.CounterpartyBank
	if gctx.HasNode(id) {
		return id, false, nil
	}
	if gctx.NodeCount() >= budget {
		return "", false, nil
	}
	if _, err := gctx.AddNode(graph.Node{
		ID:   id,
		Kind: graph.NodeBank,
		Attributes: map[string]string{
			"label": tx.CounterpartyBank,
		},
	}); err != nil {
		return "", false, fmt.Errorf("failed to add bank node: %w", err)
	}
	return id, false, nil
}

func subjectNode(subject *records.Subject) graph.Node {
	attrs := map[string]string{
		"label": subject.Name,
	}
	if subject.RiskScore > 0 {
		attrs["risk_score"] = strconv.FormatFloat(subject.RiskScore, 'f', -1, 64)
	}
	return graph.Node{
		ID:         subject.ID,
		Kind:       graph.NodeSubject,
		Attributes: attrs,
	}
}
