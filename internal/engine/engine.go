// Package engine coordinates subgraph construction, graph analytics and
// entity resolution behind one façade used by the transport layers.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fraudsight/graph-engine/internal/analytics"
	"github.com/fraudsight/graph-engine/internal/builder"
	"github.com/fraudsight/graph-engine/internal/config"
	"github.com/fraudsight/graph-engine/internal/events"
	"github.com/fraudsight/graph-engine/internal/graph"
	"github.com/fraudsight/graph-engine/internal/metrics"
	"github.com/fraudsight/graph-engine/internal/resolution"
)

// Engine is the service façade. All methods are safe for concurrent use.
type Engine struct {
	builder   *builder.Builder
	analytics *analytics.Analytics
	resolver  *resolution.Resolver
	sink      events.Sink
	cfg       *config.Config
	metrics   *metrics.Collector
	logger    *slog.Logger

	// analysisSlots bounds concurrently running heavy analyses.
	analysisSlots chan struct{}
}

// New creates the engine. The sink may be nil when event emission is
// disabled.
func New(
	b *builder.Builder,
	a *analytics.Analytics,
	r *resolution.Resolver,
	sink events.Sink,
	cfg *config.Config,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Engine {
	e := &Engine{
		builder:       b,
		analytics:     a,
		resolver:      r,
		cfg:           cfg,
		metrics:       collector,
		logger:        logger,
		analysisSlots: make(chan struct{}, cfg.GraphEngine.MaxConcurrentAnalyses),
	}
	if sink != nil {
		e.sink = &instrumentedSink{next: sink, metrics: collector}
	}
	return e
}

// BuildSubgraph constructs the bounded subgraph around a seed subject.
func (e *Engine) BuildSubgraph(ctx context.Context, seedID string, opts builder.Options) (*graph.Context, error) {
	startTime := time.Now()
	gctx, err := e.builder.Build(ctx, seedID, opts)

	nodes := 0
	if gctx != nil {
		nodes = gctx.NodeCount()
	}
	e.metrics.RecordSubgraphBuild(nodes, time.Since(startTime), err)

	return gctx, err
}

// Communities builds the subgraph around the seed and partitions it into
// communities.
func (e *Engine) Communities(ctx context.Context, seedID string, opts builder.Options) ([]analytics.Community, error) {
	gctx, err := e.BuildSubgraph(ctx, seedID, opts)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	communities, err := e.analytics.DetectCommunities(gctx)
	e.metrics.RecordAnalysis("communities", time.Since(startTime), err)
	return communities, err
}

// CentralityRanking builds the subgraph around the seed and ranks its
// nodes by betweenness centrality. Large graphs are offloaded to a bounded
// background slot so that a burst of expensive requests cannot saturate
// the process.
func (e *Engine) CentralityRanking(ctx context.Context, seedID string, opts builder.Options) ([]analytics.CentralityResult, error) {
	gctx, err := e.BuildSubgraph(ctx, seedID, opts)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	var results []analytics.CentralityResult
	if gctx.NodeCount() >= e.cfg.GraphEngine.CentralityAsyncThreshold {
		results, err = e.centralityBounded(ctx, gctx)
	} else {
		results, err = e.analytics.Centrality(gctx)
	}
	e.metrics.RecordAnalysis("centrality", time.Since(startTime), err)
	return results, err
}

type centralityOutcome struct {
	results []analytics.CentralityResult
	err     error
}

func (e *Engine) centralityBounded(ctx context.Context, gctx *graph.Context) ([]analytics.CentralityResult, error) {
	select {
	case e.analysisSlots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for analysis slot: %w", ctx.Err())
	}

	e.logger.Info("Offloading centrality analysis", "nodes", gctx.NodeCount())

	outcome := make(chan centralityOutcome, 1)
	go func() {
		defer func() { <-e.analysisSlots }()
		done := e.metrics.AnalysisJobStarted()
		defer done()

		results, err := e.analytics.Centrality(gctx)
		outcome <- centralityOutcome{results: results, err: err}
	}()

	select {
	case out := <-outcome:
		return out.results, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("centrality analysis cancelled: %w", ctx.Err())
	case <-time.After(e.cfg.GraphEngine.AnalysisTimeout):
		return nil, fmt.Errorf("centrality analysis timed out after %s", e.cfg.GraphEngine.AnalysisTimeout)
	}
}

// Path builds the subgraph around the seed and finds a shortest path
// between two of its nodes.
func (e *Engine) Path(ctx context.Context, seedID string, opts builder.Options, sourceID, targetID string) (analytics.ShortestPathResult, error) {
	gctx, err := e.BuildSubgraph(ctx, seedID, opts)
	if err != nil {
		return analytics.ShortestPathResult{}, err
	}

	startTime := time.Now()
	result, err := e.analytics.ShortestPath(gctx, sourceID, targetID)
	e.metrics.RecordAnalysis("shortest_path", time.Since(startTime), err)
	return result, err
}

// FindDuplicates runs the deterministic duplicate scan. A non-positive
// threshold takes the configured default.
func (e *Engine) FindDuplicates(entities []resolution.EntityRecord, threshold float64) []resolution.Match {
	if threshold <= 0 {
		threshold = e.cfg.Resolution.SimilarityThreshold
	}
	matches := e.resolver.FindDuplicates(entities, threshold)
	e.metrics.RecordResolution("deterministic", nil)
	return matches
}

// ResolveWithAI runs AI-assisted resolution with the deterministic
// fallback, emitting resolution events for high-confidence matches.
func (e *Engine) ResolveWithAI(ctx context.Context, entities []resolution.EntityRecord, contextData map[string]string) ([]resolution.Match, bool) {
	matches, fellBack := e.resolver.ResolveWithAI(ctx, entities, contextData, e.sink)
	if fellBack {
		e.metrics.RecordAIFallback()
	}
	e.metrics.RecordResolution("ai", nil)
	return matches, fellBack
}

// HandleResolutionRequest implements events.RequestHandler for requests
// arriving over Kafka.
func (e *Engine) HandleResolutionRequest(ctx context.Context, request events.ResolutionRequest) error {
	var entities []resolution.EntityRecord
	if err := json.Unmarshal(request.Entities, &entities); err != nil {
		return fmt.Errorf("failed to decode entities: %w", err)
	}

	matches, fellBack := e.ResolveWithAI(ctx, entities, request.Context)

	e.logger.Info("Asynchronous resolution completed",
		"request_id", request.RequestID,
		"entities", len(entities),
		"matches", len(matches),
		"fallback", fellBack)

	return nil
}

// instrumentedSink counts publish attempts around the wrapped sink.
type instrumentedSink struct {
	next    events.Sink
	metrics *metrics.Collector
}

func (s *instrumentedSink) Publish(ctx context.Context, event events.Event) error {
	err := s.next.Publish(ctx, event)
	s.metrics.RecordEventPublished(err)
	return err
}
