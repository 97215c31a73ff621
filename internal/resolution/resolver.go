// Package resolution identifies entity records that likely refer to the
// same real-world person or organization. The deterministic string
// similarity path has no external dependency and always backs the
// AI-assisted path as its fallback.
package resolution

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/fraudsight/graph-engine/internal/config"
	"github.com/fraudsight/graph-engine/internal/events"
)

// EntityRecord is one candidate entity supplied by the caller.
type EntityRecord struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Kind     string            `json:"type,omitempty"`
	Aliases  []string          `json:"aliases,omitempty"`
	Context  string            `json:"context,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is a scored pairing of two entity records. The pair is unordered
// and appears at most once per resolution run; scores from the
// deterministic and AI paths share the same [0,1] scale.
type Match struct {
	EntityIDA       string  `json:"entity_id_a"`
	EntityNameA     string  `json:"entity_name_a"`
	EntityIDB       string  `json:"entity_id_b"`
	EntityNameB     string  `json:"entity_name_b"`
	SimilarityScore float64 `json:"similarity_score"`
	Reason          string  `json:"reason"`
}

// Resolver performs deterministic and AI-assisted entity resolution.
type Resolver struct {
	cfg    config.ResolutionConfig
	ai     config.AIConfig
	scorer Scorer
	logger *slog.Logger
}

// NewResolver creates an entity resolver. The scorer may be nil, in which
// case the AI path always takes the deterministic fallback.
func NewResolver(cfg config.ResolutionConfig, ai config.AIConfig, scorer Scorer, logger *slog.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		ai:     ai,
		scorer: scorer,
		logger: logger,
	}
}

// FindDuplicates scores every unordered entity pair with a normalized
// edit-distance ratio and returns pairs at or above threshold. Entities
// with empty names are never matched.
func (r *Resolver) FindDuplicates(entities []EntityRecord, threshold float64) []Match {
	matches := make([]Match, 0)

	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(b.Name) == "" {
				continue
			}

			score := recordSimilarity(a, b)
			if score >= threshold {
				matches = append(matches, Match{
					EntityIDA:       a.ID,
					EntityNameA:     a.Name,
					EntityIDB:       b.ID,
					EntityNameB:     b.Name,
					SimilarityScore: score,
					Reason:          "high string similarity",
				})
			}
		}
	}

	return matches
}

// ResolveWithAI resolves entities through the external similarity scorer,
// emitting one event per high-confidence match to the sink when one is
// supplied. Any scorer failure falls back transparently to the
// deterministic path; the caller always receives a plain match list, plus
// whether the fallback was taken.
func (r *Resolver) ResolveWithAI(ctx context.Context, entities []EntityRecord, contextData map[string]string, sink events.Sink) ([]Match, bool) {
	if len(entities) < 2 {
		return []Match{}, false
	}

	fellBack := false
	matches, err := r.scoreWithAI(ctx, entities, contextData)
	if err != nil {
		r.logger.Warn("AI resolution failed, falling back to string matching",
			"entities", len(entities),
			"error", err)
		matches = r.FindDuplicates(entities, r.cfg.FallbackThreshold)
		fellBack = true
	}

	r.emitEvents(ctx, matches, sink)

	return matches, fellBack
}

func (r *Resolver) scoreWithAI(ctx context.Context, entities []EntityRecord, contextData map[string]string) ([]Match, error) {
	if r.scorer == nil {
		return nil, ErrScorerUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, r.ai.Timeout)
	defer cancel()

	startTime := time.Now()
	candidates, err := r.scorer.ScoreEntities(ctx, entities, contextData)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]EntityRecord, len(entities))
	for _, entity := range entities {
		byID[entity.ID] = entity
	}

	seen := make(map[[2]string]bool)
	matches := make([]Match, 0, len(candidates))
	for _, candidate := range candidates {
		// Malformed candidates are skipped rather than failing the batch.
		if candidate.EntityIDA == "" || candidate.EntityIDB == "" || candidate.EntityIDA == candidate.EntityIDB {
			continue
		}
		if candidate.SimilarityScore < 0 || candidate.SimilarityScore > 1 {
			continue
		}
		a, okA := byID[candidate.EntityIDA]
		b, okB := byID[candidate.EntityIDB]
		if !okA || !okB {
			r.logger.Debug("Skipping AI candidate referencing unknown entity",
				"entity_a", candidate.EntityIDA,
				"entity_b", candidate.EntityIDB)
			continue
		}

		key := pairID(candidate.EntityIDA, candidate.EntityIDB)
		if seen[key] {
			continue
		}
		seen[key] = true

		reason := candidate.Reason
		if reason == "" {
			reason = "AI-assisted match"
		}

		matches = append(matches, Match{
			EntityIDA:       a.ID,
			EntityNameA:     a.Name,
			EntityIDB:       b.ID,
			EntityNameB:     b.Name,
			SimilarityScore: candidate.SimilarityScore,
			Reason:          reason,
		})
	}

	r.logger.Info("AI resolution completed",
		"entities", len(entities),
		"candidates", len(candidates),
		"matches", len(matches),
		"duration_ms", time.Since(startTime).Milliseconds())

	return matches, nil
}

// emitEvents publishes one resolution event per match above the emission
// threshold. Sink failures are logged and swallowed; the resolution result
// is returned regardless.
func (r *Resolver) emitEvents(ctx context.Context, matches []Match, sink events.Sink) {
	if sink == nil {
		return
	}

	for _, match := range matches {
		if match.SimilarityScore < r.cfg.EventThreshold {
			continue
		}

		event := events.NewEntityResolved(match.EntityIDA, match.EntityIDB, match.SimilarityScore, match.Reason)
		if err := sink.Publish(ctx, event); err != nil {
			r.logger.Warn("Failed to publish resolution event",
				"entity_a", match.EntityIDA,
				"entity_b", match.EntityIDB,
				"error", err)
		}
	}
}

// recordSimilarity is the best normalized similarity over the two records'
// names and aliases.
func recordSimilarity(a, b EntityRecord) float64 {
	best := 0.0
	for _, nameA := range namesOf(a) {
		for _, nameB := range namesOf(b) {
			if score := stringSimilarity(nameA, nameB); score > best {
				best = score
			}
		}
	}
	return best
}

func namesOf(entity EntityRecord) []string {
	names := make([]string, 0, 1+len(entity.Aliases))
	if normalized := normalizeName(entity.Name); normalized != "" {
		names = append(names, normalized)
	}
	for _, alias := range entity.Aliases {
		if normalized := normalizeName(alias); normalized != "" {
			names = append(names, normalized)
		}
	}
	return names
}

// normalizeName lowercases and collapses whitespace for comparison.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// stringSimilarity is 1 minus the edit distance normalized by the longer
// input, yielding a ratio in [0,1].
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(longest)
}

func pairID(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
