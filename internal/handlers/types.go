package handlers

import (
	"github.com/fraudsight/graph-engine/internal/analytics"
	"github.com/fraudsight/graph-engine/internal/resolution"
)

// FindDuplicatesRequest asks for a deterministic duplicate scan.
type FindDuplicatesRequest struct {
	Entities  []resolution.EntityRecord `json:"entities"`
	Threshold float64                   `json:"threshold,omitempty"`
}

// FindDuplicatesResponse lists the matched pairs.
type FindDuplicatesResponse struct {
	Matches []resolution.Match `json:"matches"`
	Count   int                `json:"count"`
}

// ResolveWithAIRequest asks for AI-assisted resolution.
type ResolveWithAIRequest struct {
	Entities []resolution.EntityRecord `json:"entities"`
	Context  map[string]string         `json:"context,omitempty"`
}

// ResolveWithAIResponse lists the matched pairs and whether the
// deterministic fallback was taken.
type ResolveWithAIResponse struct {
	Matches  []resolution.Match `json:"matches"`
	Count    int                `json:"count"`
	Fallback bool               `json:"fallback"`
}

// CommunitiesResponse lists the detected communities of a subject's
// subgraph.
type CommunitiesResponse struct {
	SubjectID   string                `json:"subject_id"`
	Communities []analytics.Community `json:"communities"`
	Count       int                   `json:"count"`
}

// CentralityResponse lists the centrality ranking of a subject's subgraph.
type CentralityResponse struct {
	SubjectID string                       `json:"subject_id"`
	Results   []analytics.CentralityResult `json:"results"`
}

// PathResponse holds a shortest path query result.
type PathResponse struct {
	SeedID   string   `json:"seed_id"`
	SourceID string   `json:"source_id"`
	TargetID string   `json:"target_id"`
	Path     []string `json:"path"`
	Length   int      `json:"length"`
	Found    bool     `json:"found"`
}
