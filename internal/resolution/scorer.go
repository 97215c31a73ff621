package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fraudsight/graph-engine/internal/config"
)

// ErrScorerUnavailable is returned when no similarity scorer is configured.
var ErrScorerUnavailable = errors.New("similarity scorer unavailable")

// ScoredPair is one candidate pairing returned by a similarity scorer.
type ScoredPair struct {
	EntityIDA       string  `json:"entity_id_a"`
	EntityIDB       string  `json:"entity_id_b"`
	SimilarityScore float64 `json:"similarity_score"`
	Reason          string  `json:"reason"`
}

// Scorer scores entity pairs for similarity. Implementations must treat the
// context deadline as a hard budget.
type Scorer interface {
	ScoreEntities(ctx context.Context, entities []EntityRecord, contextData map[string]string) ([]ScoredPair, error)
}

const scorerSystemPrompt = `You are an entity resolution assistant for financial crime investigation.
You are given a list of entity records. Identify pairs that likely refer to the same real-world person or organization.
Respond with ONLY a JSON array, no prose, where each element has the fields:
entity_id_a, entity_id_b, similarity_score (a number between 0 and 1) and reason (a short explanation).
Only include pairs with a similarity_score of at least 0.5. If no pairs match, respond with [].`

// OpenAIScorer scores entity pairs through the OpenAI chat completion API.
type OpenAIScorer struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIScorer creates a scorer backed by the OpenAI API.
func NewOpenAIScorer(cfg config.AIConfig, logger *slog.Logger) (*OpenAIScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AI scorer requires an API key")
	}
	return &OpenAIScorer{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// ScoreEntities sends the entity summaries to the model and parses the
// returned candidate pairs.
func (s *OpenAIScorer) ScoreEntities(ctx context.Context, entities []EntityRecord, contextData map[string]string) ([]ScoredPair, error) {
	prompt, err := buildPrompt(entities, contextData)
	if err != nil {
		return nil, fmt.Errorf("failed to build scoring prompt: %w", err)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: scorerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	pairs, err := parseScoredPairs(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("AI scorer returned candidates",
		"model", s.model,
		"entities", len(entities),
		"candidates", len(pairs))

	return pairs, nil
}

func buildPrompt(entities []EntityRecord, contextData map[string]string) (string, error) {
	summary, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Entity records:\n")
	b.Write(summary)
	if len(contextData) > 0 {
		extra, err := json.MarshalIndent(contextData, "", "  ")
		if err != nil {
			return "", err
		}
		b.WriteString("\n\nInvestigation context:\n")
		b.Write(extra)
	}
	return b.String(), nil
}

// parseScoredPairs is lenient about code fences around the JSON body since
// models wrap responses inconsistently.
func parseScoredPairs(content string) ([]ScoredPair, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var pairs []ScoredPair
	if err := json.Unmarshal([]byte(cleaned), &pairs); err != nil {
		return nil, fmt.Errorf("failed to parse scorer response: %w", err)
	}
	return pairs, nil
}
