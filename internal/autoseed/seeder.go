package autoseed

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"linkloom/internal/llm"
	"linkloom/internal/logging"
)

// FallbackNegative is used whenever negative keywords cannot be generated.
var FallbackNegative = []string{"airdrop", "giveaway", "marketing", "community manager"}

var (
	jsonArray  = regexp.MustCompile(`(?s)\[.*\]`)
	jsonObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// Options tune the seed prompt. Empty fields use prompt defaults.
type Options struct {
	Audience    string  `json:"audience,omitempty"`
	Region      string  `json:"region,omitempty"`
	Seniority   string  `json:"seniority,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Seeder generates seed plans with a language model.
type Seeder struct {
	provider  llm.Provider
	maxTokens int
}

func NewSeeder(p llm.Provider, maxTokens int) *Seeder {
	return &Seeder{provider: p, maxTokens: maxTokens}
}

// Generate asks the model for a plan for query and normalizes the reply.
func (s *Seeder) Generate(ctx context.Context, query string, opts Options) (Plan, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Plan{}, fmt.Errorf("query is required")
	}
	if s == nil || s.provider == nil {
		return Plan{}, llm.ErrDisabled
	}
	temp := opts.Temperature
	if temp <= 0 {
		temp = 0.2
	}
	req := llm.UserPrompt(systemPrompt, userPrompt(query, opts))
	req.JSON = true
	req.Schema = &llm.Schema{Name: "seed_plan_reply", Definition: replySchema}
	req.Temperature = temp
	req.MaxTokens = s.maxTokens

	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		return Plan{}, fmt.Errorf("generate seed plan: %w", err)
	}
	plan := Normalize(query, decodeLenient(resp.Text()))

	b, err := json.Marshal(plan)
	if err != nil {
		return Plan{}, err
	}
	if err := llm.ValidateJSON(&llm.Schema{Name: "seed-plan", Definition: planSchema}, b); err != nil {
		return Plan{}, fmt.Errorf("seed plan: %w", err)
	}
	logging.Info("seed_plan", map[string]any{
		"query":      query,
		"farcaster":  len(plan.Seeds.Farcaster),
		"twitter":    len(plan.Seeds.Twitter),
		"candidates": len(plan.Candidates),
	})
	return plan, nil
}

// decodeLenient parses text as a JSON object, falling back to the first
// {...} span, then to an empty object.
func decodeLenient(text string) any {
	var doc any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &doc); err == nil {
		return doc
	}
	if m := jsonObject.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &doc); err == nil {
			return doc
		}
	}
	return map[string]any{}
}

// NegativeKeywords asks the model for terms that mark off-topic profiles.
// It never fails: any problem yields FallbackNegative.
func NegativeKeywords(ctx context.Context, p llm.Provider, topic string) []string {
	fallback := append([]string(nil), FallbackNegative...)
	if p == nil {
		return fallback
	}
	req := llm.UserPrompt("", fmt.Sprintf(negativePrompt, topic))
	req.Temperature = 0.2
	resp, err := p.Generate(ctx, req)
	if err != nil {
		logging.Warn("negative_keywords_failed", map[string]any{"topic": topic, "error": err.Error()})
		return fallback
	}
	m := jsonArray.FindString(resp.Text())
	if m == "" {
		return fallback
	}
	var words []string
	if err := json.Unmarshal([]byte(m), &words); err != nil {
		return fallback
	}
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
