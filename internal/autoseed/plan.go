// Package autoseed turns a free-text query into a seed plan using a language
// model, then reshapes whatever the model returned into a valid Plan.
package autoseed

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"linkloom/internal/model"
	"linkloom/internal/util"
)

const (
	maxFarcasterSeeds = 5
	maxTwitterSeeds   = 8
	maxCandidates     = 100
)

// Plan is a normalized seed plan.
type Plan struct {
	Topic      string           `json:"topic"`
	Keywords   Keywords         `json:"normalized_keywords"`
	Seeds      Seeds            `json:"seeds"`
	Candidates []SeedCandidate  `json:"candidates"`
	Thresholds model.Thresholds `json:"thresholds"`
	Caps       model.Caps       `json:"caps"`
	Notes      []string         `json:"notes"`
}

type Keywords struct {
	Positive []string `json:"positive"`
	Weak     []string `json:"weak"`
	Negative []string `json:"negative"`
}

type Seeds struct {
	Farcaster []string `json:"farcaster"`
	Twitter   []string `json:"twitter"`
}

// SeedCandidate is a handle the model was not confident enough to seed with.
type SeedCandidate struct {
	Platform   string   `json:"platform"`
	Handle     string   `json:"handle"`
	Type       string   `json:"type,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// Normalize reshapes decoded model output into a Plan. It accepts the
// alternative key names models tend to produce and always returns a plan
// that satisfies the plan schema's bounds.
func Normalize(query string, raw any) Plan {
	doc := unwrapEnvelope(raw)

	p := Plan{Topic: strings.TrimSpace(str(doc["topic"]))}
	if p.Topic == "" {
		p.Topic = query
	}

	kw := obj(first(doc, "normalized_keywords", "keywords"))
	p.Keywords = Keywords{
		Positive: strs(kw["positive"]),
		Weak:     strs(kw["weak"]),
		Negative: strs(kw["negative"]),
	}

	seeds := obj(first(doc, "seeds", "seed_accounts"))
	fc, fcCand := platformBlock(seeds, "farcaster")
	tw, twCand := platformBlock(seeds, "twitter", "twitter_x")
	p.Seeds = Seeds{
		Farcaster: capList(normalizeHandles(fc, util.NormalizeFarcasterHandle), maxFarcasterSeeds),
		Twitter:   capList(normalizeHandles(tw, util.NormalizeHandle), maxTwitterSeeds),
	}

	p.Candidates = []SeedCandidate{}
	for _, h := range fcCand {
		p.Candidates = append(p.Candidates, SeedCandidate{Platform: "farcaster", Handle: normalizeFor("farcaster", h)})
	}
	for _, h := range twCand {
		p.Candidates = append(p.Candidates, SeedCandidate{Platform: "twitter", Handle: normalizeFor("twitter", h)})
	}
	if list, ok := doc["candidates"].([]any); ok {
		for _, item := range list {
			if c, ok := parseCandidate(obj(item)); ok {
				p.Candidates = append(p.Candidates, c)
			}
		}
	}
	p.Candidates = dedupeCandidates(p.Candidates)
	if len(p.Candidates) > maxCandidates {
		p.Candidates = p.Candidates[:maxCandidates]
	}

	th, hasTh := doc["thresholds"].(map[string]any)
	caps, hasCaps := doc["caps"].(map[string]any)
	if ges, ok := doc["graph_expansion_settings"].(map[string]any); ok {
		if !hasTh {
			th = map[string]any{
				"minSeedFollows": ges["min_followers"],
				"minScore":       ges["connection_threshold"],
			}
		}
		if !hasCaps {
			caps = map[string]any{
				"maxSeedFollowersPerSeed": ges["max_followers_per_seed"],
				"hydrateTopK":             ges["max_nodes"],
			}
		}
	}
	p.Thresholds = model.Thresholds{
		MinSeedFollows: max(1, toInt(th["minSeedFollows"], 3)),
		MinScore:       clampFloat(th["minScore"], 0, 1, 0.3),
	}
	p.Caps = model.Caps{
		MaxSeedFollowersPerSeed: clampInt(toInt(caps["maxSeedFollowersPerSeed"], 2000), 200, 5000),
		HydrateTopK:             clampInt(toInt(caps["hydrateTopK"], 300), 50, 1000),
	}

	p.Notes = strs(doc["notes"])
	return p
}

// unwrapEnvelope parses a raw Gemini REST response
// (candidates[0].content.parts[0].text) when one is passed in.
func unwrapEnvelope(raw any) map[string]any {
	doc := obj(raw)
	cands, ok := doc["candidates"].([]any)
	if !ok || len(cands) == 0 {
		return doc
	}
	parts, _ := obj(obj(obj(cands[0])["content"]))["parts"].([]any)
	if len(parts) == 0 {
		return doc
	}
	text, ok := obj(parts[0])["text"].(string)
	if !ok || text == "" {
		return doc
	}
	var inner map[string]any
	if err := json.Unmarshal([]byte(text), &inner); err != nil {
		return doc
	}
	return inner
}

// platformBlock reads either {seeds: [...], candidates: [...]} or a plain
// list under the first present key.
func platformBlock(seeds map[string]any, keys ...string) (handles, candidates []string) {
	for _, k := range keys {
		v, ok := seeds[k]
		if !ok || v == nil {
			continue
		}
		if block, ok := v.(map[string]any); ok {
			return strs(block["seeds"]), strs(block["candidates"])
		}
		return strs(v), nil
	}
	return nil, nil
}

func parseCandidate(c map[string]any) (SeedCandidate, bool) {
	platform := strings.ToLower(str(c["platform"]))
	handle := str(c["handle"])
	if platform == "" || handle == "" {
		return SeedCandidate{}, false
	}
	out := SeedCandidate{Platform: "twitter", Reason: str(c["reason"])}
	if platform == "farcaster" {
		out.Platform = "farcaster"
	}
	out.Handle = normalizeFor(out.Platform, handle)
	if out.Handle == "" {
		return SeedCandidate{}, false
	}
	out.Type = candidateType(str(c["type"]))
	if _, ok := c["confidence"]; ok && c["confidence"] != nil {
		conf := clampFloat(c["confidence"], 0, 1, 0)
		out.Confidence = &conf
	}
	return out, true
}

func candidateType(t string) string {
	s := strings.ToLower(strings.TrimSpace(t))
	switch {
	case s == "org" || s == "organization" || s == "company" || s == "protocol" || s == "project":
		return "org"
	case s == "lab" || strings.HasSuffix(s, "lab") || strings.Contains(s, "labs"):
		return "lab"
	case strings.Contains(s, "foundation"):
		return "foundation"
	case s == "maintainer" || s == "maintainers" || s == "core" || s == "core dev" || s == "developer" || s == "dev":
		return "maintainer"
	case s == "individual" || s == "person" || s == "researcher" || s == "engineer":
		return "individual"
	}
	return ""
}

func normalizeFor(platform, handle string) string {
	if platform == "farcaster" {
		return util.NormalizeFarcasterHandle(handle)
	}
	return util.NormalizeHandle(handle)
}

func dedupeCandidates(in []SeedCandidate) []SeedCandidate {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, c := range in {
		if c.Handle == "" {
			continue
		}
		key := c.Platform + "/" + c.Handle
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func normalizeHandles(in []string, norm func(string) string) []string {
	out := make([]string, 0, len(in))
	for _, h := range in {
		out = append(out, norm(h))
	}
	return util.UniqueStrings(out)
}

func capList(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func obj(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

// strs converts a JSON list to strings; anything else is an empty list.
func strs(v any) []string {
	list, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return append([]string{}, ss...)
		}
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, x := range list {
		if s := strings.TrimSpace(str(x)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt saturates at the int32 range so huge model values clamp high, not wrap.
func toInt(v any, def int) int {
	f, ok := toFloat(v)
	if !ok {
		return def
	}
	return int(math.Max(math.MinInt32, math.Min(math.MaxInt32, f)))
}

func clampFloat(v any, lo, hi, def float64) float64 {
	f, ok := toFloat(v)
	if !ok {
		return def
	}
	return math.Min(hi, math.Max(lo, f))
}

func clampInt(n, lo, hi int) int {
	return min(hi, max(lo, n))
}
