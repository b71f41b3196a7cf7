// Package align asks a language model which candidate bios fit a topic.
// Classification fails open: anything the model does not answer for
// counts as aligned.
package align

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"linkloom/internal/llm"
	"linkloom/internal/logging"
	"linkloom/internal/metrics"
)

const DefaultChunkSize = 100

const systemPrompt = "You are an expert at analyzing user profiles for relevance. Respond ONLY with valid JSON arrays."

var jsonArray = regexp.MustCompile(`(?s)\[.*\]`)

// Item is one profile to classify.
type Item struct {
	ID       string
	Username string
	Bio      string
}

// Alignment is the verdict for one profile.
type Alignment struct {
	Aligned    bool    `json:"aligned"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

const (
	reasonParse   = "parse error"
	reasonError   = "error during processing"
	reasonSkipped = "not processed"
	reasonMissing = "not classified"
)

// Aligner classifies bios in fixed-size chunks, one model call per chunk.
type Aligner struct {
	provider  llm.Provider
	chunkSize int
}

// New returns an Aligner. A nil provider disables classification.
func New(p llm.Provider, chunkSize int) *Aligner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Aligner{provider: p, chunkSize: chunkSize}
}

// Align returns a verdict for every item, keyed by ID. Once ctx is done
// the remaining chunks are not sent and their members count as aligned.
func (a *Aligner) Align(ctx context.Context, items []Item, topic string, negative []string) map[string]Alignment {
	out := make(map[string]Alignment, len(items))
	if len(items) == 0 {
		return out
	}
	if a == nil || a.provider == nil {
		markAll(out, items, Alignment{Aligned: true, Confidence: 1})
		return out
	}

	for start := 0; start < len(items); start += a.chunkSize {
		chunk := items[start:min(start+a.chunkSize, len(items))]
		if ctx.Err() != nil {
			metrics.IncAlignChunk("skipped")
			markAll(out, chunk, Alignment{Aligned: true, Confidence: 0.5, Reason: reasonSkipped})
			continue
		}
		a.alignChunk(ctx, chunk, topic, negative, out)
	}
	return out
}

func (a *Aligner) alignChunk(ctx context.Context, chunk []Item, topic string, negative []string, out map[string]Alignment) {
	req := llm.UserPrompt(systemPrompt, chunkPrompt(chunk, topic, negative))
	req.JSON = true
	req.Temperature = 0.2

	resp, err := a.provider.Generate(ctx, req)
	if err != nil {
		metrics.IncAlignChunk("error")
		logging.Warn("align_chunk_failed", map[string]any{"size": len(chunk), "error": err.Error()})
		markAll(out, chunk, Alignment{Aligned: true, Confidence: 0.5, Reason: reasonError})
		return
	}

	verdicts, ok := parseVerdicts(resp.Text())
	if !ok {
		metrics.IncAlignChunk("parse_error")
		logging.Warn("align_chunk_unparseable", map[string]any{"size": len(chunk)})
		markAll(out, chunk, Alignment{Aligned: true, Confidence: 0.5, Reason: reasonParse})
		return
	}

	aligned := 0
	for _, it := range chunk {
		v, found := verdicts[it.ID]
		if !found {
			v = Alignment{Aligned: true, Confidence: 0.5, Reason: reasonMissing}
		}
		if v.Aligned {
			aligned++
		}
		out[it.ID] = v
	}
	metrics.IncAlignChunk("ok")
	logging.Debug("align_chunk", map[string]any{"size": len(chunk), "aligned": aligned})
}

type verdict struct {
	ID         json.RawMessage `json:"id"`
	Aligned    *bool           `json:"aligned"`
	Confidence *float64        `json:"confidence"`
	Reason     string          `json:"reason"`
}

// parseVerdicts extracts the first JSON array from text. IDs may come back
// as strings or numbers.
func parseVerdicts(text string) (map[string]Alignment, bool) {
	m := jsonArray.FindString(text)
	if m == "" {
		return nil, false
	}
	var raw []verdict
	if err := json.Unmarshal([]byte(m), &raw); err != nil {
		return nil, false
	}
	out := make(map[string]Alignment, len(raw))
	for _, v := range raw {
		id := strings.Trim(strings.TrimSpace(string(v.ID)), `"`)
		if id == "" || id == "null" {
			continue
		}
		al := Alignment{Confidence: 0.5, Reason: v.Reason}
		if v.Aligned != nil {
			al.Aligned = *v.Aligned
		}
		if v.Confidence != nil {
			al.Confidence = *v.Confidence
		}
		out[id] = al
	}
	return out, true
}

func chunkPrompt(chunk []Item, topic string, negative []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: Analyze %d Farcaster profiles for relevance to a topic.\n\n", len(chunk))
	fmt.Fprintf(&b, "Topic: %q\n", topic)
	fmt.Fprintf(&b, "Negative keywords: %s\n\nPROFILES:\n", strings.Join(negative, ", "))
	for i, it := range chunk {
		bio := it.Bio
		if strings.TrimSpace(bio) == "" {
			bio = "N/A"
		}
		fmt.Fprintf(&b, "%d. ID: %s\n   Username: @%s\n   Bio: %s\n\n", i+1, it.ID, it.Username, bio)
	}
	fmt.Fprintf(&b, "Return a JSON array for ALL %d profiles:\n", len(chunk))
	b.WriteString(`[{"id": "123", "aligned": true, "confidence": 0.85, "reason": "brief"}, ...]`)
	return b.String()
}

func markAll(out map[string]Alignment, items []Item, a Alignment) {
	for _, it := range items {
		out[it.ID] = a
	}
}
