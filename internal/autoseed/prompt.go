package autoseed

import "fmt"

const systemPrompt = `You are SeedSynth, an expert topic-to-seed generator for LinkLoom.
Return STRICT JSON only with EXACT keys and shapes below. No extra fields. No prose.

Keys and rules:
- topic: string
- normalized_keywords: { positive: string[]; weak: string[]; negative: string[] }
- seeds: { farcaster: string[]; twitter: string[] }
- candidates: { platform: "farcaster"|"twitter"; handle: string; type?: "org"|"lab"|"foundation"|"maintainer"|"individual"; confidence?: number; reason?: string }[]
- thresholds: { minSeedFollows: number; minScore: number }
- caps: { maxSeedFollowersPerSeed: number; hydrateTopK: number }
- notes: string[]

Constraints:
- Handles must be usernames without @.
- Farcaster usernames must exclude suffixes like ".eth", ".base.eth", ".farcaster", ".warpcast" (use only the root handle).
- Prefer orgs/labs/foundations; include a few key maintainers if essential.
- Keep seeds small but high-quality: up to 5 for Farcaster and up to 8 for Twitter.
- If unsure about a handle, put it in candidates with low confidence and do not include in seeds.
- Do not use alternative key names like keywords, seed_accounts, twitter_x, or nested objects for platforms.`

func userPrompt(query string, opts Options) string {
	return fmt.Sprintf(`Task: Generate seeds for a topic search in a graph discovery app.
User query: %q
Context: audience=%s, region=%s, seniority=%s.
Return JSON only per schema.`, query, orDefault(opts.Audience, "builders/recruiters"),
		orDefault(opts.Region, "global"), orDefault(opts.Seniority, "any"))
}

const negativePrompt = `Given the topic: %q

Generate a list of negative keywords that should be filtered out when searching for relevant profiles. These are terms that indicate the person is NOT genuinely interested in the topic, but rather:
- Marketing/promotional accounts
- Spam/bot accounts
- Generic community managers
- Airdrop hunters
- Unrelated interests

Return ONLY a JSON array of 5-10 negative keywords, nothing else.
Example: ["airdrop", "giveaway", "marketing", "community manager", "follow for follow"]`

func stringArray() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

func object(props map[string]any) map[string]any {
	return map[string]any{"type": "object", "properties": props, "additionalProperties": false}
}

// replySchema constrains the model's output to the plan's shape. It sets no
// bounds or required keys; Normalize repairs counts and fills defaults.
var replySchema = object(map[string]any{
	"topic": map[string]any{"type": "string"},
	"normalized_keywords": object(map[string]any{
		"positive": stringArray(),
		"weak":     stringArray(),
		"negative": stringArray(),
	}),
	"seeds": object(map[string]any{
		"farcaster": stringArray(),
		"twitter":   stringArray(),
	}),
	"candidates": map[string]any{
		"type": "array",
		"items": object(map[string]any{
			"platform":   map[string]any{"type": "string", "enum": []any{"farcaster", "twitter"}},
			"handle":     map[string]any{"type": "string"},
			"type":       map[string]any{"type": "string", "enum": []any{"org", "lab", "foundation", "maintainer", "individual"}},
			"confidence": map[string]any{"type": "number"},
			"reason":     map[string]any{"type": "string"},
		}),
	},
	"thresholds": object(map[string]any{
		"minSeedFollows": map[string]any{"type": "integer"},
		"minScore":       map[string]any{"type": "number"},
	}),
	"caps": object(map[string]any{
		"maxSeedFollowersPerSeed": map[string]any{"type": "integer"},
		"hydrateTopK":             map[string]any{"type": "integer"},
	}),
	"notes": stringArray(),
})

// planSchema bounds a normalized Plan.
var planSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"topic": map[string]any{"type": "string", "minLength": 1},
		"normalized_keywords": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"positive": stringArray(),
				"weak":     stringArray(),
				"negative": stringArray(),
			},
			"required": []any{"positive", "weak", "negative"},
		},
		"seeds": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"farcaster": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "maxItems": maxFarcasterSeeds},
				"twitter":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "maxItems": maxTwitterSeeds},
			},
			"required": []any{"farcaster", "twitter"},
		},
		"candidates": map[string]any{
			"type":     "array",
			"maxItems": maxCandidates,
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"platform":   map[string]any{"type": "string", "enum": []any{"farcaster", "twitter"}},
					"handle":     map[string]any{"type": "string", "minLength": 1},
					"type":       map[string]any{"type": "string", "enum": []any{"org", "lab", "foundation", "maintainer", "individual"}},
					"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					"reason":     map[string]any{"type": "string"},
				},
				"required": []any{"platform", "handle"},
			},
		},
		"thresholds": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"minSeedFollows": map[string]any{"type": "integer", "minimum": 1},
				"minScore":       map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			},
			"required": []any{"minSeedFollows", "minScore"},
		},
		"caps": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"maxSeedFollowersPerSeed": map[string]any{"type": "integer", "minimum": 200, "maximum": 5000},
				"hydrateTopK":             map[string]any{"type": "integer", "minimum": 50, "maximum": 1000},
			},
			"required": []any{"maxSeedFollowersPerSeed", "hydrateTopK"},
		},
		"notes": stringArray(),
	},
	"required": []any{"topic", "normalized_keywords", "seeds", "candidates", "thresholds", "caps", "notes"},
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
