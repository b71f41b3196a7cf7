package model

import (
	"math"
	"regexp"
	"strings"

	"linkloom/internal/util"
)

// Weights of the final score. Graph signal first, then text, then popularity.
const (
	seedWeight        = 0.5
	keywordWeight     = 0.35
	credibilityWeight = 0.15

	// seedSaturation is the seed count treated as maximal overlap.
	seedSaturation = 5
	// neutralKeywordScore is used when no keywords are supplied.
	neutralKeywordScore = 0.5
)

// KeywordScore matches keywords against bio, case-insensitively.
// Any negative keyword vetoes the bio with 0.
func KeywordScore(bio string, keywords, negative []string) float64 {
	if util.ContainsAnyCaseInsensitive(bio, negative) {
		return 0
	}
	if len(keywords) == 0 {
		return neutralKeywordScore
	}
	lb := strings.ToLower(bio)
	matches := 0
	for _, k := range keywords {
		if strings.Contains(lb, strings.ToLower(k)) {
			matches++
		}
	}
	return math.Min(1, float64(matches)/float64(len(keywords)))
}

// Credibility log-compresses a follower count: 10 ≈ 0.33, 100 ≈ 0.66, 1000+ = 1.
func Credibility(followers int) float64 {
	if followers < 0 {
		followers = 0
	}
	return math.Min(1, math.Log10(float64(followers)+10)/3)
}

// SeedOverlap normalizes the number of seeds a candidate follows.
func SeedOverlap(seedCount int) float64 {
	if seedCount < 0 {
		return 0
	}
	return math.Min(1, float64(seedCount)/seedSaturation)
}

// Rank scores a candidate and applies both thresholds.
func Rank(in ScoringInput, th Thresholds) ScoringResult {
	kw := KeywordScore(in.Bio, in.Keywords, in.Negative)
	cred := Credibility(in.Followers)
	score := seedWeight*SeedOverlap(in.SeedCount) + keywordWeight*kw + credibilityWeight*cred
	return ScoringResult{
		Score:  score,
		Passes: in.SeedCount >= th.MinSeedFollows && score >= th.MinScore,
		Why: Why{
			Seeds:        in.SeedCount,
			KeywordScore: kw,
			Credibility:  cred,
			Followers:    in.Followers,
		},
	}
}

var stopWords = map[string]struct{}{
	"in": {}, "the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"of": {}, "to": {}, "for": {}, "with": {}, "on": {}, "at": {},
}

var nonWord = regexp.MustCompile(`[^\w]`)

// ExtractKeywords turns a free-text topic into match keywords.
func ExtractKeywords(topic string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(topic)) {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, nonWord.ReplaceAllString(w, ""))
	}
	return util.UniqueStrings(out)
}
