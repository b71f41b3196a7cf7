package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordScore(t *testing.T) {
	tests := []struct {
		name     string
		bio      string
		keywords []string
		negative []string
		want     float64
	}{
		{"all match", "Rust and Go developer", []string{"rust", "developer"}, nil, 1},
		{"half match", "I build rust backends", []string{"rust", "developer"}, nil, 0.5},
		{"case insensitive", "RUST", []string{"rust"}, nil, 1},
		{"no keywords is neutral", "anything", nil, nil, 0.5},
		{"negative vetoes matches", "rust dev, airdrop hunter", []string{"rust"}, []string{"Airdrop"}, 0},
		{"negative vetoes neutral", "giveaway", nil, []string{"giveaway"}, 0},
		{"empty negative ignored", "rust", []string{"rust"}, []string{""}, 1},
		{"no match", "gardening", []string{"rust"}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, KeywordScore(tt.bio, tt.keywords, tt.negative), 1e-9)
		})
	}
}

func TestCredibilityCurve(t *testing.T) {
	assert.InDelta(t, 1.0/3, Credibility(0), 1e-9)
	assert.InDelta(t, math.Log10(110)/3, Credibility(100), 1e-9)
	assert.Equal(t, 1.0, Credibility(100000))
	assert.Equal(t, 1.0, Credibility(5_000_000))
	assert.InDelta(t, 1.0/3, Credibility(-50), 1e-9)
}

func TestSeedOverlapSaturates(t *testing.T) {
	assert.InDelta(t, 0.2, SeedOverlap(1), 1e-9)
	assert.Equal(t, 1.0, SeedOverlap(5))
	assert.Equal(t, 1.0, SeedOverlap(12))
}

func TestRankWorkedExample(t *testing.T) {
	in := ScoringInput{SeedCount: 1, Bio: "I build rust backends", Followers: 150, Keywords: []string{"rust"}}
	res := Rank(in, Thresholds{MinSeedFollows: 1, MinScore: 0.5})
	cred := math.Log10(160) / 3
	assert.InDelta(t, 0.5*0.2+0.35*1+0.15*cred, res.Score, 1e-9)
	assert.InDelta(t, 0.56, res.Score, 0.01)
	assert.True(t, res.Passes)
	assert.Equal(t, Why{Seeds: 1, KeywordScore: 1, Credibility: cred, Followers: 150}, res.Why)
}

func TestRankThresholdsAreBothRequired(t *testing.T) {
	strong := ScoringInput{SeedCount: 1, Bio: "rust", Followers: 10000, Keywords: []string{"rust"}}
	res := Rank(strong, Thresholds{MinSeedFollows: 2, MinScore: 0})
	assert.False(t, res.Passes, "seed threshold must gate even with score above min")

	weak := ScoringInput{SeedCount: 5, Bio: "", Followers: 0, Keywords: []string{"rust"}}
	res = Rank(weak, Thresholds{MinSeedFollows: 1, MinScore: 0.9})
	assert.False(t, res.Passes)
}

func TestRankScoreAlwaysInUnitRange(t *testing.T) {
	for seeds := 0; seeds < 12; seeds++ {
		for _, f := range []int{0, 1, 9, 100, 1e4, 1e8} {
			for _, bio := range []string{"", "rust go", "airdrop rust"} {
				res := Rank(ScoringInput{
					SeedCount: seeds, Bio: bio, Followers: f,
					Keywords: []string{"rust", "go"}, Negative: []string{"airdrop"},
				}, Thresholds{})
				require.GreaterOrEqual(t, res.Score, 0.0)
				require.LessOrEqual(t, res.Score, 1.0)
			}
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("I'm looking for a Rust developer in the Rust ecosystem!")
	assert.Equal(t, []string{"im", "looking", "rust", "developer", "ecosystem"}, got)
	assert.Empty(t, ExtractKeywords("a an of"))
	assert.Empty(t, ExtractKeywords("   "))
}
