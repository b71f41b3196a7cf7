package model

// Profile is one follower row as returned by the follower graph API.
type Profile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	DisplayName    string `json:"displayName,omitempty"`
	Bio            string `json:"bio,omitempty"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	FollowersCount int    `json:"followersCount,omitempty"`
	FollowingCount int    `json:"followingCount,omitempty"`
	PostsCount     int    `json:"postsCount,omitempty"`
	Location       string `json:"location,omitempty"`
	ExternalURL    string `json:"externalUrl,omitempty"`
}

// Candidate is a profile seen in at least one seed's follower list.
// SeedCount is the number of seeds it was seen under.
type Candidate struct {
	Profile   Profile
	SeedCount int
}

// Thresholds gate which scored candidates pass.
type Thresholds struct {
	MinSeedFollows int     `json:"minSeedFollows" yaml:"minSeedFollows"`
	MinScore       float64 `json:"minScore" yaml:"minScore"`
}

// Caps bound how much of the follower graph a search touches.
type Caps struct {
	MaxSeedFollowersPerSeed int `json:"maxSeedFollowersPerSeed" yaml:"maxSeedFollowersPerSeed"`
	HydrateTopK             int `json:"hydrateTopK" yaml:"hydrateTopK"`
}

// ScoringInput is derived per candidate at scoring time.
type ScoringInput struct {
	SeedCount int
	Bio       string
	Followers int
	Keywords  []string
	Negative  []string
}

// Why explains a score with the exact values that produced it.
type Why struct {
	Seeds        int     `json:"seeds"`
	KeywordScore float64 `json:"keywordScore"`
	Credibility  float64 `json:"credibility"`
	Followers    int     `json:"followers"`
}

// ScoringResult is the output of Rank.
type ScoringResult struct {
	Score  float64
	Passes bool
	Why    Why
}

// RankedCandidate is what a search returns for one profile.
type RankedCandidate struct {
	FID         int64   `json:"fid"`
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"displayName,omitempty"`
	Bio         string  `json:"bio,omitempty"`
	PfpURL      string  `json:"pfpUrl,omitempty"`
	Score       float64 `json:"score"`
	Why         Why     `json:"why"`
}
