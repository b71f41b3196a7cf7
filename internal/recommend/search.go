// Package recommend finds accounts worth following for a topic by pooling
// the followers of seed accounts, filtering bios with a language model and
// ranking what remains.
package recommend

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"linkloom/internal/align"
	"linkloom/internal/autoseed"
	"linkloom/internal/config"
	"linkloom/internal/llm"
	"linkloom/internal/logging"
	"linkloom/internal/memclient"
	"linkloom/internal/metrics"
	"linkloom/internal/model"
	"linkloom/internal/store"
	"linkloom/internal/util"
)

var (
	ErrNoSeeds = errors.New("seeds with farcaster array is required")
	ErrNoTopic = errors.New("topic is required")
)

// Request is one topic search.
type Request struct {
	Seeds        []string          `json:"seeds"`
	Topic        string            `json:"topic"`
	Keywords     []string          `json:"keywords,omitempty"`
	Negative     []string          `json:"negative,omitempty"`
	Thresholds   *model.Thresholds `json:"thresholds,omitempty"`
	Caps         *model.Caps       `json:"caps,omitempty"`
	AutoNegative bool              `json:"autoNegative,omitempty"`
}

// Metadata describes how a result was produced.
type Metadata struct {
	RunID            string   `json:"runId"`
	TotalCandidates  int      `json:"totalCandidates"`
	SeedsUsed        []string `json:"seedsUsed"`
	SeedsFetched     []string `json:"seedsFetched"`
	TopicKeywords    []string `json:"topicKeywords"`
	Negative         []string `json:"negative"`
	Hydrated         int      `json:"hydrated"`
	Aligned          int      `json:"aligned"`
	Passed           int      `json:"passed"`
	Fallback         bool     `json:"fallback"`
	AlignmentSkipped bool     `json:"alignmentSkipped"`
	DurationMs       int64    `json:"durationMs"`
}

type Result struct {
	Candidates []model.RankedCandidate `json:"candidates"`
	Metadata   Metadata                `json:"metadata"`
}

// RunRecorder persists search history.
type RunRecorder interface {
	PutRun(ctx context.Context, r store.Run) error
}

// Searcher runs the discovery pipeline.
type Searcher struct {
	source  memclient.FollowerSource
	aligner *align.Aligner
	// negative keyword generation; nil disables it
	llm     llm.Provider
	history RunRecorder
	cfg     config.SearchConfig
	now     func() time.Time
}

// NewSearcher wires a Searcher. aligner, provider and history may be nil.
func NewSearcher(src memclient.FollowerSource, aligner *align.Aligner, provider llm.Provider, history RunRecorder, cfg config.SearchConfig) *Searcher {
	def := config.Default().Search
	if cfg.MaxReturn <= 0 {
		cfg.MaxReturn = def.MaxReturn
	}
	if cfg.MinResults < 0 {
		cfg.MinResults = 0
	}
	if cfg.FallbackTopK <= 0 {
		cfg.FallbackTopK = def.FallbackTopK
	}
	if cfg.SeedConcurrency <= 0 {
		cfg.SeedConcurrency = def.SeedConcurrency
	}
	if cfg.Thresholds == (model.Thresholds{}) {
		cfg.Thresholds = def.Thresholds
	}
	if cfg.Caps == (model.Caps{}) {
		cfg.Caps = def.Caps
	}
	return &Searcher{source: src, aligner: aligner, llm: provider, history: history, cfg: cfg, now: time.Now}
}

// Validate checks a request without touching any external service.
func (r Request) Validate() error {
	if len(normalizeSeeds(r.Seeds)) == 0 {
		return ErrNoSeeds
	}
	if strings.TrimSpace(r.Topic) == "" {
		return ErrNoTopic
	}
	return nil
}

// Search runs the whole pipeline within the configured time budget. When
// the budget runs out the pipeline finishes with what it has; only a
// canceled caller context is an error.
func (s *Searcher) Search(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	start := s.now()
	metrics.SearchRuns.Inc()
	defer metrics.ObserveSearchDuration(start)

	budgetCtx := ctx
	if s.cfg.TimeBudget > 0 {
		var cancel context.CancelFunc
		budgetCtx, cancel = context.WithTimeout(ctx, s.cfg.TimeBudget)
		defer cancel()
	}

	seeds := normalizeSeeds(req.Seeds)
	topic := strings.TrimSpace(req.Topic)
	th := mergeThresholds(req.Thresholds, s.cfg.Thresholds)
	caps := mergeCaps(req.Caps, s.cfg.Caps)
	keywords := util.UniqueStrings(req.Keywords)
	if len(keywords) == 0 {
		keywords = model.ExtractKeywords(topic)
	}
	negative := util.UniqueStrings(req.Negative)
	if len(negative) == 0 && (req.AutoNegative || s.cfg.AutoNegative) && s.llm != nil {
		negative = autoseed.NegativeKeywords(budgetCtx, s.llm, topic)
	}

	md := Metadata{
		RunID:         uuid.NewString(),
		SeedsUsed:     seeds,
		TopicKeywords: nonNil(keywords),
		Negative:      nonNil(negative),
	}
	logging.Info("search_start", map[string]any{"run_id": md.RunID, "seeds": seeds, "topic": topic, "keywords": keywords})

	pool := BuildPool(budgetCtx, s.source, seeds, caps.MaxSeedFollowersPerSeed, s.cfg.SeedConcurrency)
	md.TotalCandidates = pool.Len()
	md.SeedsFetched = nonNil(pool.Fetched())
	metrics.PoolSize.Observe(float64(md.TotalCandidates))

	hydrated := pool.TopBySeedCount(th.MinSeedFollows, caps.HydrateTopK)
	md.Hydrated = len(hydrated)

	verdicts, skipped := s.align(budgetCtx, hydrated, topic, negative)
	md.AlignmentSkipped = skipped

	var passing []model.RankedCandidate
	for _, c := range hydrated {
		if v, ok := verdicts[c.Profile.ID]; ok && !v.Aligned {
			continue
		}
		md.Aligned++
		res := model.Rank(scoringInput(c, keywords, negative), th)
		if res.Passes {
			passing = append(passing, ranked(c, res))
		}
	}
	md.Passed = len(passing)
	out := topByScore(passing, s.cfg.MaxReturn)

	if len(passing) < s.cfg.MinResults && md.TotalCandidates > 0 {
		md.Fallback = true
		metrics.SearchFallbacks.Inc()
		out = s.fallback(pool, keywords, negative, th)
	}

	if err := ctx.Err(); err != nil {
		metrics.SearchErrors.Inc()
		s.record(ctx, md, topic, len(out), start, err)
		return Result{}, err
	}
	md.DurationMs = s.now().Sub(start).Milliseconds()
	s.record(ctx, md, topic, len(out), start, nil)
	logging.Info("search_done", map[string]any{
		"run_id": md.RunID, "pool": md.TotalCandidates, "hydrated": md.Hydrated,
		"aligned": md.Aligned, "returned": len(out), "fallback": md.Fallback, "duration_ms": md.DurationMs,
	})
	return Result{Candidates: out, Metadata: md}, nil
}

// align classifies hydrated bios unless too little of the budget is left.
// Everything missing from the returned map counts as aligned.
func (s *Searcher) align(ctx context.Context, cands []model.Candidate, topic string, negative []string) (map[string]align.Alignment, bool) {
	if s.aligner == nil || len(cands) == 0 {
		return nil, false
	}
	if deadline, ok := ctx.Deadline(); ok && deadline.Sub(s.now()) < s.cfg.MinAlignBudget {
		logging.Warn("alignment_skipped", map[string]any{"remaining_ms": deadline.Sub(s.now()).Milliseconds()})
		return nil, true
	}
	items := make([]align.Item, len(cands))
	for i, c := range cands {
		items[i] = align.Item{ID: c.Profile.ID, Username: c.Profile.Username, Bio: c.Profile.Bio}
	}
	return s.aligner.Align(ctx, items, topic, negative), false
}

// fallback scores the most-followed slice of the pool with no thresholds
// and keeps the best by raw score.
func (s *Searcher) fallback(pool *Pool, keywords, negative []string, th model.Thresholds) []model.RankedCandidate {
	slice := pool.TopBySeedCount(0, s.cfg.FallbackTopK)
	all := make([]model.RankedCandidate, 0, len(slice))
	for _, c := range slice {
		all = append(all, ranked(c, model.Rank(scoringInput(c, keywords, negative), th)))
	}
	return topByScore(all, s.cfg.MaxReturn)
}

func (s *Searcher) record(ctx context.Context, md Metadata, topic string, returned int, start time.Time, err error) {
	if s.history == nil {
		return
	}
	r := store.Run{
		ID:        md.RunID,
		Topic:     topic,
		Seeds:     md.SeedsUsed,
		Keywords:  md.TopicKeywords,
		Total:     md.TotalCandidates,
		Returned:  returned,
		Fallback:  md.Fallback,
		Duration:  s.now().Sub(start),
		CreatedAt: start.UTC(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	// the caller's context may already be done
	if perr := s.history.PutRun(context.WithoutCancel(ctx), r); perr != nil {
		logging.Warn("history_write_failed", map[string]any{"run_id": md.RunID, "error": perr.Error()})
	}
}

// mergeCaps fills unset (<= 0) request caps field by field from def.
func mergeCaps(req *model.Caps, def model.Caps) model.Caps {
	if req == nil {
		return def
	}
	out := *req
	if out.MaxSeedFollowersPerSeed <= 0 {
		out.MaxSeedFollowersPerSeed = def.MaxSeedFollowersPerSeed
	}
	if out.HydrateTopK <= 0 {
		out.HydrateTopK = def.HydrateTopK
	}
	return out
}

// mergeThresholds fills an unset MinSeedFollows from def. A zero MinScore
// is kept: it means no score floor.
func mergeThresholds(req *model.Thresholds, def model.Thresholds) model.Thresholds {
	if req == nil {
		return def
	}
	out := *req
	if out.MinSeedFollows <= 0 {
		out.MinSeedFollows = def.MinSeedFollows
	}
	if out.MinScore < 0 {
		out.MinScore = 0
	}
	return out
}

func scoringInput(c model.Candidate, keywords, negative []string) model.ScoringInput {
	return model.ScoringInput{
		SeedCount: c.SeedCount,
		Bio:       c.Profile.Bio,
		Followers: c.Profile.FollowersCount,
		Keywords:  keywords,
		Negative:  negative,
	}
}

func ranked(c model.Candidate, res model.ScoringResult) model.RankedCandidate {
	fid, _ := strconv.ParseInt(c.Profile.ID, 10, 64)
	return model.RankedCandidate{
		FID:         fid,
		ID:          c.Profile.ID,
		Username:    c.Profile.Username,
		DisplayName: c.Profile.DisplayName,
		Bio:         c.Profile.Bio,
		PfpURL:      c.Profile.AvatarURL,
		Score:       res.Score,
		Why:         res.Why,
	}
}

// topByScore sorts by score descending, ties by id, and truncates to n.
func topByScore(in []model.RankedCandidate, n int) []model.RankedCandidate {
	out := append([]model.RankedCandidate{}, in...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func normalizeSeeds(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, util.NormalizeFarcasterHandle(s))
	}
	return util.UniqueStrings(out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
