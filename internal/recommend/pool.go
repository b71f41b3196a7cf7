package recommend

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"linkloom/internal/logging"
	"linkloom/internal/memclient"
	"linkloom/internal/model"
)

// Pool is the set of candidates found across all seeds' followers.
type Pool struct {
	mu   sync.Mutex
	byID map[string]*model.Candidate
	// seeds whose follower fetch succeeded
	fetched []string
}

func newPool() *Pool {
	return &Pool{byID: make(map[string]*model.Candidate)}
}

// BuildPool fetches up to maxPerSeed followers for every seed, at most
// concurrency at a time, and tallies how many seeds each follower follows.
// A seed whose fetch fails is logged and skipped.
func BuildPool(ctx context.Context, src memclient.FollowerSource, seeds []string, maxPerSeed, concurrency int) *Pool {
	p := newPool()
	if concurrency < 1 {
		concurrency = 1
	}
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, seed := range seeds {
		g.Go(func() error {
			followers, err := src.GetAllFollowers(ctx, seed, maxPerSeed)
			if err != nil {
				logging.Warn("seed_fetch_failed", map[string]any{"seed": seed, "error": err.Error()})
				return nil
			}
			p.merge(seed, followers)
			logging.Debug("seed_fetched", map[string]any{"seed": seed, "followers": len(followers)})
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(p.fetched)
	return p
}

// merge adds one seed's followers. A follower listed twice under the same
// seed still counts once.
func (p *Pool) merge(seed string, followers []model.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[string]struct{}, len(followers))
	for _, f := range followers {
		if f.ID == "" {
			continue
		}
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		if c, ok := p.byID[f.ID]; ok {
			c.SeedCount++
			continue
		}
		p.byID[f.ID] = &model.Candidate{Profile: f, SeedCount: 1}
	}
	p.fetched = append(p.fetched, seed)
}

// Len is the number of unique candidates.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}

// Fetched lists the seeds whose followers were retrieved, sorted.
func (p *Pool) Fetched() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.fetched...)
}

// Get returns the candidate with the given follower id.
func (p *Pool) Get(id string) (model.Candidate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.byID[id]
	if !ok {
		return model.Candidate{}, false
	}
	return *c, true
}

// TopBySeedCount returns up to k candidates with SeedCount >= minSeedFollows,
// most-followed first, ties by id. k <= 0 means no limit.
func (p *Pool) TopBySeedCount(minSeedFollows, k int) []model.Candidate {
	p.mu.Lock()
	out := make([]model.Candidate, 0, len(p.byID))
	for _, c := range p.byID {
		if c.SeedCount >= minSeedFollows {
			out = append(out, *c)
		}
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeedCount != out[j].SeedCount {
			return out[i].SeedCount > out[j].SeedCount
		}
		return out[i].Profile.ID < out[j].Profile.ID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
