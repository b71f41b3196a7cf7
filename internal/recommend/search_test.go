package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkloom/internal/align"
	"linkloom/internal/config"
	"linkloom/internal/llm"
	"linkloom/internal/model"
	"linkloom/internal/store"
)

type fakeSource struct {
	mu        sync.Mutex
	followers map[string][]model.Profile
	fail      map[string]bool
	calls     []string
	maxSeen   []int
}

func (f *fakeSource) GetAllFollowers(ctx context.Context, username string, max int) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, username)
	f.maxSeen = append(f.maxSeen, max)
	if f.fail[username] {
		return nil, errors.New("upstream 500")
	}
	list := f.followers[username]
	if len(list) > max {
		list = list[:max]
	}
	return list, nil
}

func profile(id, bio string, followers int) model.Profile {
	return model.Profile{ID: id, Username: "u" + id, Bio: bio, FollowersCount: followers}
}

type recorder struct {
	mu   sync.Mutex
	runs []store.Run
}

func (r *recorder) PutRun(_ context.Context, run store.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func testConfig() config.SearchConfig {
	cfg := config.Default().Search
	cfg.TimeBudget = time.Minute
	cfg.MinAlignBudget = time.Second
	return cfg
}

func TestBuildPoolTalliesSeeds(t *testing.T) {
	src := &fakeSource{followers: map[string][]model.Profile{
		"alice": {profile("1", "", 0), profile("2", "", 0), profile("2", "", 0), {Username: "noid"}},
		"bob":   {profile("2", "", 0), profile("3", "", 0)},
		"carol": {profile("2", "", 0)},
	}, fail: map[string]bool{"dave": true}}

	pool := BuildPool(context.Background(), src, []string{"alice", "bob", "carol", "dave"}, 100, 3)

	assert.Equal(t, 3, pool.Len())
	assert.Equal(t, []string{"alice", "bob", "carol"}, pool.Fetched())
	c, ok := pool.Get("2")
	require.True(t, ok)
	assert.Equal(t, 3, c.SeedCount)
	c, _ = pool.Get("1")
	assert.Equal(t, 1, c.SeedCount)

	top := pool.TopBySeedCount(1, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "2", top[0].Profile.ID)
	assert.Equal(t, "1", top[1].Profile.ID)

	assert.Len(t, pool.TopBySeedCount(2, 0), 1)
	assert.Len(t, pool.TopBySeedCount(0, 0), 3)
}

func TestSearchValidatesBeforeFetching(t *testing.T) {
	src := &fakeSource{}
	s := NewSearcher(src, nil, nil, nil, testConfig())

	_, err := s.Search(context.Background(), Request{Seeds: []string{" ", "@"}, Topic: "rust"})
	require.ErrorIs(t, err, ErrNoSeeds)
	_, err = s.Search(context.Background(), Request{Seeds: []string{"alice"}, Topic: "  "})
	require.ErrorIs(t, err, ErrNoTopic)
	assert.Empty(t, src.calls)
}

// sevenStrong returns seven candidates followed by both seeds with on-topic bios.
func sevenStrong() map[string][]model.Profile {
	var shared []model.Profile
	for i := 1; i <= 7; i++ {
		shared = append(shared, profile(fmt.Sprint(i), "rust developer building tools", 1000))
	}
	weak := append([]model.Profile{profile("99", "gm airdrop hunter", 10)}, shared...)
	return map[string][]model.Profile{"alice": weak, "bob": shared}
}

func TestSearchRanksPassingCandidates(t *testing.T) {
	src := &fakeSource{followers: sevenStrong()}
	rec := &recorder{}
	cfg := testConfig()
	cfg.Caps = model.Caps{MaxSeedFollowersPerSeed: 50, HydrateTopK: 100}
	s := NewSearcher(src, nil, nil, rec, cfg)

	res, err := s.Search(context.Background(), Request{
		Seeds:      []string{"Alice.eth", "bob", "alice"},
		Topic:      "rust developer",
		Thresholds: &model.Thresholds{MinSeedFollows: 2, MinScore: 0.5},
	})
	require.NoError(t, err)

	assert.False(t, res.Metadata.Fallback)
	assert.Equal(t, []string{"alice", "bob"}, res.Metadata.SeedsUsed)
	assert.Equal(t, []string{"rust", "developer"}, res.Metadata.TopicKeywords)
	assert.Equal(t, 8, res.Metadata.TotalCandidates)
	assert.Equal(t, 7, res.Metadata.Hydrated)
	require.Len(t, res.Candidates, 7)
	assert.Equal(t, "1", res.Candidates[0].ID)
	assert.Equal(t, int64(1), res.Candidates[0].FID)
	assert.Equal(t, 2, res.Candidates[0].Why.Seeds)
	assert.InDelta(t, 0.5*0.4+0.35*1+0.15*1, res.Candidates[0].Score, 1e-9)
	assert.Equal(t, []int{50, 50}, src.maxSeen)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, res.Metadata.RunID, rec.runs[0].ID)
	assert.Equal(t, 7, rec.runs[0].Returned)
	assert.Empty(t, rec.runs[0].Error)
}

func TestSearchPartialCapsKeepDefaults(t *testing.T) {
	src := &fakeSource{followers: sevenStrong()}
	cfg := testConfig()
	cfg.Caps = model.Caps{MaxSeedFollowersPerSeed: 40, HydrateTopK: 300}
	s := NewSearcher(src, nil, nil, nil, cfg)

	res, err := s.Search(context.Background(), Request{
		Seeds:      []string{"alice", "bob"},
		Topic:      "rust developer",
		Caps:       &model.Caps{HydrateTopK: 100},
		Thresholds: &model.Thresholds{MinScore: 0.5},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{40, 40}, src.maxSeen)
	assert.Equal(t, 8, res.Metadata.TotalCandidates)
	// MinSeedFollows falls back to the default of 2, so the single-seed follower drops out
	assert.Equal(t, 7, res.Metadata.Hydrated)
	assert.Len(t, res.Candidates, 7)
}

func TestMergeCapsAndThresholds(t *testing.T) {
	def := model.Caps{MaxSeedFollowersPerSeed: 2000, HydrateTopK: 300}
	assert.Equal(t, def, mergeCaps(nil, def))
	assert.Equal(t, model.Caps{MaxSeedFollowersPerSeed: 500, HydrateTopK: 300},
		mergeCaps(&model.Caps{MaxSeedFollowersPerSeed: 500, HydrateTopK: -1}, def))

	dth := model.Thresholds{MinSeedFollows: 2, MinScore: 0.6}
	assert.Equal(t, dth, mergeThresholds(nil, dth))
	assert.Equal(t, model.Thresholds{MinSeedFollows: 2, MinScore: 0},
		mergeThresholds(&model.Thresholds{MinScore: -0.3}, dth))
	assert.Equal(t, model.Thresholds{MinSeedFollows: 1, MinScore: 0.2},
		mergeThresholds(&model.Thresholds{MinSeedFollows: 1, MinScore: 0.2}, dth))
}

func TestSearchAlignmentFiltersBios(t *testing.T) {
	src := &fakeSource{followers: sevenStrong()}
	mock := llm.NewMockProvider(llm.MockResponse{Content: `[{"id":"1","aligned":false},{"id":"2","aligned":false}]`})
	cfg := testConfig()
	cfg.MinResults = 3
	s := NewSearcher(src, align.New(mock, 100), nil, nil, cfg)

	res, err := s.Search(context.Background(), Request{Seeds: []string{"alice", "bob"}, Topic: "rust developer"})
	require.NoError(t, err)
	assert.Equal(t, 1, mock.CallCount())
	assert.Equal(t, 5, res.Metadata.Aligned)
	require.Len(t, res.Candidates, 5)
	for _, c := range res.Candidates {
		assert.NotContains(t, []string{"1", "2"}, c.ID)
	}
}

func TestSearchFallbackWhenTooFewPass(t *testing.T) {
	src := &fakeSource{followers: map[string][]model.Profile{
		"alice": {profile("1", "gm", 5), profile("2", "rust", 2000), profile("3", "nothing", 0)},
	}}
	s := NewSearcher(src, nil, nil, nil, testConfig())

	res, err := s.Search(context.Background(), Request{Seeds: []string{"alice"}, Topic: "rust developer"})
	require.NoError(t, err)
	assert.True(t, res.Metadata.Fallback)
	assert.Equal(t, 0, res.Metadata.Passed)
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, "2", res.Candidates[0].ID)
	for i := 1; i < len(res.Candidates); i++ {
		assert.GreaterOrEqual(t, res.Candidates[i-1].Score, res.Candidates[i].Score)
	}
}

func TestSearchFallbackRespectsMaxReturn(t *testing.T) {
	var list []model.Profile
	for i := 0; i < 80; i++ {
		list = append(list, profile(fmt.Sprintf("%03d", i), "", i))
	}
	src := &fakeSource{followers: map[string][]model.Profile{"alice": list}}
	cfg := testConfig()
	cfg.Caps.MaxSeedFollowersPerSeed = 100
	s := NewSearcher(src, nil, nil, nil, cfg)

	res, err := s.Search(context.Background(), Request{Seeds: []string{"alice"}, Topic: "zk"})
	require.NoError(t, err)
	assert.True(t, res.Metadata.Fallback)
	assert.Len(t, res.Candidates, 50)
	assert.Equal(t, "079", res.Candidates[0].ID)
}

func TestSearchEmptyPoolIsNotAnError(t *testing.T) {
	src := &fakeSource{fail: map[string]bool{"alice": true}}
	s := NewSearcher(src, nil, nil, nil, testConfig())
	res, err := s.Search(context.Background(), Request{Seeds: []string{"alice"}, Topic: "rust"})
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.False(t, res.Metadata.Fallback)
	assert.Empty(t, res.Metadata.SeedsFetched)
}

func TestSearchSkipsAlignmentWhenBudgetIsShort(t *testing.T) {
	src := &fakeSource{followers: sevenStrong()}
	mock := llm.NewMockProvider()
	cfg := testConfig()
	cfg.TimeBudget = 2 * time.Second
	cfg.MinAlignBudget = 5 * time.Second
	s := NewSearcher(src, align.New(mock, 100), nil, nil, cfg)

	res, err := s.Search(context.Background(), Request{Seeds: []string{"alice", "bob"}, Topic: "rust developer"})
	require.NoError(t, err)
	assert.True(t, res.Metadata.AlignmentSkipped)
	assert.Equal(t, 0, mock.CallCount())
	assert.Len(t, res.Candidates, 7)
}

func TestSearchAutoNegative(t *testing.T) {
	src := &fakeSource{followers: sevenStrong()}
	mock := llm.NewMockProvider(llm.MockResponse{Content: `["tools"]`})
	s := NewSearcher(src, nil, mock, nil, testConfig())

	res, err := s.Search(context.Background(), Request{Seeds: []string{"alice", "bob"}, Topic: "rust developer", AutoNegative: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"tools"}, res.Metadata.Negative)
	// every strong bio mentions "tools", so nothing passes and the fallback answers
	assert.True(t, res.Metadata.Fallback)
	for _, c := range res.Candidates {
		assert.Equal(t, 0.0, c.Why.KeywordScore)
	}
}

func TestSearchCanceledContext(t *testing.T) {
	src := &fakeSource{followers: sevenStrong()}
	rec := &recorder{}
	s := NewSearcher(src, nil, nil, rec, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, Request{Seeds: []string{"alice"}, Topic: "rust"})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, rec.runs, 1)
	assert.NotEmpty(t, rec.runs[0].Error)
}
