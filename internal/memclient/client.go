package memclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"linkloom/internal/cache"
	"linkloom/internal/metrics"
	"linkloom/internal/model"
)

const (
	defaultBaseURL = "https://api.memoryproto.co"
	pageLimit      = 100
)

// FollowerSource is what the pool builder needs from the follower graph.
type FollowerSource interface {
	GetAllFollowers(ctx context.Context, username string, max int) ([]model.Profile, error)
}

// FollowersPage is one page of /farcaster/followers.
type FollowersPage struct {
	Follows    []model.Profile
	NextCursor string
}

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("memory api %s: status %d %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPClient is a bearer-token client for the Memory Protocol follower API.
type HTTPClient struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	cache       *cache.Cache
	maxAttempts int
	baseBackoff time.Duration
}

var _ FollowerSource = (*HTTPClient)(nil)

func NewHTTPClient(token string) *HTTPClient {
	return &HTTPClient{
		baseURL:     defaultBaseURL,
		token:       token,
		httpClient:  &http.Client{Timeout: 20 * time.Second},
		limiter:     newDefaultLimiter(),
		maxAttempts: getEnvInt("MEMORY_API_MAX_ATTEMPTS", 4),
		baseBackoff: time.Duration(getEnvInt("MEMORY_API_BASE_BACKOFF_MS", 500)) * time.Millisecond,
	}
}

// WithCache enables follower page caching.
func (c *HTTPClient) WithCache(pc *cache.Cache) *HTTPClient {
	c.cache = pc
	return c
}

func (c *HTTPClient) auth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// rawFollower mirrors the API payload; nullable fields arrive as null.
type rawFollower struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	DisplayName    *string `json:"displayName"`
	FollowersCount *int    `json:"followersCount"`
	FollowingCount *int    `json:"followingCount"`
	PostsCount     *int    `json:"postsCount"`
	AvatarURL      *string `json:"avatarUrl"`
	ExternalURL    *string `json:"externalUrl"`
	Location       *string `json:"location"`
	Bio            *string `json:"bio"`
}

func (r rawFollower) profile() model.Profile {
	return model.Profile{
		ID:             r.ID,
		Username:       r.Username,
		DisplayName:    deref(r.DisplayName),
		Bio:            deref(r.Bio),
		AvatarURL:      deref(r.AvatarURL),
		FollowersCount: derefInt(r.FollowersCount),
		FollowingCount: derefInt(r.FollowingCount),
		PostsCount:     derefInt(r.PostsCount),
		Location:       deref(r.Location),
		ExternalURL:    deref(r.ExternalURL),
	}
}

type rawPage struct {
	Follows    []rawFollower `json:"follows"`
	NextCursor string        `json:"next_cursor"`
}

// GetFollowers fetches one page of followers for username.
func (c *HTTPClient) GetFollowers(ctx context.Context, username string, page, limit int) (FollowersPage, error) {
	var out FollowersPage
	if username == "" {
		return out, errors.New("empty username")
	}
	q := url.Values{}
	q.Set("username", username)
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(min(limit, pageLimit)))
	}
	key := cache.Key("followers", username, q.Get("page"), q.Get("limit"))
	var raw rawPage
	if b, ok := c.cache.Get(ctx, key); ok && json.Unmarshal(b, &raw) == nil {
		return raw.page(), nil
	}
	body, err := c.getJSON(ctx, "/farcaster/followers", q)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return out, fmt.Errorf("decode followers: %w", err)
	}
	c.cache.Set(ctx, key, body)
	return raw.page(), nil
}

func (r rawPage) page() FollowersPage {
	out := FollowersPage{NextCursor: r.NextCursor, Follows: make([]model.Profile, 0, len(r.Follows))}
	for _, f := range r.Follows {
		out.Follows = append(out.Follows, f.profile())
	}
	return out
}

// GetAllFollowers pages through followers until max, an empty page, or no next cursor.
func (c *HTTPClient) GetAllFollowers(ctx context.Context, username string, max int) ([]model.Profile, error) {
	var all []model.Profile
	for page := 1; len(all) < max; page++ {
		p, err := c.GetFollowers(ctx, username, page, pageLimit)
		if err != nil {
			return nil, err
		}
		if len(p.Follows) == 0 {
			break
		}
		all = append(all, p.Follows...)
		if p.NextCursor == "" {
			break
		}
	}
	if len(all) > max {
		all = all[:max]
	}
	return all, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.doWithRetry(ctx, req, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Endpoint: path}
	}
	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return body, nil
}

func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request, endpoint string) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.IncAPIRetry(endpoint)
		}
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
				return resp, nil
			}
			if attempt == c.maxAttempts {
				return resp, nil
			}
			wait := retryAfter(resp.Header.Get("Retry-After"), backoff)
			_ = resp.Body.Close()
			if err := sleep(ctx, jitter(wait)); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.maxAttempts {
			break
		}
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func retryAfter(ra string, def time.Duration) time.Duration {
	if ra == "" {
		return def
	}
	if secs, err := strconv.Atoi(ra); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return def
}

// jitter spreads wait by +/-20%.
func jitter(wait time.Duration) time.Duration {
	j := time.Duration(float64(wait) * 0.2)
	if j <= 0 {
		return wait
	}
	return wait - j + time.Duration(time.Now().UnixNano()%int64(2*j))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
