// Package fcsearch gathers evidence that seed handles exist on Farcaster
// by querying the public channel, user and cast search endpoints.
package fcsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"linkloom/internal/util"
)

const defaultBaseURL = "https://client.farcaster.xyz/v2"

// Endpoint names one of the search endpoints.
type Endpoint string

const (
	Channels Endpoint = "channels"
	Users    Endpoint = "users"
	Casts    Endpoint = "casts"
)

var endpoints = []Endpoint{Channels, Users, Casts}

// EndpointResult is the outcome of one search call. Failures are recorded, not returned.
type EndpointResult struct {
	URL    string `json:"url"`
	OK     bool   `json:"ok"`
	Status int    `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Evidence collects all endpoint results for one handle.
type Evidence struct {
	Raw       string                      `json:"raw"`
	Handle    string                      `json:"handle"`
	Endpoints map[Endpoint]EndpointResult `json:"endpoints"`
}

// Client queries the Farcaster search API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{baseURL: defaultBaseURL, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// WithBaseURL points the client at a proxy or test server.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

func (c *Client) buildURL(ep Endpoint, handle string) string {
	q := url.QueryEscape(handle)
	switch ep {
	case Channels:
		return fmt.Sprintf("%s/search-channels?q=%s&prioritizeFollowed=false&forComposer=false&limit=2", c.baseURL, q)
	case Users:
		return fmt.Sprintf("%s/search-users?q=%s&excludeSelf=false&limit=2&includeDirectCastAbility=false", c.baseURL, q)
	default:
		return fmt.Sprintf("%s/search-casts?q=%s&limit=20", c.baseURL, q)
	}
}

// Evidence queries every endpoint for rawHandle in parallel.
// It returns nil when the handle normalizes to nothing.
func (c *Client) Evidence(ctx context.Context, rawHandle string) *Evidence {
	handle := util.NormalizeFarcasterHandle(rawHandle)
	if handle == "" {
		return nil
	}
	results := make([]EndpointResult, len(endpoints))
	var g errgroup.Group
	for i, ep := range endpoints {
		g.Go(func() error {
			results[i] = c.fetch(ctx, ep, c.buildURL(ep, handle))
			return nil
		})
	}
	_ = g.Wait()
	ev := &Evidence{Raw: rawHandle, Handle: handle, Endpoints: make(map[Endpoint]EndpointResult, len(endpoints))}
	for i, ep := range endpoints {
		ev.Endpoints[ep] = results[i]
	}
	return ev
}

// EvidenceForHandles dedupes handles after normalization, keeps at most max
// (10 when max <= 0) and gathers evidence for each, preserving order.
func (c *Client) EvidenceForHandles(ctx context.Context, handles []string, max int) []Evidence {
	if max <= 0 {
		max = 10
	}
	seen := make(map[string]struct{})
	var raws []string
	for _, h := range handles {
		n := util.NormalizeFarcasterHandle(h)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		raws = append(raws, h)
		if len(raws) == max {
			break
		}
	}
	found := make([]*Evidence, len(raws))
	var g errgroup.Group
	for i, raw := range raws {
		g.Go(func() error {
			found[i] = c.Evidence(ctx, raw)
			return nil
		})
	}
	_ = g.Wait()
	out := make([]Evidence, 0, len(found))
	for _, ev := range found {
		if ev != nil {
			out = append(out, *ev)
		}
	}
	return out
}

func (c *Client) fetch(ctx context.Context, ep Endpoint, u string) EndpointResult {
	res := EndpointResult{URL: u}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode
	res.OK = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !res.OK {
		res.Error = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
		if m, ok := payload.(map[string]any); ok {
			if inner, ok := m["result"]; ok && inner != nil {
				payload = inner
			}
		}
		res.Data = trimPayload(ep, payload)
	}
	return res
}
