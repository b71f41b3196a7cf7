package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"linkloom/internal/autoseed"
	"linkloom/internal/fcsearch"
	"linkloom/internal/llm"
	"linkloom/internal/logging"
	"linkloom/internal/model"
	"linkloom/internal/quota"
	"linkloom/internal/recommend"
	"linkloom/internal/store"
)

const (
	msgNoSeeds = "Seeds with farcaster array is required"
	msgNoTopic = "Topic is required"
)

type handlers struct {
	deps Deps
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

type searchBody struct {
	Seeds struct {
		Farcaster []string `json:"farcaster"`
	} `json:"seeds"`
	Topic        string            `json:"topic"`
	Negative     []string          `json:"negative"`
	Keywords     []string          `json:"keywords"`
	Thresholds   *model.Thresholds `json:"thresholds"`
	Caps         *model.Caps       `json:"caps"`
	AutoNegative bool              `json:"autoNegative"`
}

func (h *handlers) topicSearch(c *gin.Context) {
	var body searchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	req := recommend.Request{
		Seeds:        body.Seeds.Farcaster,
		Topic:        body.Topic,
		Keywords:     body.Keywords,
		Negative:     body.Negative,
		Thresholds:   body.Thresholds,
		Caps:         body.Caps,
		AutoNegative: body.AutoNegative,
	}
	switch err := req.Validate(); {
	case errors.Is(err, recommend.ErrNoSeeds):
		fail(c, http.StatusBadRequest, msgNoSeeds)
		return
	case errors.Is(err, recommend.ErrNoTopic):
		fail(c, http.StatusBadRequest, msgNoTopic)
		return
	}
	ctx := c.Request.Context()
	ok, err := quota.Allow(ctx, h.deps.Runs, h.deps.Quota, time.Now())
	if err != nil {
		logging.Warn("quota_check_failed", map[string]any{"error": err.Error()})
	} else if !ok {
		fail(c, http.StatusTooManyRequests, "Search quota exceeded")
		return
	}
	if h.deps.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.deps.SearchTimeout)
		defer cancel()
	}
	res, err := h.deps.Searcher.Search(ctx, req)
	if err != nil {
		logging.Error("topic_search_failed", map[string]any{"error": err.Error()})
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    fmt.Sprintf("Found %d candidates matching topic", len(res.Candidates)),
		"candidates": res.Candidates,
		"metadata":   res.Metadata,
	})
}

type autoSeedBody struct {
	Query string `json:"query"`
	autoseed.Options
	Validate bool `json:"validate"`
}

func (h *handlers) autoSeed(c *gin.Context) {
	if h.deps.Seeder == nil {
		fail(c, http.StatusServiceUnavailable, "Seed generation is not configured")
		return
	}
	var body autoSeedBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		fail(c, http.StatusBadRequest, "Query is required")
		return
	}
	plan, err := h.deps.Seeder.Generate(c.Request.Context(), body.Query, body.Options)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, llm.ErrDisabled) {
			status = http.StatusServiceUnavailable
		}
		logging.Error("auto_seed_failed", map[string]any{"query": body.Query, "error": err.Error()})
		fail(c, status, "Seed generation failed")
		return
	}
	resp := gin.H{"success": true, "plan": plan}
	if body.Validate && h.deps.Validator != nil {
		vals, _ := h.deps.Validator.Validate(c.Request.Context(), plan.Seeds.Farcaster)
		resp["validation"] = vals
	}
	c.JSON(http.StatusOK, resp)
}

type validateBody struct {
	Handles []string `json:"handles"`
	Max     int      `json:"max"`
}

func (h *handlers) validateSeeds(c *gin.Context) {
	if h.deps.Validator == nil {
		fail(c, http.StatusServiceUnavailable, "Handle validation is not configured")
		return
	}
	var body validateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(body.Handles) == 0 {
		fail(c, http.StatusBadRequest, "Handles are required")
		return
	}
	limit := body.Max
	if limit <= 0 {
		limit = 10
	}
	handles := body.Handles
	if len(handles) > limit {
		handles = handles[:limit]
	}
	vals, evidence := h.deps.Validator.Validate(c.Request.Context(), handles)
	if vals == nil {
		vals = []fcsearch.Validation{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "validations": vals, "evidence": evidence})
}

func (h *handlers) listHistory(c *gin.Context) {
	if h.deps.History == nil {
		fail(c, http.StatusServiceUnavailable, "History is not enabled")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 500 {
		fail(c, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	runs, err := h.deps.History.ListRuns(c.Request.Context(), limit)
	if err != nil {
		logging.Error("history_list_failed", map[string]any{"error": err.Error()})
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "runs": runs})
}

func (h *handlers) getHistory(c *gin.Context) {
	if h.deps.History == nil {
		fail(c, http.StatusServiceUnavailable, "History is not enabled")
		return
	}
	run, err := h.deps.History.GetRun(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, "Run not found")
		return
	case err != nil:
		logging.Error("history_get_failed", map[string]any{"error": err.Error()})
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "run": run})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}
