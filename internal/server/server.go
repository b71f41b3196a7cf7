// Package server exposes the search pipeline, seed planning and history
// over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linkloom/internal/autoseed"
	"linkloom/internal/fcsearch"
	"linkloom/internal/logging"
	"linkloom/internal/quota"
	"linkloom/internal/recommend"
	"linkloom/internal/store"
)

type Searcher interface {
	Search(ctx context.Context, req recommend.Request) (recommend.Result, error)
}

type Seeder interface {
	Generate(ctx context.Context, query string, opts autoseed.Options) (autoseed.Plan, error)
}

type HandleValidator interface {
	Validate(ctx context.Context, handles []string) ([]fcsearch.Validation, []fcsearch.Evidence)
}

type History interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, id string) (store.Run, error)
}

// Deps are the services behind the API. Seeder, Validator and History may
// be nil; their routes then answer 503.
type Deps struct {
	Searcher  Searcher
	Seeder    Seeder
	Validator HandleValidator
	History   History
	// per-request deadline for search; zero means none
	SearchTimeout time.Duration
	// Runs counts recorded searches for Quota; nil disables the check
	Runs  quota.Counter
	Quota quota.Limits
}

// New builds the gin engine with all routes and middleware.
func New(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestLogger(), cors(), gin.CustomRecovery(recovered))

	h := &handlers{deps: d}
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/topic/search", h.topicSearch)
	api.POST("/seeds/auto", h.autoSeed)
	api.POST("/seeds/validate", h.validateSeeds)
	api.GET("/history", h.listHistory)
	api.GET("/history/:id", h.getHistory)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
	})
	return r
}

// Serve runs handler on addr until ctx is canceled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logging.Info("server_listening", map[string]any{"addr": addr})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
