// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server republishes the outputs of the last extraction run over a
// read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/specgraph/internal/metrics"
	"github.com/pdiddy/specgraph/internal/pipeline"
	"github.com/pdiddy/specgraph/pkg/types"
)

const shutdownTimeout = 5 * time.Second

// conceptView adds the identifier, which the concept table carries as
// the map key, to a served record.
type conceptView struct {
	ID string `json:"id"`
	types.Concept
}

// Server is the graph service.
type Server struct {
	cfg      types.ServeConfig
	cache    *FileCache
	log      *zap.Logger
	engine   *gin.Engine
	requests *prometheus.CounterVec
}

// New builds the router. A nil recorder gets a private one so /metrics
// always answers.
func New(cfg types.ServeConfig, rec *metrics.Recorder, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.New()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":5000"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}

	s := &Server{
		cfg:   cfg,
		cache: NewFileCache(cfg.DataDir, cfg.Watch, log),
		log:   log,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "specgraph",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	if err := rec.Register(s.requests); err != nil {
		return nil, fmt.Errorf("registering request counter: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.observe)

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/static/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{})))
	if cfg.StaticDir != "" {
		r.Static("/static", cfg.StaticDir)
	}

	api := r.Group("/api")
	{
		api.GET("/graph", s.graph)
		api.GET("/concepts", s.concepts)
		api.GET("/concepts/:id", s.concept)
		api.GET("/concepts/:id/dependents", s.dependents)
	}

	s.engine = r
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully. When watching
// is enabled the file watcher runs alongside the listener.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("serving graph",
			zap.String("addr", s.cfg.Addr),
			zap.String("data_dir", s.cfg.DataDir),
			zap.Bool("watch", s.cfg.Watch))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if s.cfg.Watch {
		g.Go(func() error { return s.cache.Watch(ctx) })
	}
	return g.Wait()
}

func (s *Server) observe(c *gin.Context) {
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	s.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
}

// graph returns graph.json exactly as the extraction wrote it.
func (s *Server) graph(c *gin.Context) {
	data, err := s.cache.Get(pipeline.GraphFile)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// concepts lists concept records, optionally filtered by ?defined=,
// ?ctype= and a case-insensitive ?q= match on identifier or name.
func (s *Server) concepts(c *gin.Context) {
	table, err := s.table()
	if err != nil {
		s.fail(c, err)
		return
	}

	var defined *bool
	if v := c.Query("defined"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid defined filter %q", v)})
			return
		}
		defined = &b
	}
	ctype := c.Query("ctype")
	q := strings.ToLower(c.Query("q"))

	out := make([]conceptView, 0, len(table))
	for _, id := range sortedIDs(table) {
		concept := table[id]
		if defined != nil && concept.Defined != *defined {
			continue
		}
		if ctype != "" && string(concept.Classification) != ctype {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(id), q) && !strings.Contains(strings.ToLower(concept.Name), q) {
			continue
		}
		out = append(out, conceptView{ID: id, Concept: concept})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "concepts": out})
}

func (s *Server) concept(c *gin.Context) {
	table, err := s.table()
	if err != nil {
		s.fail(c, err)
		return
	}
	id := c.Param("id")
	concept, ok := table[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("concept %q not found", id)})
		return
	}
	c.JSON(http.StatusOK, conceptView{ID: id, Concept: concept})
}

// dependents lists the identifiers whose dependencies include :id.
func (s *Server) dependents(c *gin.Context) {
	table, err := s.table()
	if err != nil {
		s.fail(c, err)
		return
	}
	id := c.Param("id")
	if _, ok := table[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("concept %q not found", id)})
		return
	}

	out := []string{}
	for _, other := range sortedIDs(table) {
		for _, dep := range table[other].Dependencies {
			if dep == id {
				out = append(out, other)
				break
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "dependents": out})
}

func (s *Server) table() (types.ConceptTable, error) {
	data, err := s.cache.Get(pipeline.ConceptsFile)
	if err != nil {
		return nil, err
	}
	var table types.ConceptTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", pipeline.ConceptsFile, err)
	}
	return table, nil
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, ErrNotGenerated) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error() + ": run specgraph extract first"})
		return
	}
	s.log.Error("serving request", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func sortedIDs(table types.ConceptTable) []string {
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
