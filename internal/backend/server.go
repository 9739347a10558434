/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend serves pagination, PDF export and a remote project store
// over HTTP, and provides the matching client.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"villoscreenplay/internal/domain"
	"villoscreenplay/internal/export"
	applog "villoscreenplay/internal/log"
	"villoscreenplay/internal/paginate"
	"villoscreenplay/internal/storage"
	"villoscreenplay/internal/telemetry"
	"villoscreenplay/internal/version"
)

const maxBodyBytes = 8 << 20

// Config holds server configuration.
type Config struct {
	Addr     string // http bind address, e.g. ":8080"
	Secret   string // signs API tokens
	TokenTTL time.Duration
	// Language selects the cover and placeholder labels ("en", "es").
	Language string
	// Renderer is the default PDF renderer for /api/export/pdf.
	Renderer        export.Renderer
	ShutdownTimeout time.Duration
}

// Server is the HTTP API. A nil Store disables the project routes.
type Server struct {
	cfg    Config
	store  *Store
	engine *gin.Engine
	log    *slog.Logger
	now    func() time.Time
}

// NewServer builds the router. store may be nil.
func NewServer(cfg Config, store *Store) *Server {
	l := applog.WithComponent("backend")
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Secret == "" {
		cfg.Secret = devSecret
		l.Warn("server secret not set; using insecure dev secret")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{cfg: cfg, store: store, engine: gin.New(), log: l, now: time.Now}
	s.engine.Use(gin.Recovery(), s.accessLog)
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/readyz", s.ready)
	r.GET("/version", func(c *gin.Context) { c.String(http.StatusOK, version.String()) })
	r.GET("/ws/preview", s.preview)

	api := r.Group("/api")
	api.POST("/paginate", s.paginate)
	api.POST("/export/pdf", s.exportPDF)
	api.POST("/auth/token", s.issueToken)

	projects := api.Group("/projects", s.requireStore, s.requireAuth)
	projects.GET("", s.listProjects)
	projects.GET("/:id", s.getProject)
	projects.PUT("/:id", s.putProject)
	projects.DELETE("/:id", s.deleteProject)
	projects.GET("/:id/search", s.searchProject)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", slog.String("addr", s.cfg.Addr), slog.Bool("db", s.store != nil))
		telemetry.Event(telemetry.EventServerStarted, map[string]any{"db": s.store != nil})
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) accessLog(c *gin.Context) {
	start := s.now()
	c.Next()
	s.log.Debug("request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.FullPath()),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("took", time.Since(start)))
}

func (s *Server) ready(c *gin.Context) {
	if s.store == nil {
		c.String(http.StatusServiceUnavailable, "db not configured")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		c.String(http.StatusServiceUnavailable, "db not ready")
		return
	}
	c.String(http.StatusOK, "ready")
}

func (s *Server) labels(c *gin.Context) paginate.Labels {
	lang := c.Query("lang")
	if lang == "" {
		lang = s.cfg.Language
	}
	return paginate.LabelsFor(lang)
}

// readProject decodes and validates a project from the request body.
func readProject(c *gin.Context) (domain.Project, bool) {
	p, err := storage.ReadProject(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return domain.Project{}, false
	}
	return p, true
}

func (s *Server) paginate(c *gin.Context) {
	p, ok := readProject(c)
	if !ok {
		return
	}
	sum, err := Summarize(p, s.labels(c))
	if err != nil {
		writeError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) exportPDF(c *gin.Context) {
	p, ok := readProject(c)
	if !ok {
		return
	}
	renderer := s.cfg.Renderer
	if q := c.Query("renderer"); q != "" {
		r, err := export.ParseRenderer(q)
		if err != nil {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		renderer = r
	}
	var buf bytes.Buffer
	start := s.now()
	res, err := export.PDF(p, &buf, export.Options{Renderer: renderer, Labels: s.labels(c)})
	if err != nil {
		writeError(c, http.StatusUnprocessableEntity, err)
		return
	}
	telemetry.ExportCompleted(string(renderer), "pdf", res.Sheets, time.Since(start))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileSlug(p.Title())+".pdf"))
	c.Header("X-Page-Count", strconv.Itoa(res.Sheets))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (s *Server) requireStore(c *gin.Context) {
	if s.store == nil {
		writeError(c, http.StatusServiceUnavailable, errors.New("project store not configured"))
		c.Abort()
		return
	}
	c.Next()
}

func (s *Server) listProjects(c *gin.Context) {
	list, err := s.store.List(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getProject(c *gin.Context) {
	rec, err := s.store.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, ErrProjectNotFound):
		writeError(c, http.StatusNotFound, err)
	case err != nil:
		writeError(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, rec)
	}
}

// putRequest is the body of PUT /api/projects/:id.
type putRequest struct {
	Name    string          `json:"name"`
	Project json.RawMessage `json:"project"`
}

func (s *Server) putProject(c *gin.Context) {
	var req putRequest
	if err := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if len(req.Project) == 0 {
		writeError(c, http.StatusBadRequest, errors.New("project is required"))
		return
	}
	p, err := storage.ReadProject(bytes.NewReader(req.Project))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	sum, err := s.store.Put(c.Request.Context(), c.Param("id"), req.Name, p)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("project stored",
		slog.String("id", sum.ID),
		slog.Int64("version", sum.Version),
		slog.String("by", c.GetString(subjectKey)))
	c.JSON(http.StatusOK, sum)
}

func (s *Server) deleteProject(c *gin.Context) {
	err := s.store.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, ErrProjectNotFound):
		writeError(c, http.StatusNotFound, err)
	case err != nil:
		writeError(c, http.StatusInternalServerError, err)
	default:
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) searchProject(c *gin.Context) {
	q := storage.SearchQuery{Text: c.Query("q")}
	for _, k := range c.QueryArray("kind") {
		kind, err := domain.ParseKind(k)
		if err != nil {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		q.Kinds = append(q.Kinds, kind)
	}
	if v := c.Query("scene"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, http.StatusBadRequest, fmt.Errorf("invalid scene %q", v))
			return
		}
		q.Scene = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		q.Limit = n
	}
	hits, err := s.store.Search(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	if hits == nil {
		hits = []storage.SearchHit{}
	}
	c.JSON(http.StatusOK, hits)
}

func writeError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// fileSlug turns a title into a lowercase file name.
func fileSlug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "screenplay"
	}
	return out
}
