package review

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"

	"reddit-shorts-pipeline/config"
	"reddit-shorts-pipeline/logging"
	"reddit-shorts-pipeline/storage"
	"reddit-shorts-pipeline/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server is the review dashboard and its JSON API.
type Server struct {
	svc    *Service
	cfg    config.ReviewConfig
	engine *gin.Engine
	logger *slog.Logger
}

type pageData struct {
	Title   string
	Active  string
	Videos  []videoView
	Message string
}

type videoView struct {
	types.VideoListing
	Preview string
}

func NewServer(svc *Service, cfg config.ReviewConfig, logger *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		engine: gin.New(),
		logger: logging.Component(logger, "review-http"),
	}

	tmpl := template.Must(template.New("").Funcs(template.FuncMap{
		"seconds": func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "s" },
		"score":   func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
		"date":    func(t time.Time) string { return t.Format("2006-01-02 15:04") },
		"datep": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format("2006-01-02 15:04")
		},
	}).ParseFS(templateFS, "templates/*.html"))
	s.engine.SetHTMLTemplate(tmpl)

	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/dashboard")
	})
	r.GET("/dashboard", s.dashboard)
	r.GET("/approved", s.approved)
	r.POST("/videos/:id/approve", s.approveForm)
	r.POST("/videos/:id/reject", s.rejectForm)
	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.GET("/videos", s.listVideos)
		api.GET("/videos/:id", s.getVideo)
		api.POST("/videos/:id/approve", s.approveJSON)
		api.POST("/videos/:id/reject", s.rejectJSON)
	}
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return cors(s.engine)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("review dashboard listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down review dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start).Round(time.Millisecond),
		)
	}
}

func (s *Server) views(videos []types.VideoListing) []videoView {
	out := make([]videoView, 0, len(videos))
	for _, v := range videos {
		out = append(out, videoView{VideoListing: v, Preview: s.svc.Truncate(v.StoryBody)})
	}
	return out
}

func (s *Server) dashboard(c *gin.Context) {
	videos, err := s.svc.Pending(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "dashboard.html", pageData{
		Title:   "Pending review",
		Active:  "pending",
		Videos:  s.views(videos),
		Message: c.Query("msg"),
	})
}

func (s *Server) approved(c *gin.Context) {
	videos, err := s.svc.Approved(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "approved.html", pageData{
		Title:  "Approved",
		Active: "approved",
		Videos: s.views(videos),
	})
}

func (s *Server) approveForm(c *gin.Context) {
	id := c.Param("id")
	if err := s.svc.Approve(c.Request.Context(), id, c.PostForm("actor")); err != nil {
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/dashboard?msg=approved")
}

func (s *Server) rejectForm(c *gin.Context) {
	id := c.Param("id")
	if err := s.svc.Reject(c.Request.Context(), id, c.PostForm("reason")); err != nil {
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/dashboard?msg=rejected")
}

func (s *Server) health(c *gin.Context) {
	if err := s.svc.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listVideos(c *gin.Context) {
	status := types.VideoStatus(c.DefaultQuery("status", string(types.VideoPending)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	videos, err := s.svc.List(c.Request.Context(), status, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (s *Server) getVideo(c *gin.Context) {
	v, err := s.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type decisionRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

func (s *Server) approveJSON(c *gin.Context) {
	req, ok := bindDecision(c)
	if !ok {
		return
	}
	s.decideJSON(c, s.svc.Approve(c.Request.Context(), c.Param("id"), req.Actor))
}

func (s *Server) rejectJSON(c *gin.Context) {
	req, ok := bindDecision(c)
	if !ok {
		return
	}
	s.decideJSON(c, s.svc.Reject(c.Request.Context(), c.Param("id"), req.Reason))
}

// bindDecision reads an optional JSON body. An empty body means defaults;
// a malformed one is answered with 400.
func bindDecision(c *gin.Context) (decisionRequest, bool) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return req, false
	}
	return req, true
}

func (s *Server) decideJSON(c *gin.Context, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	v, err := s.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, ErrUnknownStatus):
		status = http.StatusBadRequest
	default:
		s.logger.Error("request failed", "path", c.Request.URL.Path, "err", err)
	}

	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.String(status, err.Error())
}
