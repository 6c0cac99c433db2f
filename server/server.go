package server

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/sincerity-pipeline/analysis"
	"github.com/maastricht-university/sincerity-pipeline/media"
	"github.com/maastricht-university/sincerity-pipeline/metrics"
	"github.com/maastricht-university/sincerity-pipeline/orchestrator"
)

// Analyzer runs the pipeline on one video.
type Analyzer interface {
	Analyze(ctx context.Context, videoPath, credential string) (*orchestrator.Report, error)
}

type Options struct {
	UploadDir   string
	MaxUploadMB int64
	// DefaultCredential is used when a request does not carry its own key.
	DefaultCredential string
}

type Server struct {
	analyzer Analyzer
	opts     Options
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

func New(a Analyzer, opts Options, log logrus.FieldLogger, m *metrics.Metrics, g prometheus.Gatherer) *Server {
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	return &Server{analyzer: a, opts: opts, log: log, metrics: m, gatherer: g}
}

// Result is the JSON API response.
type Result struct {
	Report *orchestrator.Report `json:"report"`
	Passed bool                 `json:"passed"`
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	r.SetHTMLTemplate(templates())

	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", nil)
	})
	r.POST("/upload", s.upload)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.POST("/analyze", s.analyzeJSON)
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Debug("request")
	}
}

var (
	errBadUpload = errors.New("a video file with extension mp4, avi, mov or mkv is required")
	errTooLarge  = errors.New("upload exceeds the size limit")
)

func (s *Server) uploadLimit() int64 {
	return s.opts.MaxUploadMB << 20
}

// saveUpload stores the form file in its own directory and returns the
// video path and a cleanup func that removes the directory.
func (s *Server) saveUpload(c *gin.Context) (string, func(), error) {
	if limit := s.uploadLimit(); limit > 0 {
		if c.Request.ContentLength > limit {
			return "", nil, errTooLarge
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	fh, err := c.FormFile("file")
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return "", nil, errTooLarge
	}
	if err != nil || fh.Filename == "" || !media.Allowed(fh.Filename) {
		return "", nil, errBadUpload
	}
	dir := filepath.Join(s.opts.UploadDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create upload dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			s.log.WithError(err).WithField("dir", dir).Warn("remove upload")
		}
	}
	path := filepath.Join(dir, safeName(fh))
	if err := c.SaveUploadedFile(fh, path); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("save upload: %w", err)
	}
	return path, cleanup, nil
}

func safeName(fh *multipart.FileHeader) string {
	name := filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return "upload" + filepath.Ext(fh.Filename)
	}
	return name
}

func (s *Server) credential(c *gin.Context) string {
	if key := strings.TrimSpace(c.PostForm("api_key")); key != "" {
		return key
	}
	return s.opts.DefaultCredential
}

func (s *Server) run(c *gin.Context, path string) (*orchestrator.Report, bool, error) {
	rep, err := s.analyzer.Analyze(c.Request.Context(), path, s.credential(c))
	if err != nil {
		return nil, false, err
	}
	passed := analysis.Passed(rep.Faces)
	s.metrics.ObserveReport(passed)
	return rep, passed, nil
}

func (s *Server) upload(c *gin.Context) {
	path, cleanup, err := s.saveUpload(c)
	if errors.Is(err, errBadUpload) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	if errors.Is(err, errTooLarge) {
		c.HTML(http.StatusRequestEntityTooLarge, "result.html", gin.H{"Error": err.Error()})
		return
	}
	if err != nil {
		s.log.WithError(err).Error("upload failed")
		c.HTML(http.StatusInternalServerError, "result.html", gin.H{"Error": "could not store the upload"})
		return
	}
	defer cleanup()

	rep, passed, err := s.run(c, path)
	if err != nil {
		s.log.WithError(err).Error("analysis failed")
		c.HTML(statusFor(err), "result.html", gin.H{"Error": err.Error()})
		return
	}
	c.HTML(http.StatusOK, "result.html", gin.H{"Report": rep, "Passed": passed})
}

func (s *Server) analyzeJSON(c *gin.Context) {
	path, cleanup, err := s.saveUpload(c)
	if errors.Is(err, errBadUpload) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, errTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.log.WithError(err).Error("upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store the upload"})
		return
	}
	defer cleanup()

	rep, passed, err := s.run(c, path)
	if err != nil {
		s.log.WithError(err).Error("analysis failed")
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "kind": analysis.Kind(err)})
		return
	}
	c.JSON(http.StatusOK, Result{Report: rep, Passed: passed})
}

func statusFor(err error) int {
	var me *analysis.MediaOpenError
	switch {
	case errors.As(err, &me):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
