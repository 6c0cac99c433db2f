package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/sincerity-pipeline/analysis"
	"github.com/maastricht-university/sincerity-pipeline/metrics"
	"github.com/maastricht-university/sincerity-pipeline/orchestrator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAnalyzer struct {
	report     *orchestrator.Report
	err        error
	path       string
	credential string
	existed    bool
}

func (s *stubAnalyzer) Analyze(ctx context.Context, videoPath, credential string) (*orchestrator.Report, error) {
	s.path, s.credential = videoPath, credential
	_, err := os.Stat(videoPath)
	s.existed = err == nil
	return s.report, s.err
}

func passingReport() *orchestrator.Report {
	return &orchestrator.Report{
		Faces:         analysis.EmotionScores{"happy": 6.0, "neutral": 5.5},
		Audio:         &analysis.AudioFeatures{Energy: 0.12, ZCR: 0.08},
		Transcript:    "I was at home.",
		Honesty:       "Sounds sincere.",
		HonestyStatus: analysis.VerdictOK,
	}
}

func newTestServer(t *testing.T, a Analyzer) (*Server, string, *prometheus.Registry) {
	return newLimitedServer(t, a, 8)
}

func newLimitedServer(t *testing.T, a Analyzer, maxMB int64) (*Server, string, *prometheus.Registry) {
	dir := t.TempDir()
	log, _ := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	s := New(a, Options{UploadDir: dir, MaxUploadMB: maxMB, DefaultCredential: "env-key"}, log, metrics.New(reg), reg)
	return s, dir, reg
}

func uploadRequest(t *testing.T, target, filename string, fields map[string]string) *http.Request {
	return sizedUploadRequest(t, target, filename, []byte("fake video bytes"), fields)
}

func sizedUploadRequest(t *testing.T, target, filename string, content []byte, fields map[string]string) *http.Request {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, target, &b)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestIndex(t *testing.T) {
	s, _, _ := newTestServer(t, &stubAnalyzer{})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="file"`)
}

func TestAPIAnalyze(t *testing.T) {
	a := &stubAnalyzer{report: passingReport()}
	s, dir, _ := newTestServer(t, a)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, uploadRequest(t, "/api/analyze", "Talk.MP4", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Passed)
	assert.Equal(t, 6.0, res.Report.Faces["happy"])

	assert.True(t, a.existed)
	assert.Equal(t, "Talk.MP4", filepath.Base(a.path))
	assert.Equal(t, "env-key", a.credential)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "upload removed after analysis")
}

func TestAPIAnalyzeCredentialFromForm(t *testing.T) {
	a := &stubAnalyzer{report: passingReport()}
	s, _, _ := newTestServer(t, a)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, uploadRequest(t, "/api/analyze", "a.mov", map[string]string{"api_key": "sk-user"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sk-user", a.credential)
}

func TestAPIAnalyzeRejectsBadUploads(t *testing.T) {
	tests := []struct {
		name     string
		filename string
	}{
		{name: "missing file", filename: ""},
		{name: "bad extension", filename: "notes.txt"},
		{name: "no extension", filename: "video"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAnalyzer{report: passingReport()}
			s, _, _ := newTestServer(t, a)
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, uploadRequest(t, "/api/analyze", tt.filename, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, a.path)
		})
	}
}

func TestAPIAnalyzeFatalError(t *testing.T) {
	a := &stubAnalyzer{err: &analysis.MediaOpenError{Path: "x.mp4", Err: errors.New("moov atom not found")}}
	s, dir, _ := newTestServer(t, a)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, uploadRequest(t, "/api/analyze", "x.mp4", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "media_open")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "upload removed after failure")
}

func TestUploadSizeLimit(t *testing.T) {
	big := bytes.Repeat([]byte{0x42}, 2<<20)

	t.Run("api", func(t *testing.T) {
		a := &stubAnalyzer{report: passingReport()}
		s, dir, _ := newLimitedServer(t, a, 1)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, sizedUploadRequest(t, "/api/analyze", "big.mp4", big, nil))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Empty(t, a.path)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("form", func(t *testing.T) {
		a := &stubAnalyzer{report: passingReport()}
		s, _, _ := newLimitedServer(t, a, 1)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, sizedUploadRequest(t, "/upload", "big.mov", big, nil))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "size limit")
		assert.Empty(t, a.path)
	})

	t.Run("unknown length", func(t *testing.T) {
		a := &stubAnalyzer{report: passingReport()}
		s, _, _ := newLimitedServer(t, a, 1)
		req := sizedUploadRequest(t, "/api/analyze", "big.mp4", big, nil)
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		assert.NotEqual(t, http.StatusOK, rec.Code)
		assert.Empty(t, a.path)
	})

	t.Run("within limit", func(t *testing.T) {
		a := &stubAnalyzer{report: passingReport()}
		s, _, _ := newLimitedServer(t, a, 1)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, sizedUploadRequest(t, "/api/analyze", "small.mp4", big[:1<<19], nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, a.path)
	})
}

func TestUploadForm(t *testing.T) {
	rep := passingReport()
	rep.Faces = analysis.EmotionScores{"happy": 6.0, "sad": 5.0}
	rep.Audio = nil
	rep.Failures = []orchestrator.StageFailure{{Stage: orchestrator.StageAudio, Kind: "feature_extraction", Message: "empty waveform"}}
	s, _, reg := newTestServer(t, &stubAnalyzer{report: rep})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, uploadRequest(t, "/upload", "clip.mkv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Not passed")
	assert.Contains(t, body, "happy")
	assert.Contains(t, body, "Unavailable.")
	assert.Contains(t, body, "empty waveform")

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestUploadFormRedirectsOnBadFile(t *testing.T) {
	s, _, _ := newTestServer(t, &stubAnalyzer{})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, uploadRequest(t, "/upload", "photo.png", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestHealthAndMetrics(t *testing.T) {
	s, _, _ := newTestServer(t, &stubAnalyzer{report: passingReport()})
	router := s.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/analyze", "a.avi", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sincerity_reports_total{result="pass"} 1`)
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old")
	fresh := filepath.Join(dir, "fresh")
	require.NoError(t, os.Mkdir(old, 0o755))
	require.NoError(t, os.Mkdir(fresh, 0o755))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	log, _ := test.NewNullLogger()
	n := Sweep(dir, time.Hour, time.Now(), log)
	assert.Equal(t, 1, n)
	assert.NoDirExists(t, old)
	assert.DirExists(t, fresh)

	assert.Equal(t, 0, Sweep(filepath.Join(dir, "missing"), time.Hour, time.Now(), log))
}

func TestStartSweeper(t *testing.T) {
	log, _ := test.NewNullLogger()
	c, err := StartSweeper(t.TempDir(), time.Minute, time.Hour, log)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	<-c.Stop().Done()
}
