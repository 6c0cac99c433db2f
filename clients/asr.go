package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/maastricht-university/sincerity-pipeline/analysis"
)

type TransSeg struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
type ASRResp struct {
	Text     string     `json:"text"`
	Segments []TransSeg `json:"segments"`
	Language string     `json:"language"`
}

// FullText prefers the service's full text and falls back to joined segments.
func (r *ASRResp) FullText() string {
	if strings.TrimSpace(r.Text) != "" {
		return r.Text
	}
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// --- Model load (/models/load) ---
type LoadReq struct {
	Size string `json:"size"`
}
type LoadResp struct {
	Model  string `json:"model"`
	Loaded bool   `json:"loaded"`
}

func (h *HTTP) LoadASRModel(ctx context.Context, url, size string) (*LoadResp, error) {
	b, _ := json.Marshal(LoadReq{Size: size})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/models/load", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("asr load %s: %s", resp.Status, string(body))
	}

	var out LoadResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("asr load decode: %w", err)
	}
	if !out.Loaded {
		return nil, fmt.Errorf("asr load: model %q not loaded", size)
	}
	return &out, nil
}

func (h *HTTP) ASR(ctx context.Context, url, wavPath, model string) (*ASRResp, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, err
	}
	fd, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return nil, err
	}
	if model != "" {
		if err = w.WriteField("model", model); err != nil {
			return nil, err
		}
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/transcribe", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("asr %s: %s", resp.Status, string(body))
	}

	var out ASRResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("asr decode: %w", err)
	}
	return &out, nil
}

// ASRService loads models on the speech service and transcribes with them.
type ASRService struct {
	h   *HTTP
	url string
}

func (h *HTTP) ASRService(url string) *ASRService {
	return &ASRService{h: h, url: url}
}

func (s *ASRService) LoadModel(ctx context.Context, size string) (analysis.SpeechModel, error) {
	lr, err := s.h.LoadASRModel(ctx, s.url, size)
	if err != nil {
		return nil, err
	}
	name := lr.Model
	if name == "" {
		name = size
	}
	return &asrModel{svc: s, name: name}, nil
}

type asrModel struct {
	svc  *ASRService
	name string
}

func (m *asrModel) Transcribe(ctx context.Context, wavPath string) (string, error) {
	out, err := m.svc.h.ASR(ctx, m.svc.url, wavPath, m.name)
	if err != nil {
		return "", err
	}
	return out.FullText(), nil
}
