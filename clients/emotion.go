package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/maastricht-university/sincerity-pipeline/analysis"
)

// --- Face emotion (/detect) ---
type FaceResp struct {
	Box      [4]int             `json:"box"`
	Emotions map[string]float64 `json:"emotions"`
}
type DetectResp struct {
	Faces []FaceResp `json:"faces"`
}

// FaceDetector posts frames to the face-emotion service.
type FaceDetector struct {
	h   *HTTP
	url string
}

func (h *HTTP) FaceDetector(url string) *FaceDetector {
	return &FaceDetector{h: h, url: url}
}

func (d *FaceDetector) DetectFaces(ctx context.Context, f analysis.Frame) ([]analysis.FaceEmotions, error) {
	out, err := d.h.Detect(ctx, d.url, f)
	if err != nil {
		return nil, err
	}
	faces := make([]analysis.FaceEmotions, 0, len(out.Faces))
	for _, fr := range out.Faces {
		faces = append(faces, analysis.FaceEmotions{Box: fr.Box, Emotions: fr.Emotions})
	}
	return faces, nil
}

func (h *HTTP) Detect(ctx context.Context, url string, f analysis.Frame) (*DetectResp, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("frame", fmt.Sprintf("frame_%06d.jpg", f.Index))
	if err != nil {
		return nil, err
	}
	if err := encodeJPEG(fw, f); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Index, err)
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/detect", &b)
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
		return nil, fmt.Errorf("detect %s: %s", resp.Status, string(body))
	}

	var out DetectResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("detect decode: %w", err)
	}
	return &out, nil
}

func encodeJPEG(w io.Writer, f analysis.Frame) error {
	if len(f.Pix) < f.Width*f.Height*3 {
		return fmt.Errorf("short frame buffer: %d bytes for %dx%d", len(f.Pix), f.Width, f.Height)
	}
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i < f.Width*f.Height; i, j = i+1, j+3 {
		img.Pix[i*4] = f.Pix[j]
		img.Pix[i*4+1] = f.Pix[j+1]
		img.Pix[i*4+2] = f.Pix[j+2]
		img.Pix[i*4+3] = 0xff
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
}
