package analysis

import "context"

// Frame is one decoded RGB24 image, row-major, 3 bytes per pixel.
type Frame struct {
	Index  int
	Width  int
	Height int
	Pix    []byte
}

// FrameSource yields frames in temporal order. Next returns io.EOF at end of stream.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// VideoOpener opens a video file for frame-by-frame decoding. Failures are
// reported as *MediaOpenError.
type VideoOpener interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}

// FaceEmotions holds one detected face's per-emotion confidences in [0, 1].
type FaceEmotions struct {
	Box      [4]int             `json:"box"`
	Emotions map[string]float64 `json:"emotions"`
}

// FaceDetector finds faces in a frame. An empty slice means no detection;
// faces are ordered as the detector ranks them.
type FaceDetector interface {
	DetectFaces(ctx context.Context, f Frame) ([]FaceEmotions, error)
}

// EmotionScores maps an emotion label to a score in [0, 10]. Only emotions
// observed in at least one frame are present.
type EmotionScores map[string]float64

// FaceSummary is the Frame Emotion Aggregator output.
type FaceSummary struct {
	Scores         EmotionScores
	FramesDecoded  int
	FramesDetected int
}

// Waveform is decoded PCM audio with samples scaled to [-1, 1], one slice
// per channel.
type Waveform struct {
	Channels   [][]float64
	SampleRate int
}

// AudioFeatures are short-term features averaged over all analysis windows.
type AudioFeatures struct {
	Energy float64 `json:"energy" yaml:"energy"`
	ZCR    float64 `json:"zcr" yaml:"zcr"`
}
