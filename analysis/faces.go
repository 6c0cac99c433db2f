package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
)

// Denominator selects which frames count toward the per-emotion average.
type Denominator string

const (
	// CountAllFrames divides by every decoded frame, so frames without a
	// face dilute the scores.
	CountAllFrames Denominator = "all"
	// CountDetectedFrames divides by frames where a face was detected.
	CountDetectedFrames Denominator = "detected"
)

// ParseDenominator maps a config value to a Denominator. Empty means all.
func ParseDenominator(s string) (Denominator, error) {
	switch Denominator(s) {
	case "", CountAllFrames:
		return CountAllFrames, nil
	case CountDetectedFrames:
		return CountDetectedFrames, nil
	}
	return "", fmt.Errorf("unknown denominator %q (want all|detected)", s)
}

// MaxScore caps every emotion score.
const MaxScore = 10.0

// FrameObserver receives per-frame progress. Used for metrics.
type FrameObserver func(detected bool)

// FrameAggregator turns per-frame face emotions into a 0-10 score per emotion.
type FrameAggregator struct {
	opener      VideoOpener
	detector    FaceDetector
	denominator Denominator
	observe     FrameObserver
	log         logrus.FieldLogger
}

func NewFrameAggregator(opener VideoOpener, detector FaceDetector, d Denominator, log logrus.FieldLogger) *FrameAggregator {
	if d == "" {
		d = CountAllFrames
	}
	return &FrameAggregator{opener: opener, detector: detector, denominator: d, log: log}
}

// OnFrame registers fn to be called once per decoded frame.
func (a *FrameAggregator) OnFrame(fn FrameObserver) { a.observe = fn }

// Aggregate decodes path frame by frame. Only the first detected face of a
// frame contributes; any further faces are discarded.
func (a *FrameAggregator) Aggregate(ctx context.Context, path string) (FaceSummary, error) {
	src, err := a.opener.Open(ctx, path)
	if err != nil {
		var mediaErr *MediaOpenError
		if errors.As(err, &mediaErr) {
			return FaceSummary{}, err
		}
		return FaceSummary{}, &MediaOpenError{Path: path, Err: err}
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			a.log.WithError(cerr).WithField("path", path).Debug("frame source close")
		}
	}()

	sums := map[string]float64{}
	decoded, detected := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return FaceSummary{}, err
		}
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var mediaErr *MediaOpenError
			if errors.As(err, &mediaErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return FaceSummary{}, err
			}
			return FaceSummary{}, &MediaOpenError{Path: path, Err: fmt.Errorf("frame %d: %w", decoded, err)}
		}
		decoded++

		faces, err := a.detector.DetectFaces(ctx, frame)
		if err != nil {
			return FaceSummary{}, fmt.Errorf("detect faces in frame %d: %w", frame.Index, err)
		}
		if a.observe != nil {
			a.observe(len(faces) > 0)
		}
		if len(faces) == 0 {
			continue
		}
		detected++
		for label, conf := range faces[0].Emotions {
			if math.IsNaN(conf) || math.IsInf(conf, 0) {
				continue
			}
			sums[label] += conf
		}
	}

	a.log.WithFields(logrus.Fields{
		"path":     path,
		"decoded":  decoded,
		"detected": detected,
	}).Debug("frames aggregated")

	return FaceSummary{
		Scores:         scoreEmotions(sums, a.count(decoded, detected)),
		FramesDecoded:  decoded,
		FramesDetected: detected,
	}, nil
}

func (a *FrameAggregator) count(decoded, detected int) int {
	if a.denominator == CountDetectedFrames {
		return detected
	}
	return decoded
}

// scoreEmotions averages sums over n frames and rescales to [0, MaxScore].
func scoreEmotions(sums map[string]float64, n int) EmotionScores {
	out := EmotionScores{}
	if n == 0 {
		return out
	}
	for label, sum := range sums {
		s := math.Min(MaxScore, sum/float64(n)*10)
		out[label] = math.Max(0, s)
	}
	return out
}
