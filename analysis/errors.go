package analysis

import (
	"context"
	"errors"
	"fmt"
)

// MediaOpenError reports a video or audio source that could not be opened
// or decoded.
type MediaOpenError struct {
	Path string
	Err  error
}

func (e *MediaOpenError) Error() string {
	return fmt.Sprintf("open media %q: %v", e.Path, e.Err)
}

func (e *MediaOpenError) Unwrap() error { return e.Err }

// FeatureExtractionError reports an empty or malformed waveform.
type FeatureExtractionError struct {
	Reason string
	Err    error
}

func (e *FeatureExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio features: %s: %v", e.Reason, e.Err)
	}
	return "audio features: " + e.Reason
}

func (e *FeatureExtractionError) Unwrap() error { return e.Err }

// TranscriptionError reports an unreadable input or a speech model that
// could not be loaded or run.
type TranscriptionError struct {
	Model string
	Err   error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription (model %s): %v", e.Model, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// SincerityServiceError reports a failed remote completion call.
// StatusCode is zero when no HTTP response was received.
type SincerityServiceError struct {
	StatusCode int
	Err        error
}

func (e *SincerityServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sincerity service (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sincerity service: %v", e.Err)
}

func (e *SincerityServiceError) Unwrap() error { return e.Err }

// Kind names the outermost taxonomy entry in err's chain, or "internal".
func Kind(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch e.(type) {
		case *MediaOpenError:
			return "media_open"
		case *FeatureExtractionError:
			return "feature_extraction"
		case *TranscriptionError:
			return "transcription"
		case *SincerityServiceError:
			return "sincerity_service"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "internal"
}
