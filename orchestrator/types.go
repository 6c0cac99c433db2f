package orchestrator

import (
	"context"

	"github.com/maastricht-university/sincerity-pipeline/analysis"
)

type Stage string

const (
	StageExtract    Stage = "audio_extraction"
	StageFaces      Stage = "faces"
	StageAudio      Stage = "audio"
	StageTranscript Stage = "transcript"
	StageHonesty    Stage = "honesty"
)

// stageOrder fixes the order of failures in a report.
var stageOrder = map[Stage]int{StageExtract: 0, StageFaces: 1, StageAudio: 2, StageTranscript: 3, StageHonesty: 4}

// StageFailure records why one modality was degraded.
type StageFailure struct {
	Stage   Stage  `json:"stage" yaml:"stage"`
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// Report is the combined analysis result. Degraded modalities hold an empty
// map, nil audio, empty transcript or a non-ok honesty status, with the
// cause listed in Failures.
type Report struct {
	Faces         analysis.EmotionScores  `json:"faces" yaml:"faces"`
	Audio         *analysis.AudioFeatures `json:"audio" yaml:"audio"`
	Transcript    string                  `json:"transcript" yaml:"transcript"`
	Honesty       string                  `json:"honesty" yaml:"honesty"`
	HonestyStatus analysis.VerdictStatus  `json:"honesty_status" yaml:"honesty_status"`
	Tone          *analysis.Tone          `json:"tone,omitempty" yaml:"tone,omitempty"`
	Failures      []StageFailure          `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Failure returns the failure recorded for stage, if any.
func (r *Report) Failure(stage Stage) (StageFailure, bool) {
	for _, f := range r.Failures {
		if f.Stage == stage {
			return f, true
		}
	}
	return StageFailure{}, false
}

type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, wavPath string) error
}

type FaceAnalyzer interface {
	Aggregate(ctx context.Context, videoPath string) (analysis.FaceSummary, error)
}

type SpeechTranscriber interface {
	Transcribe(ctx context.Context, wavPath, size string) (string, error)
}

type SincerityScorer interface {
	Score(ctx context.Context, transcript, credential string) (analysis.Verdict, error)
}

// WaveformDecoder reads an extracted audio file.
type WaveformDecoder func(path string) (analysis.Waveform, error)
