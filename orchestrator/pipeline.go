package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/maastricht-university/sincerity-pipeline/analysis"
	"github.com/maastricht-university/sincerity-pipeline/clients"
	cfg "github.com/maastricht-university/sincerity-pipeline/config"
	"github.com/maastricht-university/sincerity-pipeline/media"
	"github.com/maastricht-university/sincerity-pipeline/metrics"
)

// Deps are the pipeline's collaborators.
type Deps struct {
	Extractor   AudioExtractor
	Decode      WaveformDecoder
	Faces       FaceAnalyzer
	Transcriber SpeechTranscriber
	Scorer      SincerityScorer
}

type Options struct {
	WorkDir              string
	ModelSize            string
	FacesTimeout         time.Duration
	TranscriptionTimeout time.Duration
	SincerityTimeout     time.Duration
}

type Pipeline struct {
	deps    Deps
	opts    Options
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewWithDeps(d Deps, o Options, log logrus.FieldLogger, m *metrics.Metrics) *Pipeline {
	if o.ModelSize == "" {
		o.ModelSize = analysis.DefaultModelSize
	}
	return &Pipeline{deps: d, opts: o, log: log, metrics: m}
}

// NewPipeline wires the ffmpeg, HTTP and OpenAI collaborators from config.
func NewPipeline(c *cfg.Root, log logrus.FieldLogger, m *metrics.Metrics) (*Pipeline, error) {
	den, err := analysis.ParseDenominator(c.Faces.Denominator)
	if err != nil {
		return nil, err
	}
	ff := media.NewFFmpeg(c.Media.FFmpeg, c.Media.FFprobe, c.Audio.SampleRate, c.Audio.Channels, log)
	h := clients.NewHTTP(c.Services.Timeout)

	agg := analysis.NewFrameAggregator(ff, h.FaceDetector(c.Services.Emotion.URL), den, log)
	agg.OnFrame(m.ObserveFrame)

	var loader analysis.ModelLoader
	switch c.Transcription.Backend {
	case "", "service":
		loader = h.ASRService(c.Services.ASR.URL)
	case "openai":
		loader = clients.NewWhisperLoader(c.Sincerity.APIKey, c.Sincerity.BaseURL, c.Services.Timeout)
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", c.Transcription.Backend)
	}

	completer := clients.NewOpenAICompleter(clients.OpenAIOptions{
		Model:     c.Sincerity.Model,
		MaxTokens: c.Sincerity.MaxTokens,
		BaseURL:   c.Sincerity.BaseURL,
		Timeout:   c.Sincerity.StageTimeout,
		Retries:   c.Sincerity.Retries,
	}, log)

	return NewWithDeps(Deps{
		Extractor:   ff,
		Decode:      media.DecodeWAV,
		Faces:       agg,
		Transcriber: analysis.NewTranscriber(analysis.NewModelCache(loader), log),
		Scorer:      analysis.NewScorer(completer),
	}, Options{
		WorkDir:              c.Pipeline.WorkDir,
		ModelSize:            c.Transcription.ModelSize,
		FacesTimeout:         c.Faces.StageTimeout,
		TranscriptionTimeout: c.Transcription.StageTimeout,
		SincerityTimeout:     c.Sincerity.StageTimeout,
	}, log, m), nil
}

// Analyze runs every modality over videoPath. Only audio extraction failure
// or cancellation of ctx is fatal; other stage failures degrade their slot
// of the report.
func (p *Pipeline) Analyze(ctx context.Context, videoPath, credential string) (*Report, error) {
	id := uuid.NewString()
	log := p.log.WithFields(logrus.Fields{"request": id, "video": filepath.Base(videoPath)})

	dir, err := os.MkdirTemp(p.opts.WorkDir, "analysis-"+id+"-")
	if err != nil {
		return nil, fmt.Errorf("work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).Warn("remove work dir")
		}
	}()
	wavPath := filepath.Join(dir, "audio.wav")

	start := time.Now()
	if err := p.deps.Extractor.ExtractAudio(ctx, videoPath, wavPath); err != nil {
		p.metrics.ObserveStage(string(StageExtract), "fatal", start)
		log.WithError(err).Error("audio extraction failed")
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	p.metrics.ObserveStage(string(StageExtract), "ok", start)

	var res branchResults
	var g errgroup.Group

	g.Go(func() error {
		res.facesErr = p.stage(ctx, log, StageFaces, p.opts.FacesTimeout, func(ctx context.Context) error {
			var err error
			res.faces, err = p.deps.Faces.Aggregate(ctx, videoPath)
			return err
		})
		return nil
	})

	g.Go(func() error {
		res.audioErr = p.stage(ctx, log, StageAudio, 0, func(ctx context.Context) error {
			w, err := p.deps.Decode(wavPath)
			if err != nil {
				return &analysis.FeatureExtractionError{Reason: "decode audio", Err: err}
			}
			res.audio, err = analysis.ExtractAudioFeatures(w)
			return err
		})
		return nil
	})

	g.Go(func() error {
		res.transErr = p.stage(ctx, log, StageTranscript, p.opts.TranscriptionTimeout, func(ctx context.Context) error {
			var err error
			res.transcript, err = p.deps.Transcriber.Transcribe(ctx, wavPath, p.opts.ModelSize)
			return err
		})
		if res.transErr != nil {
			return nil
		}
		if res.transcript == "" {
			res.verdict = analysis.NoSpeech()
			return nil
		}
		res.verdictErr = p.stage(ctx, log, StageHonesty, p.opts.SincerityTimeout, func(ctx context.Context) error {
			var err error
			res.verdict, err = p.deps.Scorer.Score(ctx, res.transcript, credential)
			return err
		})
		return nil
	})

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := assemble(&res)
	log.WithFields(logrus.Fields{
		"emotions": len(r.Faces),
		"failures": len(r.Failures),
		"honesty":  r.HonestyStatus,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("analysis complete")
	return r, nil
}
