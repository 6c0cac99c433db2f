package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/sincerity-pipeline/analysis"
)

// stage runs fn under an optional timeout and records its latency.
func (p *Pipeline) stage(ctx context.Context, log logrus.FieldLogger, name Stage, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := fn(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "degraded"
		log.WithError(err).WithFields(logrus.Fields{"stage": name, "kind": analysis.Kind(err)}).Warn("stage degraded")
	}
	p.metrics.ObserveStage(string(name), outcome, start)
	return err
}

// branchResults holds each stage's output as set by its goroutine.
type branchResults struct {
	faces      analysis.FaceSummary
	facesErr   error
	audio      analysis.AudioFeatures
	audioErr   error
	transcript string
	transErr   error
	verdict    analysis.Verdict
	verdictErr error
}

func failure(stage Stage, err error) StageFailure {
	return StageFailure{Stage: stage, Kind: analysis.Kind(err), Message: err.Error()}
}

// assemble builds the report from branch results, substituting degraded
// values for failed stages.
func assemble(res *branchResults) *Report {
	r := &Report{Faces: analysis.EmotionScores{}}

	if res.facesErr != nil {
		r.Failures = append(r.Failures, failure(StageFaces, res.facesErr))
	} else if res.faces.Scores != nil {
		r.Faces = res.faces.Scores
	}

	if res.audioErr != nil {
		r.Failures = append(r.Failures, failure(StageAudio, res.audioErr))
	} else {
		a := res.audio
		r.Audio = &a
	}

	switch {
	case res.transErr != nil:
		r.Failures = append(r.Failures, failure(StageTranscript, res.transErr))
		v := analysis.Degraded(analysis.VerdictSkipped)
		r.Honesty, r.HonestyStatus = v.Text, v.Status
	case res.verdictErr != nil:
		r.Transcript = res.transcript
		r.Failures = append(r.Failures, failure(StageHonesty, res.verdictErr))
		v := analysis.Degraded(analysis.VerdictFailed)
		r.Honesty, r.HonestyStatus = v.Text, v.Status
	default:
		r.Transcript = res.transcript
		r.Honesty, r.HonestyStatus = res.verdict.Text, res.verdict.Status
	}
	r.Tone = analysis.TranscriptTone(r.Transcript)

	sort.SliceStable(r.Failures, func(i, j int) bool {
		return stageOrder[r.Failures[i].Stage] < stageOrder[r.Failures[j].Stage]
	})
	return r
}
