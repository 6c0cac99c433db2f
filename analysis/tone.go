package analysis

import (
	"strings"

	"github.com/jonreiter/govader"
)

var vader = govader.NewSentimentIntensityAnalyzer()

// Tone is the lexicon-based polarity of a transcript.
type Tone struct {
	Compound float64 `json:"compound" yaml:"compound"`
	Label    string  `json:"label" yaml:"label"`
}

// TranscriptTone scores text with VADER. Nil for blank text.
func TranscriptTone(text string) *Tone {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	score := vader.PolarityScores(text).Compound

	label := "neutral"
	if score >= 0.20 {
		label = "positive"
	} else if score <= -0.20 {
		label = "negative"
	}
	return &Tone{Compound: score, Label: label}
}
