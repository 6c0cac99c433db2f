package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// VerdictStatus tags a SincerityVerdict.
type VerdictStatus string

const (
	VerdictOK           VerdictStatus = "ok"
	VerdictNoCredential VerdictStatus = "no_credential"
	VerdictFailed       VerdictStatus = "failed"
	// VerdictSkipped means no transcript was available to judge.
	VerdictSkipped VerdictStatus = "skipped"
)

// Fixed texts for verdicts without a model answer.
const (
	NoCredentialText = "OpenAI API key not provided; sincerity analysis not performed."
	UnavailableText  = "Sincerity analysis unavailable."
	NoSpeechText     = "No speech detected; sincerity analysis not performed."
)

// Verdict is the Sincerity Scorer result.
type Verdict struct {
	Status VerdictStatus
	Text   string
}

// NoCredential is the verdict when no credential is available.
func NoCredential() Verdict {
	return Verdict{Status: VerdictNoCredential, Text: NoCredentialText}
}

// NoSpeech is the verdict for an empty transcript.
func NoSpeech() Verdict {
	return Verdict{Status: VerdictSkipped, Text: NoSpeechText}
}

// Degraded is the verdict substituted when scoring failed or was skipped.
func Degraded(status VerdictStatus) Verdict {
	return Verdict{Status: status, Text: UnavailableText}
}

// Completer sends a prompt to a remote text-completion service.
type Completer interface {
	Complete(ctx context.Context, credential, prompt string) (string, error)
}

const sincerityPrompt = `The following is a transcript of a person speaking:

"%s"

Based only on the wording, does the speaker sound sincere and honest? ` +
	`Answer with a short judgment followed by a one or two sentence justification.`

// SincerityPrompt renders the fixed prompt for transcript.
func SincerityPrompt(transcript string) string {
	return fmt.Sprintf(sincerityPrompt, transcript)
}

// Scorer is the Sincerity Scorer. The credential is resolved by the caller.
type Scorer struct {
	completer Completer
}

func NewScorer(c Completer) *Scorer {
	return &Scorer{completer: c}
}

// Score judges transcript. A missing credential yields NoCredential and no
// error; remote failures are returned as *SincerityServiceError.
func (s *Scorer) Score(ctx context.Context, transcript, credential string) (Verdict, error) {
	if strings.TrimSpace(credential) == "" {
		return NoCredential(), nil
	}
	text, err := s.completer.Complete(ctx, credential, SincerityPrompt(transcript))
	if err != nil {
		var svcErr *SincerityServiceError
		if errors.As(err, &svcErr) {
			return Verdict{}, err
		}
		return Verdict{}, &SincerityServiceError{Err: err}
	}
	return Verdict{Status: VerdictOK, Text: strings.TrimSpace(text)}, nil
}
