package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCompleter struct {
	prompt     string
	credential string
	answer     string
	err        error
}

func (c *recordingCompleter) Complete(ctx context.Context, credential, prompt string) (string, error) {
	c.credential, c.prompt = credential, prompt
	return c.answer, c.err
}

func TestScoreNoCredential(t *testing.T) {
	c := &recordingCompleter{}
	s := NewScorer(c)

	for _, cred := range []string{"", "   "} {
		v, err := s.Score(context.Background(), "I did not take it.", cred)
		require.NoError(t, err)
		assert.Equal(t, VerdictNoCredential, v.Status)
		assert.Equal(t, NoCredentialText, v.Text)
	}
	assert.Empty(t, c.prompt, "no remote call without a credential")
}

func TestScoreOK(t *testing.T) {
	c := &recordingCompleter{answer: "\n Sounds sincere. The speaker is consistent.  "}
	s := NewScorer(c)

	v, err := s.Score(context.Background(), "I was home all evening.", "sk-1")
	require.NoError(t, err)
	assert.Equal(t, VerdictOK, v.Status)
	assert.Equal(t, "Sounds sincere. The speaker is consistent.", v.Text)
	assert.Equal(t, "sk-1", c.credential)
	assert.True(t, strings.Contains(c.prompt, `"I was home all evening."`))
	assert.Equal(t, SincerityPrompt("I was home all evening."), c.prompt)
}

func TestScoreServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "plain error", err: errors.New("connection reset")},
		{name: "typed error", err: &SincerityServiceError{StatusCode: 503, Err: errors.New("overloaded")}, status: 503},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(&recordingCompleter{err: tt.err})
			_, err := s.Score(context.Background(), "text", "sk-1")
			var se *SincerityServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, "sincerity_service", Kind(err))
		})
	}
}

func TestTranscriptTone(t *testing.T) {
	assert.Nil(t, TranscriptTone("  "))

	pos := TranscriptTone("I love this, it is wonderful and great!")
	require.NotNil(t, pos)
	assert.Equal(t, "positive", pos.Label)

	neg := TranscriptTone("This is terrible, awful and I hate it.")
	require.NotNil(t, neg)
	assert.Equal(t, "negative", neg.Label)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "media_open", Kind(&MediaOpenError{Path: "x", Err: errors.New("eof")}))
	assert.Equal(t, "feature_extraction", Kind(&FeatureExtractionError{Reason: "empty waveform"}))
	assert.Equal(t, "transcription", Kind(&TranscriptionError{Model: "base", Err: errors.New("x")}))
	assert.Equal(t, "timeout", Kind(context.DeadlineExceeded))
	assert.Equal(t, "internal", Kind(errors.New("boom")))
}
