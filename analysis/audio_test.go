package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, rate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func TestExtractAudioFeaturesSilence(t *testing.T) {
	w := Waveform{Channels: [][]float64{make([]float64, 16000)}, SampleRate: 16000}

	got, err := ExtractAudioFeatures(w)
	require.NoError(t, err)
	assert.InDelta(t, 0, got.Energy, 1e-12)
	assert.InDelta(t, 0, got.ZCR, 1e-12)
}

func TestExtractAudioFeaturesSine(t *testing.T) {
	const rate = 8000
	w := Waveform{Channels: [][]float64{sine(1000, rate, rate)}, SampleRate: rate}

	got, err := ExtractAudioFeatures(w)
	require.NoError(t, err)
	// a unit-peak sine has mean power 1/2
	assert.InDelta(t, 0.5, got.Energy, 0.02)
	// 1 kHz at 8 kHz crosses zero twice per 8 samples
	assert.InDelta(t, 0.25, got.ZCR, 0.02)
}

func TestExtractAudioFeaturesStereoMix(t *testing.T) {
	const rate = 8000
	left := sine(500, rate, rate)
	right := make([]float64, rate)
	copy(right, left)

	mono, err := ExtractAudioFeatures(Waveform{Channels: [][]float64{left}, SampleRate: rate})
	require.NoError(t, err)
	stereo, err := ExtractAudioFeatures(Waveform{Channels: [][]float64{left, right}, SampleRate: rate})
	require.NoError(t, err)

	assert.InDelta(t, mono.Energy, stereo.Energy, 1e-9)
	assert.InDelta(t, mono.ZCR, stereo.ZCR, 1e-9)
}

func TestExtractAudioFeaturesErrors(t *testing.T) {
	tests := []struct {
		name string
		w    Waveform
	}{
		{name: "empty", w: Waveform{SampleRate: 16000}},
		{name: "empty channel", w: Waveform{Channels: [][]float64{{}}, SampleRate: 16000}},
		{name: "zero rate", w: Waveform{Channels: [][]float64{make([]float64, 100)}, SampleRate: 0}},
		{name: "negative rate", w: Waveform{Channels: [][]float64{make([]float64, 100)}, SampleRate: -8000}},
		{name: "shorter than window", w: Waveform{Channels: [][]float64{make([]float64, 100)}, SampleRate: 16000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractAudioFeatures(tt.w)
			var fe *FeatureExtractionError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

func TestExtractAudioFeaturesDoesNotMutateInput(t *testing.T) {
	ch := sine(440, 8000, 800)
	before := append([]float64(nil), ch...)
	_, err := ExtractAudioFeatures(Waveform{Channels: [][]float64{ch}, SampleRate: 8000})
	require.NoError(t, err)
	assert.Equal(t, before, ch)
}
