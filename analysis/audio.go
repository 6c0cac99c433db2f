package analysis

import (
	"math"
)

// WindowSeconds is both the short-term window and the hop.
const WindowSeconds = 0.05

// ExtractAudioFeatures computes energy and zero-crossing rate over
// non-overlapping 50ms windows of the mono mix and averages each across
// windows. A trailing partial window is ignored.
func ExtractAudioFeatures(w Waveform) (AudioFeatures, error) {
	if w.SampleRate <= 0 {
		return AudioFeatures{}, &FeatureExtractionError{Reason: "non-positive sample rate"}
	}
	mono := mixDown(w.Channels)
	if len(mono) == 0 {
		return AudioFeatures{}, &FeatureExtractionError{Reason: "empty waveform"}
	}
	win := int(WindowSeconds * float64(w.SampleRate))
	if win < 2 {
		return AudioFeatures{}, &FeatureExtractionError{Reason: "sample rate too low for a 50ms window"}
	}
	if len(mono) < win {
		return AudioFeatures{}, &FeatureExtractionError{Reason: "waveform shorter than one analysis window"}
	}

	dcNormalize(mono)

	var energy, zcr float64
	n := 0
	for start := 0; start+win <= len(mono); start += win {
		frame := mono[start : start+win]
		energy += frameEnergy(frame)
		zcr += zeroCrossingRate(frame)
		n++
	}
	return AudioFeatures{Energy: energy / float64(n), ZCR: zcr / float64(n)}, nil
}

// mixDown averages channels into a fresh mono slice. Channels of unequal
// length are truncated to the shortest.
func mixDown(chans [][]float64) []float64 {
	if len(chans) == 0 {
		return nil
	}
	n := len(chans[0])
	for _, c := range chans[1:] {
		n = min(n, len(c))
	}
	out := make([]float64, n)
	for _, c := range chans {
		for i := 0; i < n; i++ {
			out[i] += c[i]
		}
	}
	if k := float64(len(chans)); k > 1 {
		for i := range out {
			out[i] /= k
		}
	}
	return out
}

// dcNormalize removes the mean and scales to unit peak, in place.
func dcNormalize(x []float64) {
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	peak := 0.0
	for i := range x {
		x[i] -= mean
		peak = math.Max(peak, math.Abs(x[i]))
	}
	peak += 1e-10
	for i := range x {
		x[i] /= peak
	}
}

func frameEnergy(frame []float64) float64 {
	sum := 0.0
	for _, v := range frame {
		sum += v * v
	}
	return sum / float64(len(frame))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func zeroCrossingRate(frame []float64) float64 {
	changes := 0.0
	for i := 1; i < len(frame); i++ {
		changes += math.Abs(sign(frame[i]) - sign(frame[i-1]))
	}
	return changes / 2 / float64(len(frame)-1)
}
