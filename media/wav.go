package media

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/maastricht-university/sincerity-pipeline/analysis"
)

// DecodeWAV reads a PCM WAV file into a Waveform scaled to [-1, 1].
func DecodeWAV(path string) (analysis.Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return analysis.Waveform{}, &analysis.MediaOpenError{Path: path, Err: err}
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return analysis.Waveform{}, &analysis.MediaOpenError{Path: path, Err: fmt.Errorf("not a valid wav file")}
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return analysis.Waveform{}, &analysis.MediaOpenError{Path: path, Err: fmt.Errorf("decode pcm: %w", err)}
	}

	chans := int(d.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		chans = buf.Format.NumChannels
	}
	if chans <= 0 {
		return analysis.Waveform{}, &analysis.MediaOpenError{Path: path, Err: fmt.Errorf("no audio channels")}
	}
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = int(d.BitDepth)
	}
	if depth <= 0 {
		depth = 16
	}
	scale := float64(int64(1) << uint(depth-1))

	frames := len(buf.Data) / chans
	out := make([][]float64, chans)
	for c := range out {
		out[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < chans; c++ {
			out[c][i] = float64(buf.Data[i*chans+c]) / scale
		}
	}
	return analysis.Waveform{Channels: out, SampleRate: int(d.SampleRate)}, nil
}
