package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/sincerity-pipeline/analysis"
)

// AllowedExtensions lists the accepted video containers.
var AllowedExtensions = map[string]bool{"mp4": true, "avi": true, "mov": true, "mkv": true}

// Allowed reports whether name has an accepted video extension.
func Allowed(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return ext != "" && AllowedExtensions[strings.ToLower(ext)]
}

// FFmpeg shells out to ffmpeg/ffprobe for audio extraction and frame decoding.
type FFmpeg struct {
	Bin        string
	ProbeBin   string
	SampleRate int
	Channels   int
	log        logrus.FieldLogger
}

func NewFFmpeg(bin, probe string, sampleRate, channels int, log logrus.FieldLogger) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	if probe == "" {
		probe = "ffprobe"
	}
	return &FFmpeg{Bin: bin, ProbeBin: probe, SampleRate: sampleRate, Channels: channels, log: log}
}

func (f *FFmpeg) audioArgs(videoPath, wavPath string) []string {
	args := []string{"-nostdin", "-v", "error", "-y", "-i", videoPath, "-vn", "-acodec", "pcm_s16le"}
	if f.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(f.SampleRate))
	}
	if f.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(f.Channels))
	}
	return append(args, wavPath)
}

// ExtractAudio writes the audio track of videoPath to wavPath as 16-bit PCM.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, wavPath string) error {
	if err := checkReadable(videoPath); err != nil {
		return &analysis.MediaOpenError{Path: videoPath, Err: err}
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Bin, f.audioArgs(videoPath, wavPath)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &analysis.MediaOpenError{Path: videoPath, Err: fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))}
	}
	f.log.WithFields(logrus.Fields{"video": videoPath, "wav": wavPath}).Debug("audio extracted")
	return nil
}

type probeResp struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

func (f *FFmpeg) probe(ctx context.Context, path string) (int, int, error) {
	out, err := exec.CommandContext(ctx, f.ProbeBin,
		"-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height", "-of", "json", path).Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe: %w", err)
	}
	var pr probeResp
	if err := json.Unmarshal(out, &pr); err != nil {
		return 0, 0, fmt.Errorf("ffprobe decode: %w", err)
	}
	if len(pr.Streams) == 0 || pr.Streams[0].Width <= 0 || pr.Streams[0].Height <= 0 {
		return 0, 0, errors.New("no video stream")
	}
	return pr.Streams[0].Width, pr.Streams[0].Height, nil
}

// frameArgs decodes to raw RGB24 on stdout. Autorotation is disabled so
// frames keep the coded width and height that ffprobe reports.
func (f *FFmpeg) frameArgs(path string) []string {
	return []string{"-nostdin", "-v", "error", "-noautorotate", "-i", path,
		"-f", "rawvideo", "-pix_fmt", "rgb24", "pipe:1"}
}

// Open starts decoding path to raw RGB24 frames.
func (f *FFmpeg) Open(ctx context.Context, path string) (analysis.FrameSource, error) {
	if err := checkReadable(path); err != nil {
		return nil, &analysis.MediaOpenError{Path: path, Err: err}
	}
	w, h, err := f.probe(ctx, path)
	if err != nil {
		return nil, &analysis.MediaOpenError{Path: path, Err: err}
	}
	fr, err := startFrameReader(ctx, exec.CommandContext(ctx, f.Bin, f.frameArgs(path)...), path, w, h)
	if err != nil {
		return nil, &analysis.MediaOpenError{Path: path, Err: err}
	}
	return fr, nil
}

// startFrameReader runs a decoder writing raw RGB24 frames to stdout.
func startFrameReader(ctx context.Context, cmd *exec.Cmd, path string, width, height int) (*frameReader, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	fr := newFrameReader(stdout, width, height, func() error {
		if err := cmd.Wait(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil
	})
	fr.path = path
	fr.kill = func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
	return fr, nil
}

func checkReadable(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if st.Size() == 0 {
		return errors.New("empty file")
	}
	return nil
}

// frameReader slices a raw RGB24 stream into frames. wait reaps the decoder
// and reports how it exited; kill stops it early.
type frameReader struct {
	r      io.Reader
	path   string
	width  int
	height int
	index  int
	wait   func() error
	kill   func()

	waitOnce sync.Once
	waitErr  error
	closed   sync.Once
	atEOF    bool
}

func newFrameReader(r io.Reader, width, height int, wait func() error) *frameReader {
	return &frameReader{r: r, width: width, height: height, wait: wait}
}

func (fr *frameReader) reap() error {
	fr.waitOnce.Do(func() {
		if fr.wait != nil {
			fr.waitErr = fr.wait()
		}
	})
	return fr.waitErr
}

// Next returns io.EOF once the decoder has finished cleanly; a truncated
// trailing frame also ends the stream. A decoder that exits with an error
// yields a *analysis.MediaOpenError instead.
func (fr *frameReader) Next(ctx context.Context) (analysis.Frame, error) {
	if err := ctx.Err(); err != nil {
		return analysis.Frame{}, err
	}
	if fr.atEOF {
		return analysis.Frame{}, fr.endOfStream()
	}
	buf := make([]byte, fr.width*fr.height*3)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return analysis.Frame{}, err
		}
		fr.atEOF = true
		return analysis.Frame{}, fr.endOfStream()
	}
	f := analysis.Frame{Index: fr.index, Width: fr.width, Height: fr.height, Pix: buf}
	fr.index++
	return f, nil
}

func (fr *frameReader) endOfStream() error {
	err := fr.reap()
	switch {
	case err == nil:
		return io.EOF
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &analysis.MediaOpenError{Path: fr.path, Err: err}
}

// Close stops the decoder. Before end of stream the decoder is killed and
// the resulting exit error is expected; after end of stream the exit
// status was already reported by Next.
func (fr *frameReader) Close() error {
	var err error
	fr.closed.Do(func() {
		if fr.atEOF {
			fr.reap()
			return
		}
		if fr.kill != nil {
			fr.kill()
		}
		var exitErr *exec.ExitError
		if rerr := fr.reap(); rerr != nil && !errors.As(rerr, &exitErr) {
			err = rerr
		}
	})
	return err
}
