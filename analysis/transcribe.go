package analysis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultModelSize is used when no model size is requested.
const DefaultModelSize = "base"

// SpeechModel is a loaded speech-to-text model.
type SpeechModel interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// ModelLoader acquires a speech model of the given size.
type ModelLoader interface {
	LoadModel(ctx context.Context, size string) (SpeechModel, error)
}

// DefaultModelLoadTimeout bounds a shared model load.
const DefaultModelLoadTimeout = 10 * time.Minute

// ModelCache memoises loaded models by size. Concurrent first requests for
// the same size share a single load; failed loads are not cached. The load
// is detached from any one caller's context so a cancelled request does not
// fail the others waiting on it.
type ModelCache struct {
	loader      ModelLoader
	group       singleflight.Group
	loadTimeout time.Duration

	mu     sync.RWMutex
	models map[string]SpeechModel
}

func NewModelCache(loader ModelLoader) *ModelCache {
	return &ModelCache{loader: loader, loadTimeout: DefaultModelLoadTimeout, models: map[string]SpeechModel{}}
}

func (c *ModelCache) Get(ctx context.Context, size string) (SpeechModel, error) {
	c.mu.RLock()
	m, ok := c.models[size]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(size, func() (interface{}, error) {
		c.mu.RLock()
		m, ok := c.models[size]
		c.mu.RUnlock()
		if ok {
			return m, nil
		}
		lctx, cancel := context.WithTimeout(loadCtx, c.loadTimeout)
		defer cancel()
		m, err := c.loader.LoadModel(lctx, size)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.models[size] = m
		c.mu.Unlock()
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(SpeechModel), nil
	}
}

// Transcriber is the Transcription Adapter.
type Transcriber struct {
	cache *ModelCache
	log   logrus.FieldLogger
}

func NewTranscriber(cache *ModelCache, log logrus.FieldLogger) *Transcriber {
	return &Transcriber{cache: cache, log: log}
}

// Transcribe returns the trimmed transcript of wavPath. An empty transcript
// is a valid result.
func (t *Transcriber) Transcribe(ctx context.Context, wavPath, size string) (string, error) {
	if size == "" {
		size = DefaultModelSize
	}
	f, err := os.Open(wavPath)
	if err != nil {
		return "", &TranscriptionError{Model: size, Err: err}
	}
	f.Close()

	model, err := t.cache.Get(ctx, size)
	if err != nil {
		return "", &TranscriptionError{Model: size, Err: fmt.Errorf("load model: %w", err)}
	}
	text, err := model.Transcribe(ctx, wavPath)
	if err != nil {
		return "", &TranscriptionError{Model: size, Err: err}
	}
	text = strings.TrimSpace(text)
	t.log.WithFields(logrus.Fields{"model": size, "chars": len(text)}).Debug("transcribed")
	return text, nil
}
