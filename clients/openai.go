package clients

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/maastricht-university/sincerity-pipeline/analysis"
)

const systemPrompt = "You are an assistant that judges whether transcribed speech sounds sincere and honest."

type OpenAIOptions struct {
	Model     string
	MaxTokens int
	BaseURL   string
	Timeout   time.Duration
	Retries   uint64
}

// OpenAICompleter sends chat completions with retry and a circuit breaker.
// A client is built per call since the credential is supplied per request.
type OpenAICompleter struct {
	opts    OpenAIOptions
	breaker *gobreaker.CircuitBreaker
	backoff func() backoff.BackOff
	log     logrus.FieldLogger
}

func NewOpenAICompleter(opts OpenAIOptions, log logrus.FieldLogger) *OpenAICompleter {
	if opts.Model == "" {
		opts.Model = openai.GPT3Dot5Turbo
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	st := gobreaker.Settings{
		Name:        "sincerity-completion",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: serviceHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state change")
		},
	}
	return &OpenAICompleter{
		opts:    opts,
		breaker: gobreaker.NewCircuitBreaker(st),
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = opts.Timeout
			return b
		},
		log: log,
	}
}

func (c *OpenAICompleter) client(credential string) *openai.Client {
	conf := openai.DefaultConfig(credential)
	if c.opts.BaseURL != "" {
		conf.BaseURL = c.opts.BaseURL
	}
	conf.HTTPClient = &http.Client{Timeout: c.opts.Timeout}
	return openai.NewClientWithConfig(conf)
}

func (c *OpenAICompleter) Complete(ctx context.Context, credential, prompt string) (string, error) {
	cl := c.client(credential)
	req := openai.ChatCompletionRequest{
		Model: c.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: c.opts.MaxTokens,
		// zero would be dropped by omitempty
		Temperature: math.SmallestNonzeroFloat32,
	}

	var answer string
	attempt := 0
	op := func() error {
		attempt++
		out, err := c.breaker.Execute(func() (interface{}, error) {
			resp, err := cl.CreateChatCompletion(ctx, req)
			if err != nil {
				return nil, err
			}
			if len(resp.Choices) == 0 {
				return nil, errors.New("completion returned no choices")
			}
			return resp.Choices[0].Message.Content, nil
		})
		if err != nil {
			if !retryable(ctx, err) {
				return backoff.Permanent(err)
			}
			c.log.WithError(err).WithField("attempt", attempt).Warn("completion failed, will retry")
			return err
		}
		answer = out.(string)
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.backoff(), c.opts.Retries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return "", &analysis.SincerityServiceError{StatusCode: statusCode(err), Err: err}
	}
	return strings.TrimSpace(answer), nil
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// serviceHealthy keeps caller faults such as a bad per-request key or a
// cancelled request from counting against the shared breaker.
func serviceHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	code := statusCode(err)
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// retryable is true for transport errors, 429 and 5xx.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	code := statusCode(err)
	return code == 0 || code == http.StatusTooManyRequests || code >= 500
}

// WhisperLoader transcribes through the hosted whisper API. The model size
// is informational since the hosted API serves a single model.
type WhisperLoader struct {
	credential string
	baseURL    string
	timeout    time.Duration
}

func NewWhisperLoader(credential, baseURL string, timeout time.Duration) *WhisperLoader {
	return &WhisperLoader{credential: credential, baseURL: baseURL, timeout: timeout}
}

func (l *WhisperLoader) LoadModel(ctx context.Context, size string) (analysis.SpeechModel, error) {
	if l.credential == "" {
		return nil, errors.New("whisper: no API key configured")
	}
	conf := openai.DefaultConfig(l.credential)
	if l.baseURL != "" {
		conf.BaseURL = l.baseURL
	}
	if l.timeout > 0 {
		conf.HTTPClient = &http.Client{Timeout: l.timeout}
	}
	return &whisperModel{client: openai.NewClientWithConfig(conf)}, nil
}

type whisperModel struct {
	client *openai.Client
}

func (m *whisperModel) Transcribe(ctx context.Context, wavPath string) (string, error) {
	resp, err := m.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: wavPath,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
