package generation

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
)

const component = "generation"

// Options configures an OpenAI client.
type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	// Timeout bounds each request, including the full duration of a stream.
	Timeout time.Duration
	// RateLimit is the sustained number of requests per second; zero
	// disables limiting.
	RateLimit float64
	RateBurst int
}

// OpenAI implements Generator over the chat-completions API.
type OpenAI struct {
	client  *openai.Client
	opts    Options
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAI creates a client. BaseURL may point at any OpenAI-compatible
// server.
func NewOpenAI(opts Options, logger *zap.Logger) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, apperrors.New(apperrors.InvalidInput, "OPENAI_API_KEY is not set").WithComponent(component)
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	logger.Info("initializing generation client", zap.String("model", opts.Model), zap.String("base_url", cfg.BaseURL))
	return &OpenAI{
		client:  openai.NewClientWithConfig(cfg),
		opts:    opts,
		limiter: limiter,
		logger:  logger.With(zap.String("component", component)),
	}, nil
}

func (o *OpenAI) request(system, user string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       o.opts.Model,
		Temperature: o.opts.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
}

func (o *OpenAI) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	if o.opts.Timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	return ctx, cancel, nil
}

func failure(op string, err error) error {
	msg := "request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return apperrors.Wrap(apperrors.GenerationFailure, err, msg).WithComponent(component).WithOperation(op)
}

// Complete implements Generator.
func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel, err := o.begin(ctx)
	if err != nil {
		return "", failure("Complete", err)
	}
	defer cancel()

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, o.request(system, user))
	if err != nil {
		o.logger.Error("chat completion failed", zap.Error(err))
		return "", failure("Complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", failure("Complete", errors.New("response has no choices"))
	}
	o.logger.Debug("chat completion finished",
		zap.Duration("took", time.Since(start)),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)
	return resp.Choices[0].Message.Content, nil
}

// Stream implements Generator.
func (o *OpenAI) Stream(ctx context.Context, system, user string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel, err := o.begin(ctx)
		if err != nil {
			yield("", failure("Stream", err))
			return
		}
		defer cancel()

		s, err := o.client.CreateChatCompletionStream(ctx, o.request(system, user))
		if err != nil {
			o.logger.Error("chat completion stream failed", zap.Error(err))
			yield("", failure("Stream", err))
			return
		}
		defer s.Close()

		for {
			resp, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", failure("Stream", err))
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(resp.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}
