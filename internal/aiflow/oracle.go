package aiflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/therealutkarshpriyadarshi/examprep/internal/config"
)

// ErrFlow marks a failure of the generative model or of its output
var ErrFlow = errors.New("ai flow failed")

// Prompt is one rendered request to a generative model
type Prompt struct {
	System string
	User   string
	// ImageDataURI is an optional data:image/... URI sent alongside User
	ImageDataURI string
}

// Oracle produces the raw text completion for a prompt
type Oracle interface {
	Generate(ctx context.Context, p Prompt) (string, error)
	Model() string
}

// OpenAIOracle talks to any OpenAI-compatible chat completions endpoint
type OpenAIOracle struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// NewOpenAIOracle creates an oracle from configuration
func NewOpenAIOracle(cfg config.AIConfig) (*OpenAIOracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: ai api key is not configured", ErrFlow)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIOracle{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}, nil
}

// Model returns the configured model name
func (o *OpenAIOracle) Model() string {
	return o.model
}

// Generate sends the prompt and returns the first choice's content
func (o *OpenAIOracle) Generate(ctx context.Context, p Prompt) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var user openai.ChatCompletionMessageParamUnion
	if p.ImageDataURI != "" {
		user = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(p.User),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: p.ImageDataURI}),
		})
	} else {
		user = openai.UserMessage(p.User)
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			user,
		},
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: completion request: %v", ErrFlow, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response from model", ErrFlow)
	}

	return resp.Choices[0].Message.Content, nil
}
