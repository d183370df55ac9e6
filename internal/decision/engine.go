// Package decision asks a language model for an AC adjustment and parses the
// reply into the closed five-action Decision type.
package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/nightbreeze/internal/config"
	"github.com/lox/nightbreeze/internal/metrics"
	"github.com/lox/nightbreeze/internal/models"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultModel      = "google/gemini-2.0-flash-001"

	// Low temperature keeps the rule table deterministic; the budget only
	// needs to cover one small JSON object.
	samplingTemperature = 0.3
	maxCompletionTokens = 200
)

// DefaultTimeout bounds one reasoning call.
const DefaultTimeout = 30 * time.Second

// Engine calls an OpenRouter-hosted model through the OpenAI-compatible
// chat completions API.
type Engine struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewEngine builds an engine for the given OpenRouter credentials. An empty
// model selects the default.
func NewEngine(apiKey, model string) (*Engine, error) {
	if apiKey == "" {
		return nil, errors.New("decision: OPENROUTER_API_KEY not set")
	}
	if model == "" {
		model = defaultModel
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(openRouterBaseURL),
	)

	return &Engine{
		client:  client,
		model:   model,
		timeout: DefaultTimeout,
	}, nil
}

// SetTimeout overrides the per-call timeout, used by tests.
func (e *Engine) SetTimeout(d time.Duration) { e.timeout = d }

// Decide sends the prompt and returns the validated decision. Transport
// failures, timeouts, and malformed replies are errors; the caller decides
// what a failed reasoning step means for the run.
func (e *Engine) Decide(ctx context.Context, dc Context, rules config.Rules, notes string) (models.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := BuildPrompt(dc, rules, notes)

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(samplingTemperature),
		MaxTokens:   openai.Int(maxCompletionTokens),
	})
	if err != nil {
		metrics.DecisionCallsTotal.WithLabelValues("error").Inc()
		return models.Decision{}, fmt.Errorf("reasoning call: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.DecisionCallsTotal.WithLabelValues("error").Inc()
		return models.Decision{}, errors.New("reasoning call: empty response")
	}

	d, err := Parse(resp.Choices[0].Message.Content)
	if err != nil {
		metrics.DecisionCallsTotal.WithLabelValues("malformed").Inc()
		return models.Decision{}, err
	}

	metrics.DecisionCallsTotal.WithLabelValues("ok").Inc()
	return d, nil
}
