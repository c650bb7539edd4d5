// Package generate wraps the external language-model API used by the improve
// stage to draft documentation suggestions.
package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Sentinel errors for generator construction.
var (
	ErrUnsupportedProvider = errors.New("unsupported llm provider")
	ErrMissingAPIKey       = errors.New("llm api key required")
)

// Options configures the generator.
type Options struct {
	Provider   string
	Model      string
	APIKey     string
	OllamaHost string
}

// Generator produces documentation suggestions. The improve command depends
// on this interface so tests can script suggestions without a live API.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Model is the langchaingo-backed Generator.
type Model struct {
	llm       llms.Model
	modelName string
}

// NewModel creates a generator for the configured provider.
func NewModel(opts Options) (*Model, error) {
	var (
		model llms.Model
		err   error
	)

	switch opts.Provider {
	case ProviderAnthropic:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("%w: provider %s", ErrMissingAPIKey, opts.Provider)
		}

		model, err = anthropic.New(
			anthropic.WithToken(opts.APIKey),
			anthropic.WithModel(opts.Model),
		)

	case ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("%w: provider %s", ErrMissingAPIKey, opts.Provider)
		}

		model, err = openai.New(
			openai.WithToken(opts.APIKey),
			openai.WithModel(opts.Model),
		)

	case ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(opts.Model),
			ollama.WithServerURL(opts.OllamaHost),
		)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, opts.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", opts.Provider, err)
	}

	return &Model{llm: model, modelName: opts.Model}, nil
}

// Generate implements Generator with a single-prompt completion.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	return response, nil
}

// SuggestionPrompt builds the improve-stage prompt for one documentation
// item.
func SuggestionPrompt(filepath, name, kind, currentDoc string) string {
	if currentDoc == "" {
		return fmt.Sprintf(
			"Write a concise documentation comment for the %s %q in %s. Respond with the comment text only.",
			kind, name, filepath,
		)
	}

	return fmt.Sprintf(
		"Improve the documentation comment for the %s %q in %s. Current comment:\n\n%s\n\nRespond with the improved comment text only.",
		kind, name, filepath, currentDoc,
	)
}
