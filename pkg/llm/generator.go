package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// GeneratorConfig configures the Ollama generation model.
type GeneratorConfig struct {
	Model       string
	BaseURL     string // Ollama server URL
	Temperature float64
	MaxTokens   int
}

// Generator turns a fully rendered prompt into answer text. The call
// is synchronous; no streaming.
type Generator struct {
	config GeneratorConfig
	llm    llms.Model
}

func NewGenerator(config GeneratorConfig) (*Generator, error) {
	if config.Model == "" {
		config.Model = "phi3:mini"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	// Temperature 0 is greedy decoding, not an omission; the config
	// layer owns the 0.7 default.
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}

	model, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	return &Generator{config: config, llm: model}, nil
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	answer, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithTemperature(g.config.Temperature),
		llms.WithMaxTokens(g.config.MaxTokens))
	if err != nil {
		return "", fmt.Errorf("generation error: %w", err)
	}
	return answer, nil
}

func (g *Generator) Model() string {
	return g.config.Model
}
