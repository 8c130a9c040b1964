// Package pipeline composes retrieval, prompt templating and
// generation into a single question answering operation.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/docchat/docchat/internal/types"
)

// FallbackAnswer is the exact sentence the generative model is
// instructed to emit when the retrieved context cannot answer the
// question. It must stay byte-exact: callers and tests detect the
// no-answer case by comparing against it, and it is the only defense
// against fabricated answers.
const FallbackAnswer = "I do not have enough information about that in my documents."

// The instruction set is fixed; it is rendered with fresh context and
// question per call but never reworded at runtime.
const answerTemplate = `Act as an expert and very helpful assistant for the indexed document collection.
Your mission is to provide detailed and complete answers using only the information found in the CONTEXT below.

Follow these rules strictly:
1. Be thorough: extract and synthesize ALL the relevant information from the context that answers the question. Do not omit details, requirements, dates or steps.
2. Organize the answer: if the question is about a process, describe it as an ordered step-by-step list; list requirements as bullet points.
3. Elaborate: explain the concepts in your own words, based on the context, so the answer is coherent and complete.
4. Absolute restriction: if the information needed to answer the question is not found in the CONTEXT, you MUST reply only and exactly with the sentence: "{{.fallback}}" Do not guess and do not add outside information.

---
CONTEXT:
{{.context}}
---
QUESTION:
{{.question}}
---

DETAILED AND COMPLETE ANSWER:`

// Retriever is the read side of an index.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]types.Result, error)
}

// GenerationError wraps a failed call to the generative service. The
// pipeline never retries; retry policy belongs to the caller.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type Config struct {
	K        int
	Fallback string
}

// Pipeline answers questions by retrieving the top-k chunks for the
// question, rendering them into the fixed prompt and calling the
// generative service once.
type Pipeline struct {
	config    Config
	retriever Retriever
	generator types.Generator
	prompt    prompts.PromptTemplate
}

func New(config Config, retriever Retriever, generator types.Generator) *Pipeline {
	if config.K == 0 {
		config.K = 4
	}
	if config.Fallback == "" {
		config.Fallback = FallbackAnswer
	}

	return &Pipeline{
		config:    config,
		retriever: retriever,
		generator: generator,
		prompt: prompts.PromptTemplate{
			Template:       answerTemplate,
			InputVariables: []string{"context", "question", "fallback"},
			TemplateFormat: prompts.TemplateFormatGoTemplate,
		},
	}
}

// Answer runs retrieve, render, generate in that fixed order. Zero
// retrieved chunks still go to generation with empty context; the
// prompt's fallback instruction produces the no-answer sentence in
// that case, not a pipeline short-circuit.
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	results, err := p.retriever.Query(ctx, question, p.config.K)
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}

	rendered, err := p.prompt.Format(map[string]any{
		"context":  formatContext(results),
		"question": question,
		"fallback": p.config.Fallback,
	})
	if err != nil {
		return "", fmt.Errorf("prompt rendering failed: %w", err)
	}

	answer, err := p.generator.Generate(ctx, rendered)
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	return strings.TrimSpace(answer), nil
}

func formatContext(results []types.Result) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Source: %s\n%s", r.Chunk.Source, r.Chunk.Content)
	}
	return b.String()
}
