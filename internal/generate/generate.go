// Package generate turns a study document into a validated question set,
// falling back across providers when a call fails or returns unusable text.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/assessor/internal/apperr"
	"github.com/pavelanni/assessor/internal/doctext"
	"github.com/pavelanni/assessor/internal/extract"
	"github.com/pavelanni/assessor/internal/llm"
	"github.com/pavelanni/assessor/internal/llm/prompts"
	"github.com/pavelanni/assessor/internal/model"
)

// FailureMessage is the fixed cause reported when every attempt failed.
const FailureMessage = "AI generation failed to produce a valid response"

const (
	DefaultExcerptRunes = 10000
	DefaultMinQuestions = 5
)

// TextExtractor obtains plain text from a document.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc model.SourceDocument) (string, error)
}

// Options tunes a Generator. Zero values select the defaults.
type Options struct {
	ExcerptRunes int
	MinQuestions int
	Logger       *slog.Logger
}

// Generator drives the fast text provider and the native document provider.
// It makes at most three provider calls per request, strictly in sequence.
type Generator struct {
	fast         llm.Provider
	native       llm.DocumentProvider
	text         TextExtractor
	excerptRunes int
	minQuestions int
	log          *slog.Logger
}

// Result is an enforced question set and the provider that produced it.
type Result struct {
	Questions model.QuestionSet `json:"questions"`
	Concepts  []string          `json:"concepts"`
	ModelUsed string            `json:"modelUsed"`
}

// New creates a Generator.
func New(fast llm.Provider, native llm.DocumentProvider, text TextExtractor, opts Options) *Generator {
	if opts.ExcerptRunes <= 0 {
		opts.ExcerptRunes = DefaultExcerptRunes
	}
	if opts.MinQuestions <= 0 {
		opts.MinQuestions = DefaultMinQuestions
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Generator{
		fast:         fast,
		native:       native,
		text:         text,
		excerptRunes: opts.ExcerptRunes,
		minQuestions: opts.MinQuestions,
		log:          opts.Logger,
	}
}

// Generate produces questions for doc according to spec. On failure it
// returns a single generation error and never a partial set.
func (g *Generator) Generate(ctx context.Context, doc model.SourceDocument, spec model.AssessmentSpec) (*Result, error) {
	if err := model.Validate(spec); err != nil {
		return nil, apperr.Invalid("invalid assessment spec", err)
	}
	if len(doc.Data) == 0 {
		return nil, apperr.Invalid("no document uploaded", nil)
	}
	log := g.log.With("document", doc.Name, "subject", spec.Subject, "question_type", spec.QuestionType)

	nativeFallback := false
	text, err := g.text.ExtractText(ctx, doc)
	switch {
	case err != nil:
		log.Info("text extraction failed, using native document provider", "error", err)
		nativeFallback = true
	case strings.TrimSpace(text) == "":
		log.Info("extracted text is empty, using native document provider")
		nativeFallback = true
	default:
		log.Debug("extracted document text", "runes", len([]rune(text)))
	}

	data := prompts.GenerationData{
		Grade:        spec.GradeLevel,
		Subject:      spec.Subject,
		Difficulty:   spec.Difficulty,
		QuestionType: spec.QuestionType,
		MinQuestions: g.minQuestions,
	}
	basePrompt, err := prompts.BuildGenerationPrompt(data)
	if err != nil {
		return nil, fmt.Errorf("build generation prompt: %w", err)
	}

	if !nativeFallback {
		data.Excerpt = prompts.Truncate(text, g.excerptRunes)
		combined, err := prompts.BuildGenerationPrompt(data)
		if err != nil {
			return nil, fmt.Errorf("build generation prompt: %w", err)
		}

		raw, err := g.fast.Generate(ctx, combined)
		if err == nil {
			res, perr := g.parse(raw, spec.QuestionType)
			if perr == nil {
				res.ModelUsed = g.fast.Name()
				log.Info("questions generated", "model_used", res.ModelUsed, "count", res.Questions.Len())
				return res, nil
			}
			log.Warn("fast provider returned unusable output, retrying with native provider", "provider", g.fast.Name(), "error", perr)
			log.Debug("unusable provider output", "raw", raw)
			return g.retryText(ctx, log, combined, spec.QuestionType)
		}
		log.Warn("fast provider failed, using native document provider", "provider", g.fast.Name(), "error", err)
	}

	return g.fromDocument(ctx, log, doc, basePrompt, spec.QuestionType)
}

// fromDocument sends the original document to the native provider.
func (g *Generator) fromDocument(ctx context.Context, log *slog.Logger, doc model.SourceDocument, prompt string, qt model.QuestionType) (*Result, error) {
	mediaType := doctext.MediaType(doc.Data, doc.MediaType)
	raw, err := g.native.GenerateFromDocument(ctx, doc.Data, mediaType, prompt)
	if err != nil {
		log.Error("native provider failed", "provider", g.native.Name(), "error", err)
		return nil, apperr.Generation(FailureMessage, err)
	}
	res, err := g.parse(raw, qt)
	if err != nil {
		log.Error("native provider returned unusable output", "provider", g.native.Name(), "error", err)
		log.Debug("unusable provider output", "raw", raw)
		return nil, apperr.Generation(FailureMessage, err)
	}
	res.ModelUsed = g.native.Name() + "-native"
	log.Info("questions generated", "model_used", res.ModelUsed, "count", res.Questions.Len())
	return res, nil
}

// retryText re-issues the combined prompt as text to the native provider
// after the fast provider's output could not be used.
func (g *Generator) retryText(ctx context.Context, log *slog.Logger, prompt string, qt model.QuestionType) (*Result, error) {
	raw, err := g.native.Generate(ctx, prompt)
	if err != nil {
		log.Error("native provider text retry failed", "provider", g.native.Name(), "error", err)
		return nil, apperr.Generation(FailureMessage, err)
	}
	res, err := g.parse(raw, qt)
	if err != nil {
		log.Error("native provider text retry returned unusable output", "provider", g.native.Name(), "error", err)
		log.Debug("unusable provider output", "raw", raw)
		return nil, apperr.Generation(FailureMessage, err)
	}
	res.ModelUsed = g.native.Name()
	log.Info("questions generated", "model_used", res.ModelUsed, "count", res.Questions.Len())
	return res, nil
}

type envelope struct {
	Metadata struct {
		ConceptsExtracted []string `json:"conceptsExtracted"`
	} `json:"metadata"`
}

// parse extracts, validates and enforces a provider response. Any failure
// is an extraction error.
func (g *Generator) parse(raw string, qt model.QuestionType) (*Result, error) {
	p, err := extract.Extract(raw)
	if err != nil {
		return nil, err
	}
	var qs model.QuestionSet
	if err := p.Decode(&qs); err != nil {
		return nil, apperr.Extraction("decode question set", err)
	}
	if n := qs.Len(); n < g.minQuestions {
		return nil, apperr.Extraction(fmt.Sprintf("got %d questions, need at least %d", n, g.minQuestions), nil)
	}

	enforced := qs.Enforce(qt)
	if err := enforced.Validate(); err != nil {
		return nil, apperr.Extraction("invalid question set", err)
	}

	// Metadata is informational; a malformed block does not fail the set.
	var env envelope
	if err := p.DecodeEnvelope(&env); err != nil {
		env = envelope{}
	}
	concepts := env.Metadata.ConceptsExtracted
	if concepts == nil {
		concepts = []string{}
	}
	return &Result{Questions: enforced, Concepts: concepts}, nil
}
