package aiflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/internal/tracing"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// ExplanationCache stores explanations by topic and level
type ExplanationCache interface {
	GetExplanation(ctx context.Context, topic string, level models.ExamLevel) (*models.ExplainResponse, error)
	SetExplanation(ctx context.Context, topic string, level models.ExamLevel, resp *models.ExplainResponse, ttl time.Duration) error
}

// Invoker runs the per-tool flows against an oracle
type Invoker struct {
	oracle   Oracle
	cache    ExplanationCache
	cacheTTL time.Duration
	validate *validator.Validate
	logger   *logging.Logger
}

// NewInvoker creates an invoker. cache may be nil.
func NewInvoker(oracle Oracle, cache ExplanationCache, cacheTTL time.Duration, logger *logging.Logger) *Invoker {
	if logger == nil {
		logger = logging.Nop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Invoker{
		oracle:   oracle,
		cache:    cache,
		cacheTTL: cacheTTL,
		validate: validator.New(),
		logger:   logger,
	}
}

// Summarize condenses extracted PDF text into a summary with key points
func (i *Invoker) Summarize(ctx context.Context, req models.SummarizeRequest) (*models.SummarizeResponse, error) {
	out := &models.SummarizeResponse{}
	if err := i.run(ctx, models.ToolSummarize, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Solve produces a step-by-step solution to a question given as text or image
func (i *Invoker) Solve(ctx context.Context, req models.SolveRequest) (*models.SolveResponse, error) {
	out := &models.SolveResponse{}
	if err := i.run(ctx, models.ToolSolve, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Explain explains a topic at an exam level. The second result reports a cache hit.
func (i *Invoker) Explain(ctx context.Context, req models.ExplainRequest) (*models.ExplainResponse, bool, error) {
	if i.cache != nil {
		cached, err := i.cache.GetExplanation(ctx, req.Topic, req.Level)
		if err != nil {
			i.logger.WithError(err).WithTool(models.ToolExplain).Warn("Explanation cache read failed")
		} else if cached != nil {
			return cached, true, nil
		}
	}

	out := &models.ExplainResponse{}
	if err := i.run(ctx, models.ToolExplain, req, out); err != nil {
		return nil, false, err
	}

	if i.cache != nil {
		if err := i.cache.SetExplanation(ctx, req.Topic, req.Level, out, i.cacheTTL); err != nil {
			i.logger.WithError(err).WithTool(models.ToolExplain).Warn("Explanation cache write failed")
		}
	}

	return out, false, nil
}

// Flashcards generates question/answer cards from a text or a topic
func (i *Invoker) Flashcards(ctx context.Context, req models.FlashcardsRequest) (*models.FlashcardsResponse, error) {
	out := &models.FlashcardsResponse{}
	if err := i.run(ctx, models.ToolFlashcards, req, out); err != nil {
		return nil, err
	}
	if len(out.Cards) > req.Count {
		out.Cards = out.Cards[:req.Count]
	}
	return out, nil
}

// GenerateTest generates a multiple-choice practice test
func (i *Invoker) GenerateTest(ctx context.Context, req models.TestRequest) (*models.TestResponse, error) {
	out := &models.TestResponse{}
	if err := i.run(ctx, models.ToolTest, req, out); err != nil {
		return nil, err
	}
	if len(out.Questions) > req.QuestionCount {
		out.Questions = out.Questions[:req.QuestionCount]
	}
	for qi := range out.Questions {
		out.Questions[qi].CorrectAnswer = strings.ToUpper(strings.TrimSpace(out.Questions[qi].CorrectAnswer))
	}
	return out, nil
}

// run renders the tool prompt, calls the oracle and decodes a validated reply into out
func (i *Invoker) run(ctx context.Context, tool string, req interface{}, out interface{}) (err error) {
	span, ctx := tracing.StartSpan(ctx, "aiflow."+tool)
	defer func() { tracing.FinishSpan(span, err) }()
	tracing.SetTag(span, "ai.model", i.oracle.Model())

	prompt, err := render(tool, req)
	if err != nil {
		return err
	}
	if s, ok := req.(models.SolveRequest); ok {
		prompt.ImageDataURI = s.ImageDataURI
	}

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		elapsed := time.Since(start)
		metrics.RecordAIRequest(tool, status, elapsed.Seconds())
		i.logger.LogAIFlow(tool, i.oracle.Model(), len(prompt.User), elapsed, err)
	}()

	text, err := i.oracle.Generate(ctx, prompt)
	if err != nil {
		return err
	}

	if err := decodeJSON(text, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFlow, tool, err)
	}

	if err := i.validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %s: malformed model output: %v", ErrFlow, tool, err)
	}

	return nil
}

// decodeJSON parses a model reply, tolerating markdown fences and surrounding prose
func decodeJSON(text string, out interface{}) error {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	err := json.Unmarshal([]byte(text), out)
	if err == nil {
		return nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("reply is not JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("reply is not JSON: %w", err)
	}
	return nil
}
