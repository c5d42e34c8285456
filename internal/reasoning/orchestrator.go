// Package reasoning drives a model through a bounded chain of reasoning
// steps and streams the growing similarity graph as events.
package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/aixgo-dev/reasongraph/internal/graph"
	"github.com/aixgo-dev/reasongraph/internal/llm/cost"
	"github.com/aixgo-dev/reasongraph/internal/llm/inference"
	"github.com/aixgo-dev/reasongraph/internal/llm/parser"
	"github.com/aixgo-dev/reasongraph/internal/observability"
	metrics "github.com/aixgo-dev/reasongraph/pkg/observability"
)

// Config bounds a reasoning session.
type Config struct {
	Model           string
	MaxSteps        int
	MinSteps        int
	MaxContentRunes int
	TopK            int
	StepMaxTokens   int
	FinalMaxTokens  int
	Temperature     float64
}

// DefaultConfig returns the standard session limits.
func DefaultConfig() Config {
	return Config{
		Model:           "llama3.1",
		MaxSteps:        20,
		MinSteps:        5,
		MaxContentRunes: 700,
		TopK:            2,
		StepMaxTokens:   300,
		FinalMaxTokens:  200,
		Temperature:     0.2,
	}
}

// Recorder persists step embeddings. store.Store satisfies it.
type Recorder interface {
	Insert(ctx context.Context, text string, embedding []float32, isQuestion bool) (int64, error)
}

// TitleSummarizer shortens step content into a node title.
type TitleSummarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// errStopped signals that the consumer stopped pulling events.
var errStopped = errors.New("stream stopped")

// Orchestrator runs reasoning sessions. It holds no per-session state and
// may run many sessions concurrently if its collaborators allow it.
type Orchestrator struct {
	chat       inference.ChatService
	embedder   inference.Embedder
	recorder   Recorder
	summarizer TitleSummarizer
	checker    ConsistencyChecker
	pricing    *cost.Calculator
	cfg        Config
	logger     *zap.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithConsistencyChecker replaces the default stub checker.
func WithConsistencyChecker(c ConsistencyChecker) Option {
	return func(o *Orchestrator) {
		o.checker = c
	}
}

// WithSummarizer sets the node title summarizer.
func WithSummarizer(s TitleSummarizer) Option {
	return func(o *Orchestrator) {
		o.summarizer = s
	}
}

// WithCostCalculator prices each session's token usage in the finish log.
func WithCostCalculator(c *cost.Calculator) Option {
	return func(o *Orchestrator) {
		o.pricing = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// New creates an Orchestrator. Zero fields in cfg take their DefaultConfig
// values. Titles are summarized through chat unless WithSummarizer is given.
func New(chat inference.ChatService, embedder inference.Embedder, recorder Recorder, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		chat:     chat,
		embedder: embedder,
		recorder: recorder,
		checker:  StubConsistencyChecker{},
		cfg:      withDefaults(cfg),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.summarizer == nil {
		o.summarizer = inference.NewSummarizer(chat, o.cfg.Model)
	}
	return o
}

func withDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = d.MaxSteps
	}
	if cfg.MinSteps <= 0 {
		cfg.MinSteps = d.MinSteps
	}
	if cfg.MaxContentRunes <= 0 {
		cfg.MaxContentRunes = d.MaxContentRunes
	}
	if cfg.TopK <= 0 {
		cfg.TopK = d.TopK
	}
	if cfg.StepMaxTokens <= 0 {
		cfg.StepMaxTokens = d.StepMaxTokens
	}
	if cfg.FinalMaxTokens <= 0 {
		cfg.FinalMaxTokens = d.FinalMaxTokens
	}
	return cfg
}

// Run returns the event stream for one session on prompt. Nothing happens
// until the stream is ranged over; every event is produced on demand and
// breaking out of the range stops the session before its next model call.
// A collaborator failure is yielded as the final element.
func (o *Orchestrator) Run(ctx context.Context, prompt string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		s := newSession(prompt)
		logger := o.logger.With(zap.String("session_id", s.id))

		ctx, span := observability.StartSpan(ctx, "reasoning.session",
			attribute.String("session.id", s.id),
			attribute.Int("session.max_steps", o.cfg.MaxSteps),
		)
		finished := metrics.SessionStarted()
		start := time.Now()
		logger.Info("session started")

		err := o.run(ctx, s, logger, func(e Event) bool { return yield(e, nil) })

		outcome := "done"
		switch {
		case errors.Is(err, errStopped):
			outcome = "cancelled"
			err = nil
		case err != nil:
			outcome = "error"
		}

		span.SetAttributes(
			attribute.Int("session.tokens", s.usage.TotalTokens()),
			attribute.Int("session.steps", s.stepCount),
			attribute.Int("session.attempts", s.attempts),
			attribute.String("session.outcome", outcome),
		)
		observability.EndSpan(span, err)
		finished()
		metrics.RecordSession(outcome, time.Since(start))
		fields := []zap.Field{
			zap.String("outcome", outcome),
			zap.Int("attempts", s.attempts),
			zap.Duration("thinking", s.thinking),
			zap.Int("prompt_tokens", s.usage.PromptTokens),
			zap.Int("completion_tokens", s.usage.CompletionTokens),
		}
		if o.pricing != nil {
			if usd, err := o.pricing.Cost(o.cfg.Model, s.usage); err == nil {
				fields = append(fields, zap.Float64("cost_usd", usd))
			}
		}
		logger.Info("session finished", fields...)

		if err != nil {
			yield(nil, err)
		}
	}
}

func (o *Orchestrator) run(ctx context.Context, s *session, logger *zap.Logger, emit func(Event) bool) error {
	for s.attempts < o.cfg.MaxSteps {
		s.attempts++

		raw, err := o.complete(ctx, s, o.cfg.StepMaxTokens)
		if err != nil {
			return fmt.Errorf("request step %d: %w", s.stepCount, err)
		}
		step := parser.Extract(raw)
		if step.Title == parser.ParsingErrorTitle {
			metrics.RecordStep("parse_error")
			logger.Debug("unparseable step output", zap.Int("step", s.stepCount))
		}

		if n := utf8.RuneCountInString(step.Content); n > o.cfg.MaxContentRunes {
			metrics.RecordStep("too_long")
			logger.Debug("step too long, asking again", zap.Int("step", s.stepCount), zap.Int("runes", n))
			s.appendMessage(inference.RoleUser, tooLongMessage)
			continue
		}

		ev, err := o.recordStep(ctx, s, step)
		if err != nil {
			return err
		}
		metrics.RecordStep("accepted")
		logger.Debug("step recorded",
			zap.Int("step", ev.Step),
			zap.String("node_id", s.nodeIDs[len(s.nodeIDs)-1]),
			zap.String("next_action", step.NextAction),
		)
		if !emit(ev) {
			return errStopped
		}

		stepJSON, err := json.Marshal(step)
		if err != nil {
			return fmt.Errorf("encode step: %w", err)
		}
		s.appendMessage(inference.RoleAssistant, string(stepJSON))

		if step.IsFinal() && s.validSteps() < o.cfg.MinSteps {
			s.appendMessage(inference.RoleUser, fmt.Sprintf(minStepsMessage, s.validSteps(), o.cfg.MinSteps))
			continue
		}

		if step.IsFinal() || strings.Contains(strings.ToLower(step.Content), "boxed") {
			if !s.hasFinal {
				s.finalAnswer = step.Content
				s.hasFinal = true
			}

			consistent, err := o.evaluate(ctx, s)
			if err != nil {
				return err
			}
			if consistent {
				break
			}

			logger.Info("inconsistent evaluation, restarting", zap.Int("step", s.stepCount))
			metrics.RecordRestart()
			if !emit(InconsistencyEvent{Message: inconsistencyMessage}) {
				return errStopped
			}
			s.restart()
			continue
		}

		s.stepCount++
	}

	if !s.hasFinal {
		s.appendMessage(inference.RoleUser, forcedFinalMessage)
		raw, err := o.complete(ctx, s, o.cfg.FinalMaxTokens)
		if err != nil {
			return fmt.Errorf("request final answer: %w", err)
		}
		s.finalAnswer = parser.ExtractContent(raw, raw)
		s.hasFinal = true
	}

	final, err := o.recordFinal(ctx, s)
	if err != nil {
		return err
	}
	if !emit(final) {
		return errStopped
	}
	if !emit(DoneEvent{TotalTime: s.thinking.Seconds()}) {
		return errStopped
	}
	return nil
}

// evaluate asks the model to review its answer and checks the review
// against the pending final answer.
func (o *Orchestrator) evaluate(ctx context.Context, s *session) (bool, error) {
	s.appendMessage(inference.RoleUser, fmt.Sprintf(evaluationMessage, s.prompt))
	raw, err := o.complete(ctx, s, o.cfg.StepMaxTokens)
	if err != nil {
		return false, fmt.Errorf("request evaluation: %w", err)
	}
	evaluation := parser.ExtractContent(raw, noEvaluationContent)

	start := time.Now()
	consistent, err := o.checker.Check(ctx, s.finalAnswer, evaluation)
	s.thinking += time.Since(start)
	if err != nil {
		return false, err
	}
	return consistent, nil
}

func (o *Orchestrator) recordStep(ctx context.Context, s *session, step parser.Step) (StepEvent, error) {
	vec, err := o.embedAndStore(ctx, step.Content)
	if err != nil {
		return StepEvent{}, fmt.Errorf("step %d: %w", s.stepCount, err)
	}

	title := step.Title
	if title == "" || utf8.RuneCountInString(title) > inference.MaxTitleRunes {
		if title, err = o.summarizer.Summarize(ctx, step.Content); err != nil {
			return StepEvent{}, fmt.Errorf("step %d: %w", s.stepCount, err)
		}
	}

	id := s.allocateID()
	if err := s.graph.InsertNode(id, fmt.Sprintf("Step %d: %s", s.stepCount, title)); err != nil {
		return StepEvent{}, err
	}
	s.addEmbedding(id, vec)

	snap, path, err := o.link(s, id)
	if err != nil {
		return StepEvent{}, err
	}

	return StepEvent{
		Step:     s.stepCount,
		Title:    step.Title,
		Content:  step.Content,
		Graph:    snap,
		PathData: path,
	}, nil
}

func (o *Orchestrator) recordFinal(ctx context.Context, s *session) (FinalEvent, error) {
	vec, err := o.embedAndStore(ctx, s.finalAnswer)
	if err != nil {
		return FinalEvent{}, fmt.Errorf("final answer: %w", err)
	}
	summary, err := o.summarizer.Summarize(ctx, s.finalAnswer)
	if err != nil {
		return FinalEvent{}, fmt.Errorf("final answer: %w", err)
	}

	id := s.allocateID()
	if err := s.graph.InsertNode(id, finalLabelPrefix+summary); err != nil {
		return FinalEvent{}, err
	}
	s.addEmbedding(id, vec)

	snap, path, err := o.link(s, id)
	if err != nil {
		return FinalEvent{}, err
	}

	return FinalEvent{
		Content:  s.finalAnswer,
		Graph:    snap,
		PathData: path,
	}, nil
}

// link connects the newest node to its most similar predecessors and
// computes the strongest path to it from the first node of the session.
func (o *Orchestrator) link(s *session, id string) (graph.Snapshot, *graph.PathResult, error) {
	candidates, err := candidatesFor(s.embeddings, s.nodeIDs, len(s.embeddings)-1)
	if err != nil {
		return graph.Snapshot{}, nil, err
	}
	if err := s.graph.UpdateEdgesForNode(id, candidates, o.cfg.TopK); err != nil {
		return graph.Snapshot{}, nil, err
	}
	if err := s.graph.RecomputeNodeSize(id); err != nil {
		return graph.Snapshot{}, nil, err
	}

	snap := s.graph.Snapshot()
	path := graph.FindStrongestPath(snap, s.graph.FirstNodeID(), id)
	if path != nil {
		metrics.RecordPathSimilarity(path.AvgSimilarity)
	}
	return snap, path, nil
}

// complete performs one model round-trip on the conversation so far and
// adds its latency to the session's thinking time.
func (o *Orchestrator) complete(ctx context.Context, s *session, maxTokens int) (string, error) {
	ctx, span := observability.StartSpan(ctx, "model.chat",
		attribute.String("model", o.cfg.Model),
		attribute.Int("max_tokens", maxTokens),
		attribute.Int("messages", len(s.messages)),
	)

	start := time.Now()
	resp, err := o.chat.Chat(ctx, inference.ChatRequest{
		Model:       o.cfg.Model,
		Messages:    slices.Clone(s.messages),
		MaxTokens:   maxTokens,
		Temperature: o.cfg.Temperature,
	})
	elapsed := time.Since(start)
	s.thinking += elapsed
	metrics.RecordModelCall("chat", err, elapsed)
	observability.EndSpan(span, err)

	if err != nil {
		return "", err
	}
	s.usage.Add(resp.Usage)
	metrics.RecordTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp.Text, nil
}

func (o *Orchestrator) embedAndStore(ctx context.Context, text string) ([]float32, error) {
	ctx, span := observability.StartSpan(ctx, "model.embed", attribute.Int("text.length", len(text)))
	start := time.Now()
	vec, err := o.embedder.Embed(ctx, text)
	metrics.RecordModelCall("embed", err, time.Since(start))
	observability.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	if _, err := o.recorder.Insert(ctx, text, vec, false); err != nil {
		return nil, fmt.Errorf("persist embedding: %w", err)
	}
	return vec, nil
}
