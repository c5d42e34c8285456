package reasoning

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/aixgo-dev/reasongraph/internal/index"
	"github.com/aixgo-dev/reasongraph/internal/llm/inference"
	metrics "github.com/aixgo-dev/reasongraph/pkg/observability"
)

// DefaultSimilarTopK is the number of similar records reported after a session.
const DefaultSimilarTopK = 5

// Store is the embedding persistence a QueryService needs.
type Store interface {
	Recorder
	index.Source
	DeleteAll(ctx context.Context) error
}

// QueryConfig configures a QueryService.
type QueryConfig struct {
	SimilarTopK int
	// ResetPerQuery clears the store before each question.
	ResetPerQuery bool
}

// QueryService answers a question with a reasoning session followed by the
// stored texts most similar to it.
type QueryService struct {
	orch     *Orchestrator
	embedder inference.Embedder
	store    Store
	index    *index.Index
	cfg      QueryConfig
	logger   *zap.Logger
}

// NewQueryService creates a QueryService.
func NewQueryService(orch *Orchestrator, embedder inference.Embedder, store Store, idx *index.Index, cfg QueryConfig, logger *zap.Logger) *QueryService {
	if cfg.SimilarTopK <= 0 {
		cfg.SimilarTopK = DefaultSimilarTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		orch:     orch,
		embedder: embedder,
		store:    store,
		index:    idx,
		cfg:      cfg,
		logger:   logger,
	}
}

// Query streams the session for question and then a SimilarEvent. The
// question is persisted before the session starts and the index is rebuilt
// after it ends, so the question itself is among the candidates.
func (q *QueryService) Query(ctx context.Context, question string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		if q.cfg.ResetPerQuery {
			if err := q.store.DeleteAll(ctx); err != nil {
				yield(nil, fmt.Errorf("reset store: %w", err))
				return
			}
		}

		vec, err := q.embedder.Embed(ctx, question)
		if err != nil {
			yield(nil, fmt.Errorf("embed question: %w", err))
			return
		}
		if _, err := q.store.Insert(ctx, question, vec, true); err != nil {
			yield(nil, fmt.Errorf("persist question: %w", err))
			return
		}

		for ev, err := range q.orch.Run(ctx, question) {
			if !yield(ev, err) || err != nil {
				return
			}
		}

		items, err := q.rebuildAndSearch(ctx, vec)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(SimilarEvent{Items: items}, nil)
	}
}

// Similar embeds text and returns its nearest stored records, rebuilding the
// index first when rebuild is set or the index has never been built.
func (q *QueryService) Similar(ctx context.Context, text string, k int, rebuild bool) ([]index.Result, error) {
	vec, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if rebuild {
		if err := q.rebuild(ctx); err != nil {
			return nil, err
		}
	}

	results, err := q.index.Nearest(vec, k)
	if errors.Is(err, index.ErrNotBuilt) {
		if err := q.rebuild(ctx); err != nil {
			return nil, err
		}
		results, err = q.index.Nearest(vec, k)
	}
	return results, err
}

func (q *QueryService) rebuildAndSearch(ctx context.Context, vec []float32) ([]index.Result, error) {
	if err := q.rebuild(ctx); err != nil {
		return nil, err
	}
	items, err := q.index.Nearest(vec, q.cfg.SimilarTopK)
	if errors.Is(err, index.ErrDimensionMismatch) {
		q.logger.Warn("question embedding does not match index dimensions",
			zap.Int("expected", q.index.Dimensions()),
			zap.Int("got", len(vec)))
		return []index.Result{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("similar search: %w", err)
	}
	return items, nil
}

func (q *QueryService) rebuild(ctx context.Context) error {
	indexed, skipped, err := q.index.Build(ctx, q.store)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	metrics.SetIndexSize(indexed)
	q.logger.Debug("index rebuilt", zap.Int("indexed", indexed), zap.Int("skipped", skipped))
	return nil
}
