package embedding

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/chrisperfer/memento-mcp/pkg/store"
	"github.com/chrisperfer/memento-mcp/pkg/types"
	"github.com/chrisperfer/memento-mcp/pkg/utils"
)

// BackfillConfig tunes the embedding backfill job.
type BackfillConfig struct {
	// Concurrency bounds the number of entities embedded in parallel.
	Concurrency int

	// RatePerSecond throttles provider calls. Zero disables throttling.
	RatePerSecond float64
}

// DefaultBackfillConfig returns backfill defaults.
func DefaultBackfillConfig() BackfillConfig {
	return BackfillConfig{
		Concurrency:   utils.DefaultConcurrencyLimit,
		RatePerSecond: 10,
	}
}

// BackfillReport summarizes a backfill run.
type BackfillReport struct {
	Scanned  int                  `json:"scanned"`
	Embedded int                  `json:"embedded"`
	Failed   int                  `json:"failed"`
	Outcomes []types.BatchOutcome `json:"outcomes"`
}

// Backfiller embeds current entities that have no embedding yet. One
// failing entity never aborts the run.
type Backfiller struct {
	store   store.GraphStore
	service Service
	config  BackfillConfig
	logger  *slog.Logger

	// AfterEmbed, when set, runs after each successful embedding write.
	// Errors from it mark the item as failed.
	AfterEmbed func(ctx context.Context, entity *types.Entity) error

	clock func() time.Time
}

// NewBackfiller creates a backfill job over the given store and service.
func NewBackfiller(s store.GraphStore, service Service, cfg BackfillConfig, logger *slog.Logger) *Backfiller {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = utils.DefaultConcurrencyLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backfiller{
		store:   s,
		service: service,
		config:  cfg,
		logger:  logger,
		clock:   time.Now,
	}
}

// Run scans the current graph and embeds every entity without an
// embedding. The report carries a per-entity outcome.
func (b *Backfiller) Run(ctx context.Context) (*BackfillReport, error) {
	graph, err := b.store.ReadGraph(ctx)
	if err != nil {
		return nil, err
	}

	var pending []*types.Entity
	for _, e := range graph.Entities {
		if !e.HasEmbedding() {
			pending = append(pending, e)
		}
	}

	report := &BackfillReport{Scanned: len(graph.Entities)}
	if len(pending) == 0 {
		return report, nil
	}

	var limiter *rate.Limiter
	if b.config.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.config.RatePerSecond), 1)
	}

	fns := make([]func() (types.BatchOutcome, error), len(pending))
	for i, entity := range pending {
		fns[i] = func() (types.BatchOutcome, error) {
			return b.embedOne(ctx, limiter, entity), nil
		}
	}

	outcomes, _ := utils.ExecuteWithResults(ctx, b.config.Concurrency, fns...)
	for _, outcome := range outcomes {
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.OK {
			report.Embedded++
		} else {
			report.Failed++
		}
	}

	b.logger.Info("Embedding backfill finished",
		"scanned", report.Scanned,
		"embedded", report.Embedded,
		"failed", report.Failed)
	return report, nil
}

func (b *Backfiller) embedOne(ctx context.Context, limiter *rate.Limiter, entity *types.Entity) types.BatchOutcome {
	outcome := types.BatchOutcome{Key: entity.Name}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			outcome.Error = err.Error()
			return outcome
		}
	}

	vector, err := b.service.GenerateEmbedding(ctx, BuildEntityText(entity))
	if err != nil {
		b.logger.Warn("Backfill embedding failed", "entity", entity.Name, "error", err)
		outcome.Error = err.Error()
		return outcome
	}

	emb := &types.EntityEmbedding{
		Vector:      vector,
		Model:       b.service.ModelInfo().Name,
		LastUpdated: b.clock(),
	}
	if err := b.store.SetEntityEmbedding(ctx, entity.Name, emb); err != nil {
		b.logger.Warn("Backfill embedding write failed", "entity", entity.Name, "error", err)
		outcome.Error = err.Error()
		return outcome
	}

	if b.AfterEmbed != nil {
		updated := entity.Clone()
		updated.Embedding = emb
		if err := b.AfterEmbed(ctx, updated); err != nil {
			outcome.Error = err.Error()
			return outcome
		}
	}

	outcome.OK = true
	return outcome
}
