// Package pipeline evaluates job postings through a fixed stage sequence:
// duplicate detection, skill extraction, skill matching, a heuristic gate,
// model relevance scoring and persistence. The sequence has exactly two
// early exits (a detected duplicate and a gate rejection); everything else
// runs to the end or stops with an error.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobsieve/jobsieve/internal/ai"
	"github.com/jobsieve/jobsieve/internal/dedup"
	"github.com/jobsieve/jobsieve/internal/fingerprint"
	"github.com/jobsieve/jobsieve/internal/skills"
	"github.com/jobsieve/jobsieve/internal/store"
)

const (
	// DefaultHeuristicThreshold gates the expensive relevance call.
	DefaultHeuristicThreshold = 0.35

	// DefaultChunkSize is the per-chunk concurrency of the batch executor.
	DefaultChunkSize = 50
)

// Sink receives the terminal upsert for accepted postings.
type Sink interface {
	UpsertJob(ctx context.Context, rec store.Record) error
}

// Deps aggregates the collaborators shared by all stages.
type Deps struct {
	Logger    *zap.Logger
	Detector  *dedup.Detector
	Extractor ai.Extractor
	Matcher   ai.Matcher
	Scorer    ai.Scorer
	Sink      Sink
}

// Options are the caller-supplied knobs of one batch or single call.
type Options struct {
	// MinScore is the minimum relevance score for a posting to be
	// persisted and classified "accepted".
	MinScore int
	// ChunkSize is how many postings run concurrently per chunk.
	ChunkSize int
	// HeuristicThreshold is the gate below which the relevance call is
	// skipped. The gate passes at equality.
	HeuristicThreshold float64
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.HeuristicThreshold <= 0 {
		o.HeuristicThreshold = DefaultHeuristicThreshold
	}
	return o
}

// outcome is the tagged result of one stage.
type outcome int

const (
	// next proceeds to the following stage.
	next outcome = iota
	// done terminates the sequence without an error.
	done
)

type stage struct {
	name string
	run  func(ctx context.Context, st *State, opts Options) (outcome, error)
}

// Pipeline runs the stage sequence for individual postings.
type Pipeline struct {
	deps   Deps
	logger *zap.Logger
	stages []stage
}

// New wires a pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{deps: deps, logger: logger}
	p.stages = []stage{
		{name: "dedup", run: p.runDedup},
		{name: "extract", run: p.runExtract},
		{name: "match", run: p.runMatch},
		{name: "gate", run: p.runGate},
		{name: "score", run: p.runScore},
		{name: "save", run: p.runSave},
	}
	return p
}

// Run drives one posting through the stage sequence and classifies the
// terminal state. Stage errors stop the sequence and yield an error result;
// they never propagate to the caller.
func (p *Pipeline) Run(ctx context.Context, st *State, opts Options) Result {
	opts = opts.withDefaults()

	for _, s := range p.stages {
		out, err := s.run(ctx, st, opts)
		if err != nil {
			st.Err = err
			p.logger.Warn("pipeline stage failed",
				zap.String("stage", s.name),
				zap.String("title", st.Posting.DisplayTitle()),
				zap.String("company", st.Posting.DisplayCompany()),
				zap.Error(err),
			)
			break
		}
		if out == done {
			break
		}
	}

	return classify(st, opts)
}

func (p *Pipeline) runDedup(ctx context.Context, st *State, _ Options) (outcome, error) {
	st.Fingerprint = fingerprint.ForPosting(st.Posting)

	dup, err := p.deps.Detector.IsDuplicate(ctx, st.Fingerprint)
	if err != nil {
		return done, fmt.Errorf("deduplication: %w", err)
	}
	if dup {
		p.logger.Debug("duplicate posting",
			zap.String("title", st.Posting.DisplayTitle()),
			zap.String("company", st.Posting.DisplayCompany()),
		)
		st.Duplicate = true
		return done, nil
	}

	return next, nil
}

func (p *Pipeline) runExtract(ctx context.Context, st *State, _ Options) (outcome, error) {
	extracted, err := p.deps.Extractor.Extract(ctx, st.Posting.Description)
	if err != nil {
		return done, err
	}
	st.Skills = extracted
	return next, nil
}

func (p *Pipeline) runMatch(ctx context.Context, st *State, _ Options) (outcome, error) {
	match, err := p.deps.Matcher.Match(ctx, st.Skills)
	if err != nil {
		return done, err
	}
	st.Match = match
	st.HeuristicScore = skills.HeuristicScore(match)
	return next, nil
}

func (p *Pipeline) runGate(_ context.Context, st *State, opts Options) (outcome, error) {
	if st.HeuristicScore < opts.HeuristicThreshold {
		return done, nil
	}
	return next, nil
}

func (p *Pipeline) runScore(ctx context.Context, st *State, _ Options) (outcome, error) {
	assessment, err := p.deps.Scorer.Score(ctx, st.Posting)
	if err != nil {
		return done, err
	}
	st.Relevance = assessment
	return next, nil
}

// runSave performs the single authoritative min-score check and persists
// postings at or above it. It only runs when scoring produced an
// assessment, so degraded records are never written silently.
func (p *Pipeline) runSave(ctx context.Context, st *State, opts Options) (outcome, error) {
	if st.Relevance.Score < opts.MinScore {
		p.logger.Debug("relevance score below minimum, not persisting",
			zap.Int("score", st.Relevance.Score),
			zap.Int("minimum", opts.MinScore),
		)
		return done, nil
	}

	rec := store.Record{
		Posting:         st.Posting,
		Fingerprint:     st.Fingerprint,
		ExtractedSkills: st.Skills,
		Match:           st.Match,
		HeuristicScore:  st.HeuristicScore,
		RelevanceScore:  st.Relevance.Score,
		Reasoning:       st.Relevance.Reasoning,
	}
	if err := p.deps.Sink.UpsertJob(ctx, rec); err != nil {
		return done, fmt.Errorf("persisting posting: %w", err)
	}
	st.Persisted = true

	return done, nil
}
