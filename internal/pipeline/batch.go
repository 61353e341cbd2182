package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jobsieve/jobsieve/internal/dedup"
	"github.com/jobsieve/jobsieve/internal/fingerprint"
	"github.com/jobsieve/jobsieve/internal/job"
)

// Executor fans a batch of postings through the pipeline chunk by chunk.
// Chunks run strictly one after another; postings inside a chunk run
// concurrently, and one posting's failure never touches its siblings.
type Executor struct {
	pipeline *Pipeline
	logger   *zap.Logger
}

// NewExecutor creates a batch executor around a pipeline.
func NewExecutor(p *Pipeline, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{pipeline: p, logger: logger}
}

// ProcessBatch evaluates all postings and returns exactly one Result per
// posting, in input order. The in-batch duplicate set lives for this call
// only.
func (e *Executor) ProcessBatch(ctx context.Context, postings []*job.Posting, opts Options) []Result {
	opts = opts.withDefaults()
	batchStart := time.Now()

	e.logger.Info("processing batch",
		zap.Int("postings", len(postings)),
		zap.Int("chunk_size", opts.ChunkSize),
		zap.Float64("heuristic_threshold", opts.HeuristicThreshold),
		zap.Int("min_score", opts.MinScore),
	)

	seen := dedup.NewBatchSet()
	results := make([]Result, 0, len(postings))

	chunks := chunked(postings, opts.ChunkSize)
	for chunkIdx, chunk := range chunks {
		chunkStart := time.Now()
		chunkResults := make([]Result, len(chunk))

		// The in-batch check runs sequentially before dispatch so the
		// shared fingerprint set is never mutated concurrently.
		type dispatch struct {
			idx   int
			state *State
		}
		pending := make([]dispatch, 0, len(chunk))
		for i, posting := range chunk {
			fp := fingerprint.ForPosting(posting)
			if !seen.Claim(fp) {
				e.logger.Debug("duplicate in current batch",
					zap.String("title", posting.DisplayTitle()),
					zap.String("company", posting.DisplayCompany()),
				)
				chunkResults[i] = duplicateResult("duplicate in current batch")
				continue
			}
			pending = append(pending, dispatch{idx: i, state: NewState(posting)})
		}

		var g errgroup.Group
		for _, d := range pending {
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						e.logger.Error("pipeline task panicked",
							zap.String("title", d.state.Posting.DisplayTitle()),
							zap.Any("panic", r),
						)
						chunkResults[d.idx] = errorResult(fmt.Sprintf("pipeline panic: %v", r))
					}
				}()
				chunkResults[d.idx] = e.pipeline.Run(ctx, d.state, opts)
				// best-effort: never cancel sibling tasks
				return nil
			})
		}
		_ = g.Wait()

		results = append(results, chunkResults...)

		e.logger.Info("chunk complete",
			zap.Int("chunk", chunkIdx+1),
			zap.Int("chunks", len(chunks)),
			zap.Int("postings", len(chunk)),
			zap.Duration("elapsed", time.Since(chunkStart)),
		)
	}

	summary := Summarize(results)
	e.logger.Info("batch complete",
		zap.Duration("elapsed", time.Since(batchStart)),
		zap.Int("accepted", summary.Accepted),
		zap.Int("low_score", summary.LowScore),
		zap.Int("rejected", summary.Rejected),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("errors", summary.Errors),
	)

	return results
}

// ProcessSingle evaluates one posting and returns the extended result,
// including the raw extracted skills and match partition.
func (e *Executor) ProcessSingle(ctx context.Context, posting *job.Posting, opts Options) SingleResult {
	opts = opts.withDefaults()

	st := NewState(posting)
	res := e.pipeline.Run(ctx, st, opts)

	single := SingleResult{
		Result:      res,
		Fingerprint: st.Fingerprint,
		Skills:      st.Skills,
		Match:       st.Match,
	}
	if st.Relevance != nil {
		single.Reasoning = st.Relevance.Reasoning
	}
	return single
}

func chunked(postings []*job.Posting, size int) [][]*job.Posting {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]*job.Posting
	for start := 0; start < len(postings); start += size {
		end := start + size
		if end > len(postings) {
			end = len(postings)
		}
		chunks = append(chunks, postings[start:end])
	}
	return chunks
}
