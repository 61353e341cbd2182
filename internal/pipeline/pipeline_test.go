package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jobsieve/jobsieve/internal/ai"
	"github.com/jobsieve/jobsieve/internal/dedup"
	"github.com/jobsieve/jobsieve/internal/fingerprint"
	"github.com/jobsieve/jobsieve/internal/job"
	"github.com/jobsieve/jobsieve/internal/skills"
	"github.com/jobsieve/jobsieve/internal/store"
)

type stubSource struct {
	fingerprints []uint64
	err          error
}

func (s *stubSource) RecentFingerprints(context.Context, time.Time) ([]uint64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.fingerprints, nil
}

type stubExtractor struct {
	mu     sync.Mutex
	skills []string
	err    error
	panics bool
	calls  int
}

func (s *stubExtractor) Extract(context.Context, string) ([]string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("extractor exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.skills, nil
}

func (s *stubExtractor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubMatcher struct {
	mu    sync.Mutex
	match *skills.Match
	err   error
	calls int
}

func (s *stubMatcher) Match(_ context.Context, jobSkills []string) (*skills.Match, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(jobSkills) == 0 {
		return skills.Empty(), nil
	}
	return s.match, nil
}

func (s *stubMatcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubScorer struct {
	mu         sync.Mutex
	assessment *ai.Assessment
	err        error
	delay      func(p *job.Posting) time.Duration
	score      func(p *job.Posting) int
	calls      int
}

func (s *stubScorer) Score(_ context.Context, p *job.Posting) (*ai.Assessment, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay != nil {
		time.Sleep(s.delay(p))
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.score != nil {
		return &ai.Assessment{Score: s.score(p), Reasoning: "stubbed"}, nil
	}
	if s.assessment != nil {
		return s.assessment, nil
	}
	return &ai.Assessment{Score: 7, Reasoning: "stubbed"}, nil
}

func (s *stubScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSink struct {
	mu      sync.Mutex
	err     error
	records []store.Record
}

func (s *stubSink) UpsertJob(_ context.Context, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *stubSink) recorded() []store.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Record(nil), s.records...)
}

type fixture struct {
	source    *stubSource
	extractor *stubExtractor
	matcher   *stubMatcher
	scorer    *stubScorer
	sink      *stubSink
}

func goodMatch() *skills.Match {
	return &skills.Match{
		Matched: []string{"Go", "SQL"},
		Partial: []string{"Kubernetes"},
		Missing: []string{"Rust"},
	}
}

func newFixture() *fixture {
	return &fixture{
		source:    &stubSource{},
		extractor: &stubExtractor{skills: []string{"Go", "SQL", "Kubernetes", "Rust"}},
		matcher:   &stubMatcher{match: goodMatch()},
		scorer:    &stubScorer{},
		sink:      &stubSink{},
	}
}

func (f *fixture) pipeline() *Pipeline {
	return New(Deps{
		Logger:    zap.NewNop(),
		Detector:  dedup.NewDetector(f.source),
		Extractor: f.extractor,
		Matcher:   f.matcher,
		Scorer:    f.scorer,
		Sink:      f.sink,
	})
}

func (f *fixture) executor() *Executor {
	return NewExecutor(f.pipeline(), zap.NewNop())
}

func posting(n int) *job.Posting {
	return &job.Posting{
		Title:       fmt.Sprintf("Backend Engineer %d", n),
		Company:     fmt.Sprintf("Company %d", n),
		Description: fmt.Sprintf("Posting number %d needs Go, SQL and Kubernetes experience for building services.", n),
		URL:         fmt.Sprintf("https://example.com/jobs/%d", n),
	}
}

func TestRunAcceptedPath(t *testing.T) {
	f := newFixture()
	p := posting(1)

	res := f.pipeline().Run(context.Background(), NewState(p), Options{MinScore: 5})

	if res.Status != StatusAccepted {
		t.Fatalf("expected accepted, got %s (%s)", res.Status, res.Reason)
	}
	if res.HeuristicScore != 0.625 {
		t.Fatalf("expected heuristic score 0.625, got %v", res.HeuristicScore)
	}
	if res.RelevanceScore != 7 {
		t.Fatalf("expected relevance score 7, got %d", res.RelevanceScore)
	}
	if res.SkillsExtracted != 4 || res.SkillsMatched != 2 {
		t.Fatalf("unexpected skill counts: %+v", res)
	}

	records := f.sink.recorded()
	if len(records) != 1 {
		t.Fatalf("expected one upsert, got %d", len(records))
	}
	if records[0].Fingerprint != fingerprint.ForPosting(p) {
		t.Fatalf("expected fingerprint attached to upsert")
	}
	if records[0].RelevanceScore != 7 || records[0].HeuristicScore != 0.625 {
		t.Fatalf("unexpected persisted scores: %+v", records[0])
	}
}

func TestRunDuplicateSkipsExtraction(t *testing.T) {
	f := newFixture()
	p := posting(1)

	// A stored fingerprint two bits away from the posting's.
	f.source.fingerprints = []uint64{fingerprint.ForPosting(p) ^ 0x3}

	res := f.pipeline().Run(context.Background(), NewState(p), Options{})

	if res.Status != StatusDuplicate {
		t.Fatalf("expected duplicate, got %s", res.Status)
	}
	if f.extractor.callCount() != 0 {
		t.Fatalf("expected extractor to never run for a duplicate")
	}
	if len(f.sink.recorded()) != 0 {
		t.Fatalf("expected no upsert for a duplicate")
	}
}

func TestRunGatePassesAtThreshold(t *testing.T) {
	f := newFixture()
	// 7 matched, 13 missing: heuristic score exactly 0.35.
	f.matcher.match = &skills.Match{
		Matched: []string{"a", "b", "c", "d", "e", "f", "g"},
		Partial: []string{},
		Missing: []string{"h", "i", "j", "k", "l", "m", "n", "o", "p", "q", "r", "s", "t"},
	}

	res := f.pipeline().Run(context.Background(), NewState(posting(1)), Options{HeuristicThreshold: 0.35})

	if res.Status == StatusRejected {
		t.Fatalf("expected score equal to threshold to pass the gate")
	}
	if f.scorer.callCount() != 1 {
		t.Fatalf("expected relevance scorer to run at the gate boundary")
	}
}

func TestRunGateRejectsBelowThreshold(t *testing.T) {
	f := newFixture()
	f.matcher.match = &skills.Match{
		Matched: []string{"a"},
		Partial: []string{},
		Missing: []string{"b", "c", "d", "e", "f", "g", "h", "i"},
	}

	res := f.pipeline().Run(context.Background(), NewState(posting(1)), Options{})

	if res.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s (%s)", res.Status, res.Reason)
	}
	if f.scorer.callCount() != 0 {
		t.Fatalf("expected relevance scorer to be skipped below threshold")
	}
	if len(f.sink.recorded()) != 0 {
		t.Fatalf("expected no upsert for a rejected posting")
	}
}

func TestRunMinScoreClassification(t *testing.T) {
	run := func(minScore int) (Result, *stubSink) {
		f := newFixture()
		f.scorer.assessment = &ai.Assessment{Score: 9, Reasoning: "strong fit"}
		res := f.pipeline().Run(context.Background(), NewState(posting(1)), Options{MinScore: minScore})
		return res, f.sink
	}

	accepted, sink := run(5)
	if accepted.Status != StatusAccepted {
		t.Fatalf("expected accepted at min score 5, got %s", accepted.Status)
	}
	if len(sink.recorded()) != 1 {
		t.Fatalf("expected upsert for accepted posting")
	}

	low, sink := run(10)
	if low.Status != StatusLowScore {
		t.Fatalf("expected low_score at min score 10, got %s", low.Status)
	}
	if len(sink.recorded()) != 0 {
		t.Fatalf("expected no upsert below the minimum score")
	}

	if accepted.RelevanceScore != low.RelevanceScore || accepted.HeuristicScore != low.HeuristicScore {
		t.Fatalf("expected identical scores regardless of classification")
	}
}

func TestRunEmptySkillsFlowThrough(t *testing.T) {
	f := newFixture()
	f.extractor.skills = []string{}

	res := f.pipeline().Run(context.Background(), NewState(posting(1)), Options{})

	if res.Status != StatusRejected {
		t.Fatalf("expected rejection via zero heuristic score, got %s", res.Status)
	}
	if res.HeuristicScore != 0.0 {
		t.Fatalf("expected heuristic score 0.0, got %v", res.HeuristicScore)
	}
	if f.matcher.callCount() != 1 {
		t.Fatalf("expected matching stage to still run with no skills")
	}
}

func TestRunStageErrors(t *testing.T) {
	t.Run("extraction transport error", func(t *testing.T) {
		f := newFixture()
		f.extractor.err = errors.New("connection refused")

		res := f.pipeline().Run(context.Background(), NewState(posting(1)), Options{})

		if res.Status != StatusError {
			t.Fatalf("expected error status, got %s", res.Status)
		}
		if f.matcher.callCount() != 0 {
			t.Fatalf("expected downstream stages to be skipped after an error")
		}
	})

	t.Run("scoring not configured", func(t *testing.T) {
		f := newFixture()
		f.scorer.err = fmt.Errorf("job_scoring: %w", ai.ErrStageNotConfigured)

		res := f.pipeline().Run(context.Background(), NewState(posting(1)), Options{})

		if res.Status != StatusError {
			t.Fatalf("expected error status, got %s", res.Status)
		}
		if len(f.sink.recorded()) != 0 {
			t.Fatalf("expected no upsert when scoring failed")
		}
	})

	t.Run("store unavailable", func(t *testing.T) {
		f := newFixture()
		f.source.err = errors.New("database is locked")

		res := f.pipeline().Run(context.Background(), NewState(posting(1)), Options{})

		if res.Status != StatusError {
			t.Fatalf("expected error status, got %s", res.Status)
		}
	})

	t.Run("sink failure", func(t *testing.T) {
		f := newFixture()
		f.sink.err = errors.New("disk full")

		res := f.pipeline().Run(context.Background(), NewState(posting(1)), Options{})

		if res.Status != StatusError {
			t.Fatalf("expected error status, got %s", res.Status)
		}
	})
}

func TestProcessSingleReturnsStageOutputs(t *testing.T) {
	f := newFixture()
	p := posting(1)

	single := f.executor().ProcessSingle(context.Background(), p, Options{MinScore: 5})

	if single.Status != StatusAccepted {
		t.Fatalf("expected accepted, got %s", single.Status)
	}
	if single.Fingerprint != fingerprint.ForPosting(p) {
		t.Fatalf("expected fingerprint in single result")
	}
	if len(single.Skills) != 4 {
		t.Fatalf("expected raw extracted skills, got %v", single.Skills)
	}
	if single.Match == nil || len(single.Match.Matched) != 2 {
		t.Fatalf("expected raw match result, got %+v", single.Match)
	}
	if single.Reasoning != "stubbed" {
		t.Fatalf("expected reasoning in single result, got %q", single.Reasoning)
	}
}
