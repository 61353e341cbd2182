package pipeline

import (
	"fmt"

	"github.com/jobsieve/jobsieve/internal/skills"
)

// Status is the terminal classification of one posting.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusLowScore  Status = "low_score"
	StatusRejected  Status = "rejected"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
)

// Result is the per-posting output of a batch call. Exactly one Result is
// produced for every input posting, in input order.
type Result struct {
	Status          Status  `json:"status"`
	Reason          string  `json:"reason"`
	HeuristicScore  float64 `json:"heuristic_score"`
	RelevanceScore  int     `json:"relevance_score"`
	SkillsExtracted int     `json:"skills_extracted"`
	SkillsMatched   int     `json:"skills_matched"`
}

// SingleResult extends Result with the raw stage outputs, returned by
// ProcessSingle for callers that want more than the classification.
type SingleResult struct {
	Result

	Fingerprint uint64        `json:"fingerprint"`
	Skills      []string      `json:"skills,omitempty"`
	Match       *skills.Match `json:"match,omitempty"`
	Reasoning   string        `json:"reasoning,omitempty"`
}

// Summary counts results per status.
type Summary struct {
	Accepted   int
	LowScore   int
	Rejected   int
	Duplicates int
	Errors     int
}

// Summarize tallies a result list.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusAccepted:
			s.Accepted++
		case StatusLowScore:
			s.LowScore++
		case StatusRejected:
			s.Rejected++
		case StatusDuplicate:
			s.Duplicates++
		case StatusError:
			s.Errors++
		}
	}
	return s
}

func duplicateResult(reason string) Result {
	return Result{Status: StatusDuplicate, Reason: reason}
}

func errorResult(reason string) Result {
	return Result{Status: StatusError, Reason: reason}
}

// classify derives the terminal status from a finished state. Precedence
// mirrors the stage order: a duplicate never ran later stages, an error
// invalidates any partial scores, then the two gates in sequence.
func classify(st *State, opts Options) Result {
	res := Result{
		HeuristicScore:  st.HeuristicScore,
		SkillsExtracted: len(st.Skills),
		SkillsMatched:   0,
	}
	if st.Match != nil {
		res.SkillsMatched = len(st.Match.Matched)
	}
	if st.Relevance != nil {
		res.RelevanceScore = st.Relevance.Score
	}

	switch {
	case st.Duplicate:
		res.Status = StatusDuplicate
		res.Reason = "duplicate in database"
	case st.Err != nil:
		res.Status = StatusError
		res.Reason = st.Err.Error()
	case st.HeuristicScore < opts.HeuristicThreshold:
		res.Status = StatusRejected
		res.Reason = fmt.Sprintf("heuristic score too low: %.3f (threshold: %.2f)", st.HeuristicScore, opts.HeuristicThreshold)
	case st.Relevance != nil && !st.Persisted:
		res.Status = StatusLowScore
		res.Reason = fmt.Sprintf("relevance score below minimum: %d (minimum: %d)", res.RelevanceScore, opts.MinScore)
	default:
		res.Status = StatusAccepted
		res.Reason = fmt.Sprintf("relevance score: %d", res.RelevanceScore)
	}

	return res
}
