package pipeline

import (
	"github.com/jobsieve/jobsieve/internal/ai"
	"github.com/jobsieve/jobsieve/internal/job"
	"github.com/jobsieve/jobsieve/internal/skills"
)

// State is threaded through the stage sequence for one posting. It is owned
// exclusively by the task running that posting's pipeline; nothing aliases
// it across goroutines.
type State struct {
	Posting *job.Posting

	Fingerprint    uint64
	Duplicate      bool
	Skills         []string
	Match          *skills.Match
	HeuristicScore float64
	Relevance      *ai.Assessment

	// Persisted records the save stage's verdict of the one min-score
	// comparison; classification reads it instead of re-comparing.
	Persisted bool

	// Err is set by the failing stage and forces termination. A terminated
	// pipeline without Err is a duplicate or a gate rejection, not a failure.
	Err error
}

// NewState creates the entry state for a posting.
func NewState(posting *job.Posting) *State {
	return &State{Posting: posting}
}
