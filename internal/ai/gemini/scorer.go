package gemini

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/jobsieve/jobsieve/internal/ai"
	"github.com/jobsieve/jobsieve/internal/job"
	"github.com/jobsieve/jobsieve/internal/utils"
)

//go:embed job_scoring.md
var scoringPromptTemplate string

//go:embed job_scoring_system.md
var scoringSystemPrompt string

// unparsedReasoning is reported when the model response carried no score.
const unparsedReasoning = "Unable to parse response"

var (
	scoreRe     = regexp.MustCompile(`(?i)SCORE:\s*(\d+)`)
	reasoningRe = regexp.MustCompile(`(?is)REASONING:\s*(.+)`)
)

// Scorer rates resume fit for a posting using the job_scoring stage model.
// The resume is read lazily from its file and cached; a missing resume is an
// error on every call, since scoring without it is meaningless.
type Scorer struct {
	generator  ai.Generator
	resumePath string
	logger     *zap.Logger
	maxLogLen  int

	loadOnce  sync.Once
	resume    string
	resumeErr error
}

// NewScorer creates the scoring stage. A nil generator is allowed and makes
// every call fail with ai.ErrStageNotConfigured.
func NewScorer(generator ai.Generator, resumePath string, logger *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Scorer{
		generator:  generator,
		resumePath: resumePath,
		logger:     logger,
		maxLogLen:  maxLogLength,
	}
}

// Score issues a single free-text completion combining the resume and the
// posting, and parses "SCORE: n" and "REASONING: ..." out of the response.
// A response without a score pattern yields score 0 with a sentinel
// reasoning; a present score is clamped into [1, 10].
func (s *Scorer) Score(ctx context.Context, posting *job.Posting) (*ai.Assessment, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("job_scoring: %w", ai.ErrStageNotConfigured)
	}

	resume, err := s.loadResume()
	if err != nil {
		return nil, fmt.Errorf("job_scoring: %w", err)
	}

	replacer := strings.NewReplacer(
		"{{RESUME}}", resume,
		"{{TITLE}}", posting.DisplayTitle(),
		"{{COMPANY}}", posting.DisplayCompany(),
		"{{LOCATION}}", job.CleanOr(posting.Location, "Not specified"),
		"{{DESCRIPTION}}", job.CleanOr(posting.Description, "No description available"),
	)
	prompt := replacer.Replace(scoringPromptTemplate)

	s.logger.Debug("job scoring request",
		zap.String("title", posting.DisplayTitle()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	content, err := s.generator.GenerateText(ctx, scoringSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("job_scoring: %w", err)
	}

	assessment := parseAssessment(content)

	s.logger.Info("job scored",
		zap.Int("score", assessment.Score),
		zap.String("title", posting.DisplayTitle()),
		zap.String("company", posting.DisplayCompany()),
		zap.String("reasoning_preview", utils.TruncateForLog(assessment.Reasoning, s.maxLogLen)),
	)

	return assessment, nil
}

func (s *Scorer) loadResume() (string, error) {
	s.loadOnce.Do(func() {
		data, err := os.ReadFile(s.resumePath)
		if err != nil {
			s.resumeErr = fmt.Errorf("%w: reading %q: %v", ai.ErrResumeUnavailable, s.resumePath, err)
			return
		}
		s.resume = string(data)
	})
	return s.resume, s.resumeErr
}

func parseAssessment(content string) *ai.Assessment {
	assessment := &ai.Assessment{Score: 0, Reasoning: unparsedReasoning}

	if m := scoreRe.FindStringSubmatch(content); m != nil {
		score, err := strconv.Atoi(m[1])
		if err == nil {
			if score < 1 {
				score = 1
			}
			if score > 10 {
				score = 10
			}
			assessment.Score = score
		}
	}

	if m := reasoningRe.FindStringSubmatch(content); m != nil {
		assessment.Reasoning = strings.TrimSpace(m[1])
	}

	return assessment
}
