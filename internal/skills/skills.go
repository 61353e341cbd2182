// Package skills holds the candidate skill list and the cheap skill-fit
// arithmetic used to gate expensive model calls.
package skills

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strings"
)

// Match partitions a posting's skills against the candidate's. The three
// lists are intended to be disjoint, but the partitioning is produced by a
// model call, so nothing here relies on that.
type Match struct {
	Matched []string `json:"matched"`
	Partial []string `json:"partial"`
	Missing []string `json:"missing"`
}

// Empty returns a match with no skills in any list.
func Empty() *Match {
	return &Match{Matched: []string{}, Partial: []string{}, Missing: []string{}}
}

// Total returns the number of skills across all three lists.
func (m *Match) Total() int {
	if m == nil {
		return 0
	}
	return len(m.Matched) + len(m.Partial) + len(m.Missing)
}

// HeuristicScore maps a match to [0, 1]: full credit for matched skills,
// half for partial ones, rounded to three decimals. An empty match scores 0.
func HeuristicScore(m *Match) float64 {
	total := m.Total()
	if total == 0 {
		return 0.0
	}

	score := (float64(len(m.Matched)) + 0.5*float64(len(m.Partial))) / float64(total)
	return math.Round(score*1000) / 1000
}

// LoadList reads a newline-delimited skill list. Blank lines and lines
// starting with '#' are skipped.
func LoadList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening skills file: %w", err)
	}
	defer file.Close()

	var list []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		list = append(list, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading skills file: %w", err)
	}

	return list, nil
}
