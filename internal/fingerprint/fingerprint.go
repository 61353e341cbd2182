// Package fingerprint computes locality-sensitive 64-bit hashes of posting
// text. Identical normalized text always produces the same value, and texts
// that differ by a few words produce values within a few bits of each other,
// so Hamming distance works as a similarity metric.
package fingerprint

import (
	"hash/fnv"
	"math/bits"
	"strings"

	"github.com/jobsieve/jobsieve/internal/job"
)

// Hash fingerprints the normalized (company, title, description) triple.
// Fields are lower-cased, trimmed and joined with single spaces before
// hashing. Absent fields contribute nothing.
func Hash(company, title, description string) uint64 {
	parts := []string{
		strings.ToLower(job.Clean(company)),
		strings.ToLower(job.Clean(title)),
		strings.ToLower(job.Clean(description)),
	}
	return HashText(strings.Join(parts, " "))
}

// ForPosting fingerprints a posting's identity-bearing fields.
func ForPosting(p *job.Posting) uint64 {
	return Hash(p.Company, p.Title, p.Description)
}

// HashText computes a simhash over the whitespace-separated words of text.
// Each word votes on every bit of the result via its FNV-64a hash; the sign
// of the tally decides the output bit. Shared vocabulary between two texts
// therefore pulls their fingerprints together.
func HashText(text string) uint64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var votes [64]int
	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				votes[i]++
			} else {
				votes[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if votes[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
