// Package dedup flags postings that were already seen, either in the store
// during the recent scraping window or earlier in the same batch call.
package dedup

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/jobsieve/jobsieve/internal/fingerprint"
)

const (
	// HammingThreshold is the maximum bit distance at which two
	// fingerprints are considered the same posting. Raising it suppresses
	// more duplicates at the cost of dropping distinct postings.
	HammingThreshold = 6

	// Window bounds how far back stored fingerprints are compared.
	Window = 60 * 24 * time.Hour
)

// FingerprintSource supplies fingerprints of postings stored since a cutoff.
type FingerprintSource interface {
	RecentFingerprints(ctx context.Context, since time.Time) ([]uint64, error)
}

// Detector performs the cross-run duplicate check against a store.
type Detector struct {
	source    FingerprintSource
	threshold int
	window    time.Duration
	now       func() time.Time
}

// NewDetector creates a detector with the default threshold and window.
func NewDetector(source FingerprintSource) *Detector {
	return &Detector{
		source:    source,
		threshold: HammingThreshold,
		window:    Window,
		now:       time.Now,
	}
}

// IsDuplicate reports whether any stored fingerprint from the recent window
// lies within the Hamming threshold of fp.
func (d *Detector) IsDuplicate(ctx context.Context, fp uint64) (bool, error) {
	since := d.now().Add(-d.window)

	stored, err := d.source.RecentFingerprints(ctx, since)
	if err != nil {
		return false, fmt.Errorf("querying recent fingerprints: %w", err)
	}

	for _, candidate := range stored {
		if fingerprint.Distance(fp, candidate) <= d.threshold {
			return true, nil
		}
	}

	return false, nil
}

// BatchSet tracks fingerprints claimed during a single batch call. Unlike the
// cross-run check it matches exactly, not by distance.
type BatchSet struct {
	claimed mapset.Set[uint64]
}

// NewBatchSet returns an empty set.
func NewBatchSet() *BatchSet {
	return &BatchSet{claimed: mapset.NewSet[uint64]()}
}

// Claim marks fp as seen. It returns false when the fingerprint was already
// claimed earlier in the batch.
func (s *BatchSet) Claim(fp uint64) bool {
	return s.claimed.Add(fp)
}

// Len returns the number of claimed fingerprints.
func (s *BatchSet) Len() int {
	return s.claimed.Cardinality()
}
