package fingerprint

import (
	"testing"

	"github.com/jobsieve/jobsieve/internal/job"
)

func TestHashDeterministic(t *testing.T) {
	first := Hash("Acme", "Engineer", "Build things")
	second := Hash("Acme", "Engineer", "Build things")

	if first != second {
		t.Fatalf("expected identical fingerprints, got %d and %d", first, second)
	}
	if first == 0 {
		t.Fatalf("expected non-zero fingerprint for non-empty text")
	}
}

func TestHashNormalizes(t *testing.T) {
	base := Hash("Acme", "Engineer", "Build things")
	cased := Hash("  ACME ", "engineer", " BUILD THINGS  ")

	if base != cased {
		t.Fatalf("expected case and whitespace to be normalized away")
	}
}

func TestHashCoercesPlaceholders(t *testing.T) {
	absent := Hash("nan", "none", "")
	empty := Hash("", "", "")

	if absent != empty {
		t.Fatalf("expected scraper placeholders to hash like absent fields")
	}
	if empty != 0 {
		t.Fatalf("expected zero fingerprint for fully absent triple, got %d", empty)
	}
}

func TestSimilarTextsAreClose(t *testing.T) {
	desc := "We are looking for a backend engineer with Go and Kubernetes experience. " +
		"You will build distributed systems, own services end to end and work with a small team."
	variant := desc + " Apply now."

	a := Hash("Acme", "Backend Engineer", desc)
	b := Hash("Acme", "Backend Engineer", variant)
	unrelated := Hash("Globex", "Accountant", "Prepare quarterly financial statements and tax filings for clients.")

	near := Distance(a, b)
	far := Distance(a, unrelated)

	if near >= far {
		t.Fatalf("expected near-duplicate distance (%d) below unrelated distance (%d)", near, far)
	}
	if far == 0 {
		t.Fatalf("expected unrelated postings to differ")
	}
}

func TestForPosting(t *testing.T) {
	p := &job.Posting{Company: "Acme", Title: "Engineer", Description: "Build things"}

	if ForPosting(p) != Hash("Acme", "Engineer", "Build things") {
		t.Fatalf("expected ForPosting to match Hash over the same fields")
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(0b1011, 0b0010); d != 2 {
		t.Fatalf("expected distance 2, got %d", d)
	}
	if d := Distance(42, 42); d != 0 {
		t.Fatalf("expected zero distance for equal fingerprints, got %d", d)
	}
}
