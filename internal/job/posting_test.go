package job

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "plain value", input: "Acme", expect: "Acme"},
		{name: "trims whitespace", input: "  Acme  ", expect: "Acme"},
		{name: "nan placeholder", input: "nan", expect: ""},
		{name: "mixed case placeholder", input: "NaN", expect: ""},
		{name: "none placeholder", input: "None", expect: ""},
		{name: "nat placeholder", input: "NaT", expect: ""},
		{name: "null placeholder", input: "null", expect: ""},
		{name: "empty", input: "", expect: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.expect {
				t.Fatalf("Clean(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

func TestDisplayFallbacks(t *testing.T) {
	p := &Posting{Title: "nan", Company: ""}

	if got := p.DisplayTitle(); got != "Unknown" {
		t.Fatalf("expected Unknown title, got %q", got)
	}
	if got := p.DisplayCompany(); got != "Unknown" {
		t.Fatalf("expected Unknown company, got %q", got)
	}

	p = &Posting{Title: " Backend Engineer ", Company: "Acme"}
	if got := p.DisplayTitle(); got != "Backend Engineer" {
		t.Fatalf("expected trimmed title, got %q", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Dataframe exports stringify numbers and booleans.
	payload := `[
		{
			"title": "Backend Engineer",
			"company": "Acme",
			"job_url": "https://example.com/jobs/1",
			"min_amount": "95000",
			"max_amount": 120000,
			"is_remote": "true"
		},
		{
			"title": "Data Engineer",
			"company": "Globex",
			"job_url": "https://example.com/jobs/2",
			"min_amount": null
		}
	]`

	path := filepath.Join(t.TempDir(), "postings.json")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	postings, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(postings))
	}

	first := postings[0]
	if first.Title != "Backend Engineer" || first.Company != "Acme" {
		t.Fatalf("unexpected first posting: %+v", first)
	}
	if first.MinAmount != 95000 || first.MaxAmount != 120000 {
		t.Fatalf("expected numeric amounts, got %v / %v", first.MinAmount, first.MaxAmount)
	}
	if !first.IsRemote {
		t.Fatal("expected is_remote to decode from a string")
	}

	if postings[1].MinAmount != 0 {
		t.Fatalf("expected null amount to decode as zero, got %v", postings[1].MinAmount)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected error for malformed file")
	}
}
