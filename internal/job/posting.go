package job

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Posting is a single scraped job record. Every field is optional: scrapers
// leave out what they cannot find, and serialized dumps frequently carry
// "nan" or "none" placeholders instead of empty strings.
type Posting struct {
	Title        string `json:"title,omitempty"`
	Company      string `json:"company,omitempty"`
	Location     string `json:"location,omitempty"`
	Description  string `json:"description,omitempty"`
	Site         string `json:"site,omitempty"`
	URL          string `json:"job_url,omitempty"`
	DirectURL    string `json:"job_url_direct,omitempty"`
	DatePosted   string `json:"date_posted,omitempty"`
	JobType      string `json:"job_type,omitempty"`
	SalarySource string `json:"salary_source,omitempty"`
	Interval     string `json:"interval,omitempty"`
	MinAmount    float64 `json:"min_amount,omitempty"`
	MaxAmount    float64 `json:"max_amount,omitempty"`
	Currency     string `json:"currency,omitempty"`
	IsRemote     bool   `json:"is_remote,omitempty"`
	JobLevel     string `json:"job_level,omitempty"`
	JobFunction  string `json:"job_function,omitempty"`

	CompanyIndustry    string `json:"company_industry,omitempty"`
	CompanyURL         string `json:"company_url,omitempty"`
	CompanyLogo        string `json:"company_logo,omitempty"`
	CompanyDescription string `json:"company_description,omitempty"`
	CompanyNumEmployees string `json:"company_num_employees,omitempty"`
	CompanyRevenue     string `json:"company_revenue,omitempty"`
}

// Clean trims the value and collapses scraper placeholders ("nan", "none",
// "nat", "null") to the empty string.
func Clean(value string) string {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "nan", "none", "nat", "null":
		return ""
	}
	return trimmed
}

// CleanOr is Clean with a fallback for display purposes.
func CleanOr(value, fallback string) string {
	if cleaned := Clean(value); cleaned != "" {
		return cleaned
	}
	return fallback
}

// DisplayTitle returns the title suitable for logging.
func (p *Posting) DisplayTitle() string {
	return CleanOr(p.Title, "Unknown")
}

// DisplayCompany returns the company suitable for logging.
func (p *Posting) DisplayCompany() string {
	return CleanOr(p.Company, "Unknown")
}

// LoadFromFile reads a JSON array of postings from the given path. Scraper
// dumps come out of dataframes, so numeric and boolean fields are often
// serialized as strings; decoding goes through an intermediate map with weak
// typing instead of straight into the struct.
func LoadFromFile(path string) ([]*Posting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading postings file: %w", err)
	}

	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing postings file %q: %w", path, err)
	}

	var postings []*Posting
	cfg := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           &postings,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("building postings decoder: %w", err)
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decoding postings file %q: %w", path, err)
	}

	return postings, nil
}
