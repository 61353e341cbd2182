package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jobsieve/jobsieve/internal/job"
	"github.com/jobsieve/jobsieve/internal/skills"
)

// Record is the upsert payload for an evaluated posting. The posting URL is
// the external key; everything else is updated on conflict.
type Record struct {
	Posting         *job.Posting
	Fingerprint     uint64
	ExtractedSkills []string
	Match           *skills.Match
	HeuristicScore  float64
	RelevanceScore  int
	Reasoning       string
}

// Migrate creates the jobs table and its indexes.
func (s *Store) Migrate() error {
	tx, err := s.pool.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS jobs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_url TEXT UNIQUE NOT NULL,
  site TEXT,
  job_url_direct TEXT,
  title TEXT,
  company TEXT,
  location TEXT,
  date_posted TEXT,
  date_scraped DATETIME DEFAULT CURRENT_TIMESTAMP,
  job_type TEXT,
  salary_source TEXT,
  interval TEXT,
  min_amount REAL,
  max_amount REAL,
  currency TEXT,
  is_remote BOOLEAN,
  job_level TEXT,
  job_function TEXT,
  description TEXT,
  company_industry TEXT,
  company_url TEXT,
  company_logo TEXT,
  company_description TEXT,
  company_num_employees TEXT,
  company_revenue TEXT,

  fingerprint INTEGER,
  extracted_skills TEXT,
  matched_skills TEXT,
  partial_skills TEXT,
  missing_skills TEXT,
  heuristic_score REAL,
  relevance_score INTEGER,
  relevance_reasoning TEXT,

  archived BOOLEAN DEFAULT 0
);`); err != nil {
		return fmt.Errorf("create jobs table: %w", err)
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_jobs_fingerprint ON jobs(fingerprint) WHERE fingerprint IS NOT NULL;`); err != nil {
		return fmt.Errorf("create fingerprint index: %w", err)
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_jobs_date_scraped ON jobs(date_scraped);`); err != nil {
		return fmt.Errorf("create date index: %w", err)
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}

// UpsertJob inserts the record or, when the posting URL exists, refreshes
// every non-key column. Re-processing a posting therefore updates its row
// instead of duplicating it.
func (s *Store) UpsertJob(ctx context.Context, rec Record) error {
	if rec.Posting == nil {
		return fmt.Errorf("record without posting")
	}
	url := job.Clean(rec.Posting.URL)
	if url == "" {
		return fmt.Errorf("posting without url cannot be persisted")
	}

	match := rec.Match
	if match == nil {
		match = skills.Empty()
	}

	extracted, err := marshalList(rec.ExtractedSkills)
	if err != nil {
		return fmt.Errorf("marshal extracted skills: %w", err)
	}
	matched, err := marshalList(match.Matched)
	if err != nil {
		return fmt.Errorf("marshal matched skills: %w", err)
	}
	partial, err := marshalList(match.Partial)
	if err != nil {
		return fmt.Errorf("marshal partial skills: %w", err)
	}
	missing, err := marshalList(match.Missing)
	if err != nil {
		return fmt.Errorf("marshal missing skills: %w", err)
	}

	p := rec.Posting
	_, err = s.pool.ExecContext(ctx, `
INSERT INTO jobs (
  job_url, site, job_url_direct, title, company, location, date_posted,
  job_type, salary_source, interval, min_amount, max_amount, currency,
  is_remote, job_level, job_function, description,
  company_industry, company_url, company_logo, company_description,
  company_num_employees, company_revenue,
  fingerprint, extracted_skills, matched_skills, partial_skills, missing_skills,
  heuristic_score, relevance_score, relevance_reasoning
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(job_url) DO UPDATE SET
  site = excluded.site,
  job_url_direct = excluded.job_url_direct,
  title = excluded.title,
  company = excluded.company,
  location = excluded.location,
  date_posted = excluded.date_posted,
  job_type = excluded.job_type,
  salary_source = excluded.salary_source,
  interval = excluded.interval,
  min_amount = excluded.min_amount,
  max_amount = excluded.max_amount,
  currency = excluded.currency,
  is_remote = excluded.is_remote,
  job_level = excluded.job_level,
  job_function = excluded.job_function,
  description = excluded.description,
  company_industry = excluded.company_industry,
  company_url = excluded.company_url,
  company_logo = excluded.company_logo,
  company_description = excluded.company_description,
  company_num_employees = excluded.company_num_employees,
  company_revenue = excluded.company_revenue,
  fingerprint = excluded.fingerprint,
  extracted_skills = excluded.extracted_skills,
  matched_skills = excluded.matched_skills,
  partial_skills = excluded.partial_skills,
  missing_skills = excluded.missing_skills,
  heuristic_score = excluded.heuristic_score,
  relevance_score = excluded.relevance_score,
  relevance_reasoning = excluded.relevance_reasoning;`,
		url, job.Clean(p.Site), job.Clean(p.DirectURL), job.Clean(p.Title),
		job.Clean(p.Company), job.Clean(p.Location), job.Clean(p.DatePosted),
		job.Clean(p.JobType), job.Clean(p.SalarySource), job.Clean(p.Interval),
		p.MinAmount, p.MaxAmount, job.Clean(p.Currency),
		p.IsRemote, job.Clean(p.JobLevel), job.Clean(p.JobFunction), job.Clean(p.Description),
		job.Clean(p.CompanyIndustry), job.Clean(p.CompanyURL), job.Clean(p.CompanyLogo),
		job.Clean(p.CompanyDescription), job.Clean(p.CompanyNumEmployees), job.Clean(p.CompanyRevenue),
		int64(rec.Fingerprint), extracted, matched, partial, missing,
		rec.HeuristicScore, rec.RelevanceScore, rec.Reasoning,
	)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}

	return nil
}

// RecentFingerprints returns the fingerprints of postings scraped at or
// after the cutoff.
func (s *Store) RecentFingerprints(ctx context.Context, since time.Time) ([]uint64, error) {
	rows, err := s.pool.QueryContext(ctx, `
SELECT fingerprint FROM jobs
WHERE fingerprint IS NOT NULL AND date_scraped >= ?;`,
		since.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, fmt.Errorf("query recent fingerprints: %w", err)
	}
	defer rows.Close()

	var fingerprints []uint64
	for rows.Next() {
		var fp int64
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		fingerprints = append(fingerprints, uint64(fp))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprints: %w", err)
	}

	return fingerprints, nil
}

// CountJobs returns the number of stored, non-archived postings.
func (s *Store) CountJobs(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE archived = 0;`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

// ArchiveJob flags the posting with the given URL as archived.
func (s *Store) ArchiveJob(ctx context.Context, url string) error {
	res, err := s.pool.ExecContext(ctx, `UPDATE jobs SET archived = 1 WHERE job_url = ?;`, url)
	if err != nil {
		return fmt.Errorf("archive job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
