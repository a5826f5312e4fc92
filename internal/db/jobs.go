package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"jobmate/collector-service/internal/apperr"
	"jobmate/collector-service/internal/model"
)

// JobStore persists collected postings and their employers.
type JobStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewJobStore returns a configured JobStore.
func NewJobStore(pool *pgxpool.Pool, logger *zap.Logger) *JobStore {
	return &JobStore{pool: pool, logger: logger.Named("jobstore")}
}

type upsertOutcome int

const (
	outcomeInserted upsertOutcome = iota
	outcomeDuplicate
)

// UpsertBatch inserts jobs in one transaction. Each record runs in its own
// savepoint: a record that fails is rolled back and skipped while the rest of
// the batch commits. Existing job_ids are left untouched (first write wins).
func (s *JobStore) UpsertBatch(ctx context.Context, jobs []model.JobRecord) (model.UpsertStats, error) {
	var stats model.UpsertStats
	if len(jobs) == 0 {
		return stats, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.UpsertStats{Failed: len(jobs)}, apperr.Persistence("begin transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	// Employer ids resolved in this batch. An entry is added only once the
	// savepoint that produced it has been released.
	employers := make(map[string]int64)

	for i := range jobs {
		job := &jobs[i]
		outcome, created, err := s.upsertOne(ctx, tx, job, employers)
		if err != nil {
			stats.Failed++
			s.logger.Warn("job skipped", zap.String("job_id", job.JobID), zap.Error(err))
			continue
		}
		switch outcome {
		case outcomeInserted:
			stats.Inserted++
		case outcomeDuplicate:
			stats.Duplicates++
		}
		if created {
			stats.EmployersCreated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.UpsertStats{Failed: len(jobs)}, apperr.Persistence("commit transaction", err)
	}

	s.logger.Info("batch persisted",
		zap.Int("inserted", stats.Inserted),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("failed", stats.Failed),
		zap.Int("employers_created", stats.EmployersCreated))
	return stats, nil
}

func (s *JobStore) upsertOne(ctx context.Context, tx pgx.Tx, job *model.JobRecord, employers map[string]int64) (upsertOutcome, bool, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return 0, false, apperr.Persistence("savepoint", err)
	}
	defer sp.Rollback(ctx) //nolint:errcheck // no-op after release

	var exists bool
	if err := sp.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE job_id = $1)`, job.JobID,
	).Scan(&exists); err != nil {
		return 0, false, apperr.Persistence("check job", err)
	}
	if exists {
		if err := sp.Commit(ctx); err != nil {
			return 0, false, apperr.Persistence("release savepoint", err)
		}
		return outcomeDuplicate, false, nil
	}

	name := employerName(job)
	companyID, cached := employers[name]
	created := false
	if !cached {
		companyID, created, err = resolveEmployer(ctx, sp, name, job)
		if err != nil {
			return 0, false, err
		}
	}

	args, err := jobRowArgs(job, companyID)
	if err != nil {
		return 0, false, apperr.Data("encode job", err)
	}
	tag, err := sp.Exec(ctx,
		`INSERT INTO jobs (
		   job_id, title, company_id,
		   country, state, city, location, job_latitude, job_longitude,
		   description, job_highlights, job_benefits,
		   posted_at_utc, posted_at_ts, is_remote, employment_type,
		   job_min_salary, job_max_salary, job_salary_period,
		   publisher, is_direct_apply, apply_link, apply_options, job_google_link,
		   is_summarized, is_embedded
		 ) VALUES (
		   $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12,
		   $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23::jsonb, $24,
		   false, false
		 )
		 ON CONFLICT (job_id) DO NOTHING`,
		args...,
	)
	if err != nil {
		return 0, false, apperr.Persistence("insert job", err)
	}

	if err := sp.Commit(ctx); err != nil {
		return 0, false, apperr.Persistence("release savepoint", err)
	}
	employers[name] = companyID

	if tag.RowsAffected() == 0 {
		return outcomeDuplicate, created, nil
	}
	return outcomeInserted, created, nil
}

// resolveEmployer returns the id of the companies row for name, creating it
// when missing. created reports whether this call inserted the row.
func resolveEmployer(ctx context.Context, tx pgx.Tx, name string, job *model.JobRecord) (int64, bool, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`INSERT INTO companies (name, logo_url, website)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO NOTHING
		 RETURNING id`,
		name, nullString(job.EmployerLogo), nullString(job.EmployerWebsite),
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, apperr.Persistence("insert employer", err)
	}

	if err := tx.QueryRow(ctx, `SELECT id FROM companies WHERE name = $1`, name).Scan(&id); err != nil {
		return 0, false, apperr.Persistence("select employer", err)
	}
	return id, false, nil
}

func employerName(job *model.JobRecord) string {
	name := strings.TrimSpace(job.EmployerName)
	if name == "" {
		return model.UnknownEmployer
	}
	return name
}

// jobRowArgs projects a JobRecord onto the insert column order.
func jobRowArgs(job *model.JobRecord, companyID int64) ([]any, error) {
	var highlights, applyOptions []byte
	var err error
	if len(job.Highlights) > 0 {
		if highlights, err = json.Marshal(job.Highlights); err != nil {
			return nil, fmt.Errorf("highlights: %w", err)
		}
	}
	if len(job.ApplyOptions) > 0 {
		if applyOptions, err = json.Marshal(job.ApplyOptions); err != nil {
			return nil, fmt.Errorf("apply options: %w", err)
		}
	}

	title := strings.TrimSpace(job.Title)
	if title == "" {
		title = "Untitled"
	}

	return []any{
		job.JobID,
		title,
		companyID,
		nullString(job.Country),
		nullString(job.State),
		nullString(job.City),
		nullString(job.Location),
		job.Latitude,
		job.Longitude,
		nullString(job.Description),
		nullJSON(highlights),
		nullString(string(job.Benefits)),
		job.PostedAt(),
		job.PostedAtTimestamp,
		job.IsRemote,
		job.EmploymentTypes,
		roundSalary(job.MinSalary),
		roundSalary(job.MaxSalary),
		nullString(job.SalaryPeriod),
		nullString(job.Publisher),
		job.IsDirectApply,
		nullString(job.ApplyLink),
		nullJSON(applyOptions),
		nullString(job.GoogleLink),
	}, nil
}

func roundSalary(v *float64) *int64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	r := int64(math.Round(*v))
	return &r
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullJSON(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	return &s
}

const selectJobColumns = `
	SELECT j.id, j.job_id, j.added_at,
	       j.country, j.state, j.city, j.location, j.job_latitude, j.job_longitude,
	       j.title, j.description, j.job_highlights, j.job_benefits,
	       j.posted_at_utc, j.posted_at_ts, j.is_remote, j.employment_type,
	       j.job_min_salary, j.job_max_salary, j.job_salary_period,
	       j.publisher, j.is_direct_apply, j.apply_link, j.apply_options, j.job_google_link,
	       j.is_summarized, j.is_embedded, j.job_summary,
	       c.id, c.name, COALESCE(c.logo_url, ''), COALESCE(c.website, '')
	FROM jobs j
	JOIN companies c ON c.id = j.company_id`

// JobsByIDs returns the stored jobs for the given external ids, in the order
// of ids. Unknown ids are skipped.
func (s *JobStore) JobsByIDs(ctx context.Context, ids []string) ([]model.PersistedJob, error) {
	out := make([]model.PersistedJob, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, selectJobColumns+` WHERE j.job_id = ANY($1)`, ids)
	if err != nil {
		return nil, apperr.Persistence("jobsByIDs query", err)
	}
	defer rows.Close()

	byID := make(map[string]model.PersistedJob, len(ids))
	for rows.Next() {
		var (
			j                        model.PersistedJob
			highlights, applyOptions []byte
		)
		if err := rows.Scan(
			&j.ID, &j.JobID, &j.AddedAt,
			&j.Country, &j.State, &j.City, &j.Location, &j.Latitude, &j.Longitude,
			&j.Title, &j.Description, &highlights, &j.Benefits,
			&j.PostedAtUTC, &j.PostedAtTS, &j.IsRemote, &j.EmploymentType,
			&j.MinSalary, &j.MaxSalary, &j.SalaryPeriod,
			&j.Publisher, &j.IsDirectApply, &j.ApplyLink, &applyOptions, &j.GoogleLink,
			&j.IsSummarized, &j.IsEmbedded, &j.Summary,
			&j.Employer.ID, &j.Employer.Name, &j.Employer.LogoURL, &j.Employer.Website,
		); err != nil {
			return nil, apperr.Persistence("jobsByIDs scan", err)
		}
		j.Highlights = highlights
		j.ApplyOptions = applyOptions
		byID[j.JobID] = j
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("jobsByIDs rows", err)
	}

	for _, id := range ids {
		if j, ok := byID[id]; ok {
			out = append(out, j)
			delete(byID, id)
		}
	}
	return out, nil
}

// CountJobs returns the number of stored jobs.
func (s *JobStore) CountJobs(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		return 0, apperr.Persistence("count jobs", err)
	}
	return n, nil
}

// ClearSummaries drops every stored summary so the summarization stage
// processes all jobs again.
func (s *JobStore) ClearSummaries(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET is_summarized = false, job_summary = NULL
		 WHERE is_summarized OR job_summary IS NOT NULL`)
	if err != nil {
		return 0, apperr.Persistence("clear summaries", err)
	}
	s.logger.Info("summaries cleared", zap.Int64("jobs", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

// ClearEmbeddings deletes all embedding chunks and resets is_embedded, in one
// transaction.
func (s *JobStore) ClearEmbeddings(ctx context.Context) (int64, error) {
	var reset int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM job_embeddings`); err != nil {
			return fmt.Errorf("delete embeddings: %w", err)
		}
		tag, err := tx.Exec(ctx, `UPDATE jobs SET is_embedded = false WHERE is_embedded`)
		if err != nil {
			return fmt.Errorf("reset is_embedded: %w", err)
		}
		reset = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, apperr.Persistence("clear embeddings", err)
	}
	s.logger.Info("embeddings cleared", zap.Int64("jobs", reset))
	return reset, nil
}
