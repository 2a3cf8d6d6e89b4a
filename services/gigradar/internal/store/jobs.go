package store

import (
	"context"
	"database/sql"

	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/models"
	"gigradar/services/gigradar/internal/textnorm"

	"go.uber.org/zap"
)

// maxJobDescription bounds the stored description in runes.
const maxJobDescription = 1000

const upsertJobSQL = `
	INSERT INTO jobs (
		source_id, title, description, budget, budget_numeric, skills, posted_at, url,
		client_country, client_rating, client_total_spent, proposals, job_type,
		experience_level, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (source_id) DO UPDATE SET
		title = COALESCE(excluded.title, jobs.title),
		description = COALESCE(excluded.description, jobs.description),
		budget = CASE
			WHEN excluded.budget_numeric > 0 OR jobs.budget_numeric = 0 THEN COALESCE(excluded.budget, jobs.budget)
			ELSE jobs.budget
		END,
		budget_numeric = CASE
			WHEN excluded.budget_numeric > 0 THEN excluded.budget_numeric
			ELSE jobs.budget_numeric
		END,
		skills = COALESCE(excluded.skills, jobs.skills),
		posted_at = COALESCE(excluded.posted_at, jobs.posted_at),
		url = COALESCE(excluded.url, jobs.url),
		client_country = COALESCE(excluded.client_country, jobs.client_country),
		client_rating = COALESCE(excluded.client_rating, jobs.client_rating),
		client_total_spent = COALESCE(excluded.client_total_spent, jobs.client_total_spent),
		proposals = COALESCE(excluded.proposals, jobs.proposals),
		job_type = COALESCE(excluded.job_type, jobs.job_type),
		experience_level = COALESCE(excluded.experience_level, jobs.experience_level),
		updated_at = excluded.updated_at
`

// UpsertJob inserts a job or merges it into the stored row by source id.
// Fields absent from job never overwrite stored values.
func (s *Store) UpsertJob(ctx context.Context, job models.Job) error {
	if job.SourceID == "" {
		return errors.InvalidInput("job has no source id", nil)
	}

	skills, err := encodeSkills(job.Skills)
	if err != nil {
		return errors.Internal("encoding skills", err)
	}
	now := s.now().Unix()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(upsertJobSQL),
			job.SourceID,
			nullString(job.Title),
			nullString(textnorm.Truncate(textnorm.Normalize(job.Description), maxJobDescription)),
			nullString(job.Budget),
			job.BudgetNumeric,
			skills,
			nullUnix(job.PostedAt),
			nullString(job.URL),
			nullString(job.ClientCountry),
			nullFloat(job.ClientRating),
			nullFloat(job.ClientTotalSpent),
			nullString(job.Proposals),
			nullString(job.JobType),
			nullString(job.ExperienceLevel),
			now,
			now,
		)
		if err != nil {
			return classify("upserting job", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("job upsert failed", zap.String("source_id", job.SourceID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, sourceID string) (*models.Job, error) {
	row := s.db.DB().QueryRowContext(ctx, s.q(`
		SELECT source_id, title, description, budget, budget_numeric, skills, posted_at, url,
			client_country, client_rating, client_total_spent, proposals, job_type, experience_level
		FROM jobs WHERE source_id = ?`), sourceID)

	var (
		job                                 models.Job
		title, desc, budget, skills, url    sql.NullString
		country, proposals, jobType, expLvl sql.NullString
		rating, spent                       sql.NullFloat64
		postedAt                            sql.NullInt64
	)
	err := row.Scan(&job.SourceID, &title, &desc, &budget, &job.BudgetNumeric, &skills, &postedAt, &url,
		&country, &rating, &spent, &proposals, &jobType, &expLvl)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("job "+sourceID, nil)
	}
	if err != nil {
		return nil, errors.Internal("reading job", err)
	}

	job.Title = title.String
	job.Description = desc.String
	job.Budget = budget.String
	job.Skills = decodeSkills(skills)
	job.PostedAt = fromUnix(postedAt)
	job.URL = url.String
	job.ClientCountry = country.String
	if rating.Valid {
		job.ClientRating = &rating.Float64
	}
	if spent.Valid {
		job.ClientTotalSpent = &spent.Float64
	}
	job.Proposals = proposals.String
	job.JobType = jobType.String
	job.ExperienceLevel = expLvl.String
	return &job, nil
}
