package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"relentless-jobs/internal/models"
	"relentless-jobs/pkg/logging"
)

const upsertJobsQuery = `
UNWIND $jobs AS job
MERGE (j:Job {link: job.link})
SET j.title = job.title,
    j.salary = job.salary,
    j.type = job.type,
    j.career_level = job.careerLevel,
    j.location = job.location,
    j.description = job.description,
    j.created_at = job.createdAt,
    j.logo = job.logo,
    j.run_id = $run_id
MERGE (s:Search {url: job.searchUrl})
MERGE (s)-[:LISTED]->(j)
WITH j, job
FOREACH (_ IN CASE WHEN job.company = '' THEN [] ELSE [1] END |
    MERGE (c:Company {name: job.company})
    MERGE (j)-[:POSTED_BY]->(c)
)`

const defaultBatchSize = 200

// JobWriter upserts (:Search)-[:LISTED]->(:Job)-[:POSTED_BY]->(:Company).
type JobWriter struct {
	driver    DriverSessioner
	batchSize int
	log       *logging.Logger
}

func NewJobWriter(driver DriverSessioner, logger *logging.Logger) *JobWriter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &JobWriter{driver: driver, batchSize: defaultBatchSize, log: logger}
}

// UpsertJobs merges records keyed by jobLink, in batches.
func (w *JobWriter) UpsertJobs(ctx context.Context, runID string, records []models.JobRecord) error {
	for start := 0; start < len(records); start += w.batchSize {
		end := start + w.batchSize
		if end > len(records) {
			end = len(records)
		}
		query, params := buildUpsertJobsQuery(runID, records[start:end])
		if err := w.runWrite(ctx, query, params); err != nil {
			return fmt.Errorf("graph: upsert jobs %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (w *JobWriter) runWrite(ctx context.Context, query string, params map[string]any) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(ctx); err != nil {
			w.log.Warn("neo4j session close error", "error", err)
		}
	}()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}

func buildUpsertJobsQuery(runID string, records []models.JobRecord) (string, map[string]any) {
	jobs := make([]map[string]any, 0, len(records))
	for _, r := range records {
		jobs = append(jobs, map[string]any{
			"link":        r.JobLink,
			"searchUrl":   r.SearchURL,
			"title":       r.JobTitle,
			"salary":      r.JobSalary,
			"type":        r.JobType,
			"careerLevel": r.JobCareerLevel,
			"logo":        r.JobCompanyLogo,
			"company":     r.JobCompany,
			"location":    r.JobLocation,
			"description": r.JobDescription,
			"createdAt":   r.JobCreatedAt,
		})
	}
	return upsertJobsQuery, map[string]any{"jobs": jobs, "run_id": runID}
}
