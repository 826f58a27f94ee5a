package graph

import (
	"strings"
	"testing"

	"relentless-jobs/internal/models"
)

func TestBuildUpsertJobsQuery(t *testing.T) {
	query, params := buildUpsertJobsQuery("run-1", []models.JobRecord{{
		SearchURL:  "https://jobs.example/search",
		JobTitle:   "Go Engineer",
		JobLink:    "https://jobs.example/job/1",
		JobCompany: "Acme",
	}})
	if !strings.Contains(query, "MERGE (j:Job {link: job.link})") || !strings.Contains(query, "[:POSTED_BY]") {
		t.Fatalf("unexpected query: %s", query)
	}
	if params["run_id"] != "run-1" {
		t.Fatalf("unexpected run id: %v", params["run_id"])
	}
	jobs, ok := params["jobs"].([]map[string]any)
	if !ok || len(jobs) != 1 {
		t.Fatalf("unexpected jobs param: %#v", params["jobs"])
	}
	if jobs[0]["link"] != "https://jobs.example/job/1" || jobs[0]["company"] != "Acme" || jobs[0]["title"] != "Go Engineer" {
		t.Fatalf("unexpected job params: %#v", jobs[0])
	}
}
