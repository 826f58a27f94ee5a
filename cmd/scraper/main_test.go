package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	kafkago "github.com/segmentio/kafka-go"

	"relentless-jobs/internal/crawler"
	"relentless-jobs/internal/export"
	"relentless-jobs/internal/graph"
	"relentless-jobs/internal/kafka"
	"relentless-jobs/internal/models"
	"relentless-jobs/internal/store"
	"relentless-jobs/mocks"
	"relentless-jobs/pkg/logging"
)

// quietEnv keeps the run local and fast.
func quietEnv(t *testing.T) {
	t.Helper()
	for key, value := range map[string]string{
		"REQUEST_DELAY":    "0s",
		"RETRY_BASE_DELAY": "1ms",
		"RETRY_MAX_DELAY":  "2ms",
		"LOG_LEVEL":        "error",
		"METRICS_ADDR":     "",
		"KAFKA_BROKER":     "",
		"NEO4J_URI":        "",
		"REDIS_ADDR":       "",
		"PROXY_POOL":       "",
	} {
		t.Setenv(key, value)
	}
}

func newJobsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/" {
			fmt.Fprintf(w, `<html><body><h1>Role %s</h1><div class="job-description">Details</div></body></html>`,
				strings.Trim(strings.TrimPrefix(r.URL.Path, "/jobs/"), "/"))
			return
		}
		if r.URL.Query().Get("page") != "" {
			io.WriteString(w, `<html><body><p>No more jobs</p></body></html>`)
			return
		}
		io.WriteString(w, `<html><body>
<div class="job-card"><h2><a href="/jobs/go-dev-1/">Go Developer</a></h2><span class="company">Acme</span></div>
<div class="job-card"><h2><a href="/jobs/sre-2/">SRE</a></h2><span class="company">Globex</span></div>
</body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunWritesOutputsAndSummary(t *testing.T) {
	quietEnv(t)
	srv := newJobsServer(t)
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-url", srv.URL + "/jobs/",
		"-format", "json,csv",
		"-out-dir", dir,
		"-basename", "uae",
	}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("expected exit %d, got %d (stderr: %s)", exitOK, code, stderr.String())
	}

	var summary models.RunSummary
	if err := json.Unmarshal(stdout.Bytes(), &summary); err != nil {
		t.Fatalf("summary is not json: %v\n%s", err, stdout.String())
	}
	if summary.RecordsEmitted != 2 {
		t.Fatalf("expected 2 records, got %d", summary.RecordsEmitted)
	}
	want := []string{filepath.Join(dir, "uae.json"), filepath.Join(dir, "uae.csv")}
	if strings.Join(summary.Outputs, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected outputs: %v", summary.Outputs)
	}

	f, err := os.Open(want[1])
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	records, err := export.ReadCSV(f)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 csv rows, got %d", len(records))
	}
	if records[0].JobLink != srv.URL+"/jobs/go-dev-1" || records[1].JobLink != srv.URL+"/jobs/sre-2" {
		t.Fatalf("unexpected order: %s, %s", records[0].JobLink, records[1].JobLink)
	}
	if records[0].Company != "Acme" {
		t.Fatalf("expected company from the card, got %q", records[0].Company)
	}
}

func TestRunAbortsWithoutUsableURLs(t *testing.T) {
	quietEnv(t)
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-url", "ftp://jobs.example/", "-out-dir", dir}, &stdout, &stderr)
	if code != exitAborted {
		t.Fatalf("expected exit %d, got %d", exitAborted, code)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no output files, got %d", len(entries))
	}
	var summary models.RunSummary
	if err := json.Unmarshal(stdout.Bytes(), &summary); err != nil {
		t.Fatalf("summary is not json: %v", err)
	}
	if len(summary.FailedSearchURLs) != 1 {
		t.Fatalf("expected the URL reported as failed, got %v", summary.FailedSearchURLs)
	}
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	quietEnv(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-url", "https://jobs.example/", "-format", "pdf"}, &stdout, &stderr)
	if code != exitUsage {
		t.Fatalf("expected exit %d, got %d", exitUsage, code)
	}
	if !strings.Contains(stderr.String(), "unsupported format") {
		t.Fatalf("expected format error, got %q", stderr.String())
	}
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{
		"-url", "https://a.example/jobs",
		"-url", "https://b.example/jobs",
		"-proxy", "http://p1:8080",
		"-max-items", "7",
		"https://c.example/jobs",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if len(o.URLs) != 3 || o.URLs[2] != "https://c.example/jobs" {
		t.Fatalf("unexpected urls: %v", o.URLs)
	}
	if len(o.Proxies) != 1 || o.MaxItems != 7 {
		t.Fatalf("unexpected overrides: %+v", o)
	}

	o, err = parseFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if o.MaxItems != -1 {
		t.Fatalf("expected unset max-items to be -1, got %d", o.MaxItems)
	}
}

func TestSinksPublish(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	resultsWriter := mocks.NewMockMessageWriter(ctrl)
	dlqWriter := mocks.NewMockMessageWriter(ctrl)
	statusStore := mocks.NewMockStatusStore(ctrl)
	driver := mocks.NewMockDriverSessioner(ctrl)
	session := mocks.NewMockSessionRunner(ctrl)

	res := crawler.Result{
		Records: []models.JobRecord{
			{JobTitle: "Go Developer", JobLink: "https://jobs.example/go-1/"},
			{JobTitle: "SRE", JobLink: "https://jobs.example/sre-2/"},
		},
		Summary: models.RunSummary{
			RunID:          "run-1",
			RecordsEmitted: 2,
			Failures:       []models.CrawlFailure{{RunID: "run-1", URL: "https://jobs.example/gone/", Kind: "detail"}},
		},
	}

	resultsWriter.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msgs ...kafkago.Message) error {
			if len(msgs) != 2 || string(msgs[0].Key) != "https://jobs.example/go-1/" {
				t.Errorf("unexpected record messages: %d", len(msgs))
			}
			return nil
		})
	dlqWriter.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	driver.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(session)
	session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any()).Return(nil, nil)
	session.EXPECT().Close(gomock.Any()).Return(nil)
	statusStore.EXPECT().SetStatus(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, status models.RunStatus) error {
			if status.Status != models.RunCompleted || status.Summary == nil || status.Summary.RecordsEmitted != 2 {
				t.Errorf("unexpected status: %+v", status)
			}
			return nil
		})

	s := &sinks{
		results: kafka.NewProducerWithWriter(resultsWriter),
		dlq:     kafka.NewProducerWithWriter(dlqWriter),
		graph:   graph.NewJobWriter(driver, nil),
		tracker: store.NewRunTracker(statusStore, "run-1", []string{"https://jobs.example/"}),
		log:     logging.NewNop(),
	}
	s.publish(context.Background(), "run-1", res, nil)
}

func TestSinksPublishSkipsUnconfigured(t *testing.T) {
	s := &sinks{log: logging.NewNop()}
	s.start(context.Background())
	s.publish(context.Background(), "run-1", crawler.Result{Records: []models.JobRecord{{JobLink: "x"}}}, nil)
	s.close()
}

func TestSinksRecordFailedRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	statusStore := mocks.NewMockStatusStore(ctrl)
	gomock.InOrder(
		statusStore.EXPECT().SetStatus(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, status models.RunStatus) error {
				if status.Status != models.RunRunning {
					t.Errorf("expected running, got %s", status.Status)
				}
				return nil
			}),
		statusStore.EXPECT().SetStatus(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, status models.RunStatus) error {
				if status.Status != models.RunFailed {
					t.Errorf("expected failed, got %s", status.Status)
				}
				return nil
			}),
	)

	s := &sinks{
		tracker: store.NewRunTracker(statusStore, "run-2", nil),
		log:     logging.NewNop(),
	}
	s.start(context.Background())
	s.publish(context.Background(), "run-2", crawler.Result{}, &crawler.RunAbortError{Reason: "every search URL failed"})
}
