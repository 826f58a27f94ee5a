package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"relentless-jobs/internal/config"
	"relentless-jobs/internal/crawler"
	"relentless-jobs/internal/export"
	"relentless-jobs/internal/extract"
	"relentless-jobs/internal/fetch"
	"relentless-jobs/internal/metrics"
	"relentless-jobs/internal/models"
	"relentless-jobs/pkg/logging"
)

// Exit codes.
const (
	exitOK      = 0
	exitAborted = 1
	exitUsage   = 2
)

// stringList is a repeatable flag.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("empty value")
	}
	*l = append(*l, value)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (config.Overrides, error) {
	fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		o       config.Overrides
		urls    stringList
		proxies stringList
	)
	fs.StringVar(&o.InputsPath, "inputs", "", "path to a YAML or JSON inputs file")
	fs.Var(&urls, "url", "search URL to crawl (repeatable)")
	fs.IntVar(&o.MaxItems, "max-items", -1, "stop after this many records (0 = unbounded)")
	fs.StringVar(&o.Formats, "format", "", "comma-separated output formats: json, jsonl, csv, xlsx, html, xml")
	fs.StringVar(&o.OutputDir, "out-dir", "", "output directory")
	fs.StringVar(&o.Basename, "basename", "", "output file name without extension")
	fs.StringVar(&o.LogLevel, "log-level", "", "debug, info, warn or error")
	fs.Var(&proxies, "proxy", "proxy URL (repeatable)")
	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}
	if fs.NArg() > 0 {
		urls = append(urls, fs.Args()...)
	}
	o.URLs = urls
	o.Proxies = proxies
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	overrides, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	settings, err := config.Load(overrides)
	if err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return exitUsage
	}

	logger := logging.New(settings.LogLevel)
	defer func() { _ = logger.Sync() }()

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	m := metrics.New()
	m.SetProxies(settings.ProxyPool)
	if settings.MetricsAddr != "" {
		metrics.StartServer(ctx, settings.MetricsAddr, m, logger)
	}

	client, err := fetch.NewClient(fetch.Options{
		Proxies:         settings.ProxyPool,
		UserAgent:       settings.UserAgent,
		SummaryTimeout:  settings.HTTPTimeout,
		DetailTimeout:   settings.HTTPTimeout,
		SummaryAttempts: settings.SummaryAttempts,
		DetailAttempts:  settings.DetailAttempts,
		BaseDelay:       settings.RetryBaseDelay,
		MaxDelay:        settings.RetryMaxDelay,
		RequestDelay:    settings.RequestDelay,
		RespectRobots:   settings.RespectRobots,
		Metrics:         m,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to build http client", "error", err)
		return exitUsage
	}

	out := openSinks(ctx, settings, runID, logger)
	defer out.close()
	out.start(ctx)

	pipeline := crawler.New(client, extract.NewParser(time.Now()), crawler.Options{
		RunID:             runID,
		MaxItems:          settings.MaxItems,
		Concurrency:       settings.ConcurrentFetches,
		SearchConcurrency: settings.SearchConcurrency,
		MaxPages:          settings.MaxPages,
		StaleLimit:        settings.StaleLimit,
		PageParam:         settings.PageParam,
		Metrics:           m,
		Logger:            logger,
	})
	res, runErr := pipeline.Run(ctx, settings.SearchURLs)

	code := exitOK
	var abort *crawler.RunAbortError
	if errors.As(runErr, &abort) {
		logger.Error("run aborted", "reason", abort.Reason, "failed_search_urls", abort.Failed)
		code = exitAborted
	} else {
		outputs, err := exportAll(settings, res.Records)
		res.Summary.Outputs = outputs
		if err != nil {
			logger.Error("export failed", "error", err)
			runErr = err
			code = exitAborted
		}
	}

	out.publish(ctx, runID, res, runErr)

	logger.Info("run summary",
		"records_emitted", res.Summary.RecordsEmitted,
		"parse_anomalies", res.Summary.ParseAnomalies,
		"fetch_failures", res.Summary.FetchFailures,
		"failed_search_urls", res.Summary.FailedSearchURLs,
		"elapsed", res.Summary.Elapsed.String(),
		"outputs", res.Summary.Outputs,
	)
	if err := writeSummary(stdout, res.Summary); err != nil {
		logger.Error("failed to print summary", "error", err)
	}
	return code
}

// exportAll writes one file per format concurrently. Paths come back in the
// order the formats were configured. An interrupted run still exports what it
// collected.
func exportAll(s config.Settings, records []models.JobRecord) ([]string, error) {
	paths := make([]string, len(s.OutputFormats))
	var g errgroup.Group
	for i, format := range s.OutputFormats {
		g.Go(func() error {
			path, err := export.WriteFile(s.OutputDir, s.Basename, records, format)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var written []string
		for _, p := range paths {
			if p != "" {
				written = append(written, p)
			}
		}
		return written, err
	}
	return paths, nil
}

func writeSummary(w io.Writer, summary models.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(summary)
}
