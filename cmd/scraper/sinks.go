package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"relentless-jobs/internal/config"
	"relentless-jobs/internal/crawler"
	"relentless-jobs/internal/graph"
	"relentless-jobs/internal/kafka"
	"relentless-jobs/internal/store"
	"relentless-jobs/pkg/logging"
)

const sinkTimeout = 30 * time.Second

// sinks are the optional run-side outputs. Each one is nil when unconfigured
// and none of them can fail the run.
type sinks struct {
	results *kafka.Producer
	dlq     *kafka.Producer
	graph   *graph.JobWriter
	tracker *store.RunTracker
	closers []func() error
	log     *logging.Logger
}

func openSinks(ctx context.Context, s config.Settings, runID string, logger *logging.Logger) *sinks {
	out := &sinks{log: logger}
	if s.KafkaBroker != "" {
		out.results = kafka.NewProducer(s.KafkaBroker, s.KafkaResultsTopic)
		out.dlq = kafka.NewProducer(s.KafkaBroker, s.KafkaDLQTopic)
		out.closers = append(out.closers, out.results.Close, out.dlq.Close)
		logger.Info("kafka sink enabled", "broker", s.KafkaBroker, "results_topic", s.KafkaResultsTopic, "dlq_topic", s.KafkaDLQTopic)
	}
	if s.Neo4jURI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		driver, err := graph.NewDriver(connectCtx, s.Neo4jURI, s.Neo4jUser, s.Neo4jPassword)
		cancel()
		if err != nil {
			logger.Warn("neo4j unavailable; graph sink disabled", "uri", s.Neo4jURI, "error", err)
		} else {
			out.graph = graph.NewJobWriter(driver, logger)
			out.closers = append(out.closers, func() error { return driver.Close(context.Background()) })
			logger.Info("graph sink enabled", "uri", s.Neo4jURI)
		}
	}
	if s.RedisAddr != "" {
		statusStore := store.NewRedisStatusStore(s.RedisAddr, "run:", s.StatusTTL)
		out.tracker = store.NewRunTracker(statusStore, runID, s.SearchURLs)
		out.closers = append(out.closers, statusStore.Close)
		logger.Info("status store enabled", "addr", s.RedisAddr)
	}
	return out
}

func (s *sinks) start(ctx context.Context) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.Start(ctx); err != nil {
		s.log.Warn("failed to record run start", "error", err)
	}
}

// publish fans the result out to every configured sink and waits for all.
func (s *sinks) publish(ctx context.Context, runID string, res crawler.Result, runErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	var g errgroup.Group
	if s.results != nil && len(res.Records) > 0 {
		g.Go(func() error {
			if err := s.results.WriteRecords(ctx, runID, res.Records); err != nil {
				s.log.Error("failed to publish records", "records", len(res.Records), "error", err)
			}
			return nil
		})
	}
	if s.dlq != nil && len(res.Summary.Failures) > 0 {
		g.Go(func() error {
			if err := s.dlq.WriteFailures(ctx, res.Summary.Failures); err != nil {
				s.log.Error("failed to publish dlq", "failures", len(res.Summary.Failures), "error", err)
			}
			return nil
		})
	}
	if s.graph != nil && len(res.Records) > 0 {
		g.Go(func() error {
			if err := s.graph.UpsertJobs(ctx, runID, res.Records); err != nil {
				s.log.Error("failed to upsert jobs", "records", len(res.Records), "error", err)
			}
			return nil
		})
	}
	if s.tracker != nil {
		summary := res.Summary
		g.Go(func() error {
			if err := s.tracker.Finish(ctx, summary, runErr); err != nil {
				s.log.Error("failed to record run status", "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *sinks) close() {
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			s.log.Warn("failed to close sink", "error", err)
		}
	}
}
