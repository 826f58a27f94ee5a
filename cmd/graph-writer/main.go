package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"relentless-jobs/common"
	"relentless-jobs/internal/graph"
	"relentless-jobs/internal/kafka"
	"relentless-jobs/internal/models"
	"relentless-jobs/pkg/logging"
)

// jobUpserter is the part of graph.JobWriter the consumer needs.
type jobUpserter interface {
	UpsertJobs(ctx context.Context, runID string, records []models.JobRecord) error
}

var (
	// Counters exposed on /metrics. Received counts fetched messages; failed
	// counts decode or Neo4j write errors.
	graphWriterRecordsReceived uint64
	graphWriterRecordsFailed   uint64
	graphWriterRecordsWritten  uint64
)

func main() {
	logger := logging.New(common.GetEnv("LOG_LEVEL", "info"))
	defer func() { _ = logger.Sync() }()

	broker := common.GetEnv("KAFKA_BROKER", "localhost:9092")
	resultsTopic := common.GetEnv("KAFKA_RESULTS_TOPIC", "relentless.jobs.results")
	resultsGroup := common.GetEnv("KAFKA_RESULTS_GROUP", "relentless-jobs-graph")
	metricsAddr := common.GetEnv("METRICS_ADDR", ":9091")

	neo4jURI := common.GetEnv("NEO4J_URI", "neo4j://localhost:7687")
	neo4jUser := common.GetEnv("NEO4J_USER", "neo4j")
	neo4jPassword := common.GetEnv("NEO4J_PASSWORD", "neo4j")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	driver, err := graph.NewDriver(connectCtx, neo4jURI, neo4jUser, neo4jPassword)
	cancel()
	if err != nil {
		logger.Error("neo4j driver error", "uri", neo4jURI, "error", err)
		return
	}
	defer func() {
		if err := driver.Close(context.Background()); err != nil {
			logger.Warn("neo4j close error", "error", err)
		}
	}()

	reader := kafka.NewReader(broker, resultsTopic, resultsGroup)
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("results reader close error", "error", err)
		}
	}()

	if metricsAddr != "" {
		startMetricsServer(ctx, metricsAddr, logger)
	}

	logger.Info("graph writer consuming", "topic", resultsTopic, "group", resultsGroup, "broker", broker)
	consumeRecords(ctx, reader, graph.NewJobWriter(driver, logger), logger)
}

func startMetricsServer(ctx context.Context, addr string, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", handleMetrics)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	body := fmt.Sprintf(
		"relentless_jobs_graph_writer_up 1\n"+
			"relentless_jobs_graph_writer_records_received_total %d\n"+
			"relentless_jobs_graph_writer_records_failed_total %d\n"+
			"relentless_jobs_graph_writer_records_written_total %d\n",
		atomic.LoadUint64(&graphWriterRecordsReceived),
		atomic.LoadUint64(&graphWriterRecordsFailed),
		atomic.LoadUint64(&graphWriterRecordsWritten),
	)
	_, _ = w.Write([]byte(body))
}

// consumeRecords upserts each results-topic record and commits it. Undecodable
// messages are committed and counted as failed; write failures are only
// counted.
func consumeRecords(ctx context.Context, reader kafka.MessageReader, writer jobUpserter, logger *logging.Logger) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("results fetch error", "error", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		atomic.AddUint64(&graphWriterRecordsReceived, 1)
		record, err := kafka.DecodeRecord(msg.Value)
		if err != nil {
			atomic.AddUint64(&graphWriterRecordsFailed, 1)
			logger.Warn("skipping invalid record", "offset", msg.Offset, "error", err)
			commit(ctx, reader, msg, logger)
			continue
		}
		if err := writer.UpsertJobs(ctx, record.RunID, []models.JobRecord{record.Record}); err != nil {
			atomic.AddUint64(&graphWriterRecordsFailed, 1)
			logger.Error("results write error", "job_link", record.Record.JobLink, "error", err)
			continue
		}
		atomic.AddUint64(&graphWriterRecordsWritten, 1)
		commit(ctx, reader, msg, logger)
	}
}

func commit(ctx context.Context, reader kafka.MessageReader, msg kafkago.Message, logger *logging.Logger) {
	if err := reader.CommitMessages(ctx, msg); err != nil {
		logger.Warn("results commit error", "offset", msg.Offset, "error", err)
	}
}
