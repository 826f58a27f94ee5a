package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"relentless-jobs/common"
)

// partitionReader is the part of *kafka.Conn the check needs.
type partitionReader interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
}

func main() {
	broker := common.GetEnv("KAFKA_BROKER", "localhost:9092")
	topics := []string{
		common.GetEnv("KAFKA_RESULTS_TOPIC", "relentless.jobs.results"),
		common.GetEnv("KAFKA_DLQ_TOPIC", "relentless.jobs.dlq"),
	}
	timeout := common.ParseDuration(common.GetEnv("KAFKA_CHECK_TIMEOUT", "5s"), 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to Kafka at %s: %v\n", broker, err)
		os.Exit(1)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := check(conn, broker, topics, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// check verifies every topic exists and has at least one partition.
func check(conn partitionReader, broker string, topics []string, out io.Writer) error {
	partitions, err := conn.ReadPartitions(topics...)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	counts := make(map[string]int, len(topics))
	for _, p := range partitions {
		counts[p.Topic]++
	}
	var missing []string
	for _, topic := range topics {
		if counts[topic] == 0 {
			missing = append(missing, topic)
			continue
		}
		fmt.Fprintf(out, "topic %s: %d partitions\n", topic, counts[topic])
	}
	if len(missing) > 0 {
		return fmt.Errorf("topics missing on %s: %v", broker, missing)
	}
	fmt.Fprintf(out, "connected to Kafka at %s (%d topics ready)\n", broker, len(topics))
	return nil
}
