// Command replay publishes a JSON fixture to the raw event topics so a running
// dashboard can be exercised without the upstream indexer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"transfer-dashboard-backend/internal/ingest"
	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/storage"
)

var (
	fixture = flag.String("fixture", "", "Path of the JSON fixture to publish")
	brokers = flag.String("brokers", "localhost:9092", "Comma separated kafka brokers")
	simple  = flag.String("simple-topic", ingest.DefaultConfig().SimpleTopic, "Topic of the simple transfer feed")
	gmp     = flag.String("message-topic", ingest.DefaultConfig().MessageTopic, "Topic of the message passing feed")
)

func main() {
	flag.Parse()
	if *fixture == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -fixture events.json [-brokers host:9092]")
		os.Exit(2)
	}
	if err := utils.InitLogger(utils.LogConfig{Level: "info", Format: "console", ServiceName: "replay"}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.SyncLogger()
	log := utils.L()

	f, err := storage.ReadFixture(*fixture)
	if err != nil {
		log.Fatal("cannot read fixture", zap.Error(err))
	}

	cfg := ingest.DefaultConfig()
	cfg.Brokers = strings.Split(*brokers, ",")
	cfg.SimpleTopic = *simple
	cfg.MessageTopic = *gmp

	pub, err := ingest.NewPublisher(cfg)
	if err != nil {
		log.Fatal("cannot create publisher", zap.Error(err))
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := pub.PublishSimple(ctx, f.SimpleTransfers)
	if err != nil {
		log.Error("publishing simple transfers failed", zap.Int("published", n), zap.Error(err))
		return
	}
	m, err := pub.PublishMessages(ctx, f.MessageEvents)
	if err != nil {
		log.Error("publishing message events failed", zap.Int("published", m), zap.Error(err))
		return
	}
	log.Info("fixture published", zap.Int("simple_transfers", n), zap.Int("message_events", m))
}
