package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/William6892/barcodeverify-backend/internal/config"
	kafkax "github.com/William6892/barcodeverify-backend/internal/kafka"
	"github.com/William6892/barcodeverify-backend/internal/redisx"
	"github.com/William6892/barcodeverify-backend/internal/reports"
	"github.com/William6892/barcodeverify-backend/internal/shipping"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	group := getenv("REPORTER_GROUP", "reporter-svc")
	workers, err := strconv.Atoi(getenv("REPORTER_WORKERS", "4"))
	if err != nil {
		workers = 4
	}

	topics := []string{shipping.TopicProductScanned, shipping.TopicShipmentCompleted}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topics, workers)
	rep := reports.NewReporter(&reports.RedisCounters{RDB: rdb})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("reporter consumer started: group=%s topics=%v workers=%d", group, topics, workers)
		return cons.Start(gctx, rep.Handle)
	})
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sig:
			log.Println("shutting down reporter...")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("reporter exit: %v", err)
	}
}
