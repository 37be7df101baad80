package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/William6892/barcodeverify-backend/internal/carriers"
	"github.com/William6892/barcodeverify-backend/internal/config"
	"github.com/William6892/barcodeverify-backend/internal/httpx"
	kafkax "github.com/William6892/barcodeverify-backend/internal/kafka"
	"github.com/William6892/barcodeverify-backend/internal/postgres"
	"github.com/William6892/barcodeverify-backend/internal/redisx"
	"github.com/William6892/barcodeverify-backend/internal/reports"
	"github.com/William6892/barcodeverify-backend/internal/shipping"
	"github.com/William6892/barcodeverify-backend/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMax)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer (one writer, topic set per message)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	// Stores & services
	engine := shipping.NewEngine(shipping.NewPGStore(db))
	queries := &reports.Queries{DB: db}
	userSvc := users.NewService(&users.PGStore{DB: db}, rdb, cfg.SessionTTL)
	carrierRepo := &carriers.Repo{DB: db}

	router := httpx.NewRouter(httpx.Handlers{
		Auth: &httpx.AuthHandler{Users: userSvc},
		Shipments: &httpx.ShipmentsHandler{
			Engine:   engine,
			Queries:  queries,
			Producer: prod,
			Redis:    rdb,
			Service:  cfg.ServiceName,
		},
		Products: &httpx.ProductsHandler{Engine: engine, Queries: queries},
		Carriers: &httpx.CarriersHandler{Repo: carrierRepo},
		Admin:    &httpx.AdminHandler{Users: userSvc, Queries: queries, Redis: rdb},
		Verifier: userSvc,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // close inbox, flush and close writer
	cancel()
	prod.WaitClosed()
}
