package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "driverdesk/internal/config"
	"driverdesk/internal/events"
	router "driverdesk/internal/http"
	"driverdesk/internal/http/handlers"
	"driverdesk/internal/qrpay"
	"driverdesk/internal/repositories"
	"driverdesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

func main() {
	env := intconfig.LoadEnv()

	var demoScan time.Duration
	flagSet := pflag.NewFlagSet("driverdesk", pflag.ExitOnError)
	flagSet.StringVar(&env.AppAddr, "addr", env.AppAddr, "listen address")
	flagSet.StringVar(&env.DatabaseDSN, "dsn", env.DatabaseDSN, "MySQL DSN for the journal and reservation feed (empty = in memory)")
	flagSet.StringVar(&env.RoutesFile, "routes", env.RoutesFile, "route catalogue YAML file (empty = built-in routes)")
	flagSet.IntVar(&env.SeatCapacity, "capacity", env.SeatCapacity, "seats in the vehicle")
	flagSet.DurationVar(&env.PrepWindow, "prep-window", env.PrepWindow, "preparation countdown")
	flagSet.StringVar(&env.DriverName, "driver", env.DriverName, "driver name printed on documents and QR payloads")
	flagSet.StringVar(&env.AMQPURL, "amqp-url", env.AMQPURL, "RabbitMQ URL for domain events (empty = disabled)")
	flagSet.DurationVar(&demoScan, "demo-scanner", 0, "answer every scan with a valid QR after this delay (0 = wait for POST /api/scan/:session/result)")
	_ = flagSet.Parse(os.Args[1:])

	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	routes := intconfig.DefaultRoutes()
	if env.RoutesFile != "" {
		loaded, err := intconfig.LoadRoutes(env.RoutesFile)
		if err != nil {
			log.Fatalf("route catalogue: %v", err)
		}
		routes = loaded
	}

	db, err := intconfig.ConnectDB(env.DatabaseDSN)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer intconfig.CloseDB()

	issuer := qrpay.NewIssuer(env.QRSecret, env.QRTTL)
	hub := events.NewHub()

	opts := services.CoreOptions{
		Routes:     routes,
		Capacity:   env.SeatCapacity,
		PrepWindow: env.PrepWindow,
		Sinks:      []services.SnapshotSink{hub},
	}
	if demoScan > 0 {
		opts.Scanner = qrpay.DemoScanner{Issuer: issuer, Recipient: env.DriverName, Delay: demoScan}
	}

	api := &handlers.API{Issuer: issuer, DriverName: env.DriverName}
	if db != nil {
		journal := repositories.TransactionRepository{DB: db}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := journal.EnsureTable(ctx)
		cancel()
		if err != nil {
			log.Fatalf("journal table: %v", err)
		}
		opts.Journal = journal
		api.Journal = journal
		api.Reservations = repositories.ReservationRepository{DB: db}
	} else {
		log.Println("DATABASE_DSN not set: ledger journal and reservation sync disabled")
	}

	core := services.NewCoreService(opts)
	hub.Initial = core.Snapshot
	api.Core = core

	if env.AMQPURL != "" {
		pub, err := events.DialAMQP(env.AMQPURL, env.AMQPExchange, env.DriverName)
		if err != nil {
			log.Printf("warning: domain events disabled: %v", err)
		} else {
			core.AddSink(pub)
			defer pub.Close()
		}
	}

	r := router.NewRouter(env, api, hub.ServeWS)

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("driverdesk listening on http://localhost%s (capacity=%d routes=%d)", env.AppAddr, env.SeatCapacity, len(routes))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown failed: %v", err)
	}

	log.Println("server stopped.")
}
