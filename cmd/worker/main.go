package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/fundtrace/backend/internal/config"
	"github.com/OFFIS-RIT/fundtrace/backend/internal/migrations"
	"github.com/OFFIS-RIT/fundtrace/backend/internal/queue"
	"github.com/OFFIS-RIT/fundtrace/backend/internal/util"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/leaselock"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger/console"
	pgxstore "github.com/OFFIS-RIT/fundtrace/backend/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		JSON:   util.GetEnvBool("LOG_JSON", false),
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	// Init pgx client
	databaseURL := util.GetEnv("DATABASE_URL")
	if err := migrations.Up(databaseURL); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}
	pgConn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	s, err := pgxstore.NewChainDBStorageWithConnection(ctx, pgConn)
	if err != nil {
		logger.Fatal("Failed to create chain storage", "err", err)
	}
	engine, err := config.ChainFromEnv().NewIdentifier(s)
	if err != nil {
		logger.Fatal("Failed to create chain identifier", "err", err)
	}
	hostname, _ := os.Hostname()
	identifier := queue.LockedIdentifier{
		Identifier: engine,
		Locks: leaselock.New(
			pgConn,
			leaselock.WithTTL(util.GetEnvDuration("CHAIN_LOCK_TTL", 2*time.Minute)),
			leaselock.WithOwner(hostname+"-"),
		),
	}

	// Init rabbitmq
	conn := queue.Init(ctx)
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to setup queues", "err", err)
	}

	// One message at a time; identification runs are CPU bound.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.ChainIdentifyQueue,
		fmt.Sprintf("%s_consumer", queue.ChainIdentifyQueue),
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.ChainIdentifyQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.ChainIdentifyQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.ChainIdentifyQueue)
				return
			}
			handle(ctx, identifier, ch, consumerCh, msg)
		}
	}
}

func handle(ctx context.Context, identifier queue.ChainIdentifier, ch, consumerCh *amqp.Channel, msg amqp.Delivery) {
	startTime := time.Now()
	logger.Info("Received message", "queue", queue.ChainIdentifyQueue)

	if err := queue.ProcessIdentifyMessage(ctx, identifier, ch, msg.Body); err != nil {
		logger.Error("Error processing message", "queue", queue.ChainIdentifyQueue, "err", err)
		queue.HandleProcessingError(consumerCh, msg, queue.ChainIdentifyQueue, err)
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack message", "err", err)
	}

	processingDuration := time.Since(startTime)
	logger.Info(
		"Message processed successfully",
		"queue", queue.ChainIdentifyQueue,
		"duration", processingDuration.Round(time.Millisecond).String(),
	)
}
