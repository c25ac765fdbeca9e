package main

import (
	"log"

	"support-desk-backend/internal/api"
	"support-desk-backend/internal/api/router"
	"support-desk-backend/internal/database"
	"support-desk-backend/internal/env"
	"support-desk-backend/internal/messaging"
	"support-desk-backend/internal/queue"
	"support-desk-backend/internal/websocket"
)

func main() {
	env.MustValidate()

	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	var bus messaging.Publisher
	producer, err := messaging.NewProducer()
	if err != nil {
		log.Printf("kafka producer unavailable, domain events disabled: %v", err)
		bus = messaging.NopPublisher{}
	} else {
		bus = producer
	}

	// REST runs in its own process; realtime fan-out goes through the
	// Redis bridge to the ws-server.
	notifier := websocket.NewBridgeNotifier()

	server := api.NewAPIServer(
		":81",
		queueManager,
		db,
		nil,
		notifier,
		bus,
		router.UtilsRoutes("/api/v1"),
		router.ChatRoutes("/api/v1"),
		router.TicketRoutes("/api/v1"),
		router.CustomerRoutes("/api/v1"),
	)

	server.Run()
}
