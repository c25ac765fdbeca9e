package main

import (
	"log"

	"support-desk-backend/internal/api"
	"support-desk-backend/internal/api/router"
	"support-desk-backend/internal/database"
	"support-desk-backend/internal/env"
	"support-desk-backend/internal/queue"
	"support-desk-backend/internal/ratelimit"
	chatservice "support-desk-backend/internal/service/chat"
	"support-desk-backend/internal/websocket"
)

func main() {
	env.MustValidate()

	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	hub := websocket.NewHub()
	chats := chatservice.New(db)
	limiter := ratelimit.NewLimiter()
	handler := websocket.NewHandler(hub, chats, limiter)

	server := api.NewAPIServer(
		":83",
		queueManager,
		db,
		handler,
		websocket.NewHubNotifier(hub),
		nil,
		router.UtilsRoutes("/api/ws/v1"),
		router.ChatWebsocketRoutes(),
	)

	server.Run()
}
